// internal/device/constants.go
package device

import (
	"fmt"
	"strings"
)

// Register map and command codes of the BEEP firmware.
// These values define the protocol and MUST NOT be configurable.

// ---- ADDRESSES ----

// AddrCommand receives [command, parameter] pairs and the PID target.
const AddrCommand uint16 = 0x4F00

// AddrStimulus receives the packed potential stream in potentiostatic mode.
const AddrStimulus uint16 = 0x200

// AddrSamples is the head of the onboard sample FIFO.
const AddrSamples uint16 = 0x100

// ---- COMMANDS ----

// Command is one opcode written to AddrCommand.
type Command uint16

const (
	CmdSensorZero   Command = 0xE0
	CmdReset        Command = 0xE1
	CmdLoadDefaults Command = 0xE2
	CmdSetTIAGain   Command = 0xE3
	CmdSetSwitch    Command = 0xE4
	CmdFIFOStart    Command = 0xE5
	CmdPIDStart     Command = 0xE6
	CmdTestStop     Command = 0xE7
	CmdClearFIFO    Command = 0xE8
	CmdConfigSave   Command = 0xF0
)

var commandNames = map[Command]string{
	CmdSensorZero:   "SENSOR_ZERO",
	CmdReset:        "RESET",
	CmdLoadDefaults: "LOAD_DEFAULTS",
	CmdSetTIAGain:   "SET_TIA_GAIN",
	CmdSetSwitch:    "SET_SWITCH",
	CmdFIFOStart:    "FIFO_START",
	CmdPIDStart:     "PID_START",
	CmdTestStop:     "TEST_STOP",
	CmdClearFIFO:    "CLEAR_FIFO",
	CmdConfigSave:   "CFG_SAVE",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CMD(%#02x)", uint16(c))
}

// ---- TIA GAIN ----

// Gain selects the transimpedance amplifier feedback resistor.
type Gain uint16

const (
	Gain1K Gain = iota
	Gain10K
	Gain100K
	Gain1M
	Gain10M
)

// MaxGain is the highest valid gain index.
const MaxGain = Gain10M

var gainNames = [...]string{"1K", "10K", "100K", "1M", "10M"}

// Valid reports whether g is a known gain index.
func (g Gain) Valid() bool {
	return g <= MaxGain
}

// Ohms returns the feedback resistance for g.
func (g Gain) Ohms() float64 {
	r := 1e3
	for i := Gain(0); i < g && i < MaxGain; i++ {
		r *= 10
	}
	return r
}

func (g Gain) String() string {
	if !g.Valid() {
		return fmt.Sprintf("GAIN(%d)", uint16(g))
	}
	return gainNames[g]
}

// ParseGain accepts either a resistor label ("10K", "1m") or an index ("0".."4").
func ParseGain(s string) (Gain, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range gainNames {
		if s == name || s == fmt.Sprint(i) {
			return Gain(i), nil
		}
	}
	return 0, fmt.Errorf("device: unknown tia gain %q (want one of %s or 0-%d)",
		s, strings.Join(gainNames[:], ","), MaxGain)
}

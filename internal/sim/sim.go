// internal/sim/sim.go
package sim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/tamzrod/potentiostat/internal/device"
	"github.com/tamzrod/potentiostat/internal/waveform"
)

// ErrTimeout is returned for injected faults.
var ErrTimeout = errors.New("sim: serial timeout")

// Config describes the simulated cell and link.
type Config struct {
	CellOhms      float64       // dummy cell resistor
	RestPotential float32       // open circuit potential of the cell
	TIAVolts      float64       // TIA output swing; current clips at TIAVolts / gain
	Realtime      bool          // free-running FIFO fills at one sample per PointInterval
	Latency       time.Duration // added to every register operation
	FailEvery     int           // every n-th register operation fails, 0 = never
}

// DefaultConfig is a 10 kOhm dummy cell resting at 0.2 V.
func DefaultConfig() Config {
	return Config{
		CellOhms:      10e3,
		RestPotential: 0.2,
		TIAVolts:      1.65,
	}
}

// Instrument is an in-memory BEEP board behind the register Transport.
//
//	potentiostatic: every written potential produces one sample
//	galvanostatic:  the PID holds the target current, FIFO runs free
//	open circuit:   FIFO runs free at the rest potential
type Instrument struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	gain     device.Gain
	output   bool
	fifoOn   bool
	pidOn    bool
	target   float32
	stimulus bool // a potential was written since the last clear
	fifo     []uint16
	started  time.Time
	produced int

	ops          int
	failReads    int
	failWrites   int
	disconnected bool
	commands     []device.Command
}

// New returns an idle instrument.
func New(cfg Config) *Instrument {
	if cfg.CellOhms <= 0 {
		cfg.CellOhms = DefaultConfig().CellOhms
	}
	if cfg.TIAVolts <= 0 {
		cfg.TIAVolts = DefaultConfig().TIAVolts
	}
	return &Instrument{cfg: cfg, now: time.Now}
}

// ---- fault injection ----

// FailNext makes the next reads read operations and writes write operations fail.
func (in *Instrument) FailNext(reads, writes int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.failReads = reads
	in.failWrites = writes
}

// Disconnect makes every operation fail until called with false.
func (in *Instrument) Disconnect(off bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.disconnected = off
}

// ---- inspection ----

// Commands returns every command received, in order.
func (in *Instrument) Commands() []device.Command {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]device.Command(nil), in.commands...)
}

// Output reports whether the output switch is on.
func (in *Instrument) Output() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.output
}

// Gain returns the selected TIA gain.
func (in *Instrument) Gain() device.Gain {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.gain
}

// ---- device.Transport ----

// WriteMultipleRegisters handles commands at AddrCommand and potentials at AddrStimulus.
func (in *Instrument) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	in.latency()
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := in.fault(&in.failWrites); err != nil {
		return nil, err
	}
	if len(value) != 2*int(quantity) {
		return nil, fmt.Errorf("sim: quantity %d does not match %d bytes", quantity, len(value))
	}
	words := make([]uint16, quantity)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(value[2*i:])
	}

	switch address {
	case device.AddrCommand:
		if err := in.command(words); err != nil {
			return nil, err
		}
	case device.AddrStimulus:
		in.push(words)
	default:
		return nil, fmt.Errorf("sim: illegal data address %#04x", address)
	}

	resp := make([]byte, 4)
	binary.BigEndian.PutUint16(resp[0:], address)
	binary.BigEndian.PutUint16(resp[2:], quantity)
	return resp, nil
}

// ReadHoldingRegisters drains up to quantity words from the FIFO,
// whole samples only. An empty FIFO is not an error.
func (in *Instrument) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	in.latency()
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := in.fault(&in.failReads); err != nil {
		return nil, err
	}
	if address != device.AddrSamples {
		return nil, fmt.Errorf("sim: illegal data address %#04x", address)
	}

	in.freeRun(int(quantity) / 4)

	n := int(quantity)
	if n > len(in.fifo) {
		n = len(in.fifo)
	}
	n -= n % 4

	out := make([]byte, 2*n)
	for i, w := range in.fifo[:n] {
		binary.BigEndian.PutUint16(out[2*i:], w)
	}
	in.fifo = in.fifo[n:]
	return out, nil
}

// ---- model ----

func (in *Instrument) command(words []uint16) error {
	if len(words) < 2 {
		return fmt.Errorf("sim: command frame of %d words", len(words))
	}
	cmd := device.Command(words[0])
	in.commands = append(in.commands, cmd)

	switch cmd {
	case device.CmdSetTIAGain:
		g := device.Gain(words[1])
		if !g.Valid() {
			return fmt.Errorf("sim: illegal data value %d for %s", words[1], cmd)
		}
		in.gain = g
	case device.CmdClearFIFO:
		in.fifo = nil
		in.stimulus = false
	case device.CmdFIFOStart:
		in.fifoOn = words[1] != 0
		in.restart()
	case device.CmdSetSwitch:
		in.output = words[1] != 0
	case device.CmdPIDStart:
		if len(words) < 3 {
			return fmt.Errorf("sim: %s without target", cmd)
		}
		in.target = device.WordsToFloat(words[1], words[2])
		in.pidOn = true
		in.fifoOn = true
		in.restart()
	case device.CmdTestStop:
		in.pidOn = false
		in.fifoOn = false
	case device.CmdSensorZero, device.CmdReset, device.CmdLoadDefaults, device.CmdConfigSave:
	default:
		return fmt.Errorf("sim: illegal function %s", cmd)
	}
	return nil
}

func (in *Instrument) restart() {
	in.started = in.now()
	in.produced = 0
}

// push converts written potentials into samples.
func (in *Instrument) push(words []uint16) {
	if !in.fifoOn || !in.output {
		return
	}
	in.stimulus = true
	for _, v := range device.UnpackFloats(words) {
		in.sample(in.clip(float64(v)/in.cfg.CellOhms), v)
	}
}

// freeRun fills the FIFO when no stimulus drives it.
func (in *Instrument) freeRun(limit int) {
	if !in.fifoOn || in.stimulus || limit <= 0 {
		return
	}
	n := limit
	if in.cfg.Realtime {
		due := int(in.now().Sub(in.started).Seconds()/waveform.PointInterval) - in.produced
		if due < n {
			n = due
		}
		if n <= 0 {
			return
		}
	}
	for i := 0; i < n; i++ {
		switch {
		case in.pidOn && in.output:
			cur := in.clip(float64(in.target))
			in.sample(cur, float32(float64(cur)*in.cfg.CellOhms))
		default:
			in.sample(0, in.cfg.RestPotential)
		}
	}
	in.produced += n
}

func (in *Instrument) sample(current, potential float32) {
	c := device.FloatToWords(current)
	p := device.FloatToWords(potential)
	in.fifo = append(in.fifo, c[0], c[1], p[0], p[1])
}

// clip limits a current to what the selected TIA gain can measure.
func (in *Instrument) clip(current float64) float32 {
	limit := in.cfg.TIAVolts / in.gain.Ohms()
	return float32(math.Max(-limit, math.Min(limit, current)))
}

func (in *Instrument) fault(pending *int) error {
	in.ops++
	if in.disconnected {
		return ErrTimeout
	}
	if *pending > 0 {
		*pending--
		return ErrTimeout
	}
	if in.cfg.FailEvery > 0 && in.ops%in.cfg.FailEvery == 0 {
		return ErrTimeout
	}
	return nil
}

func (in *Instrument) latency() {
	if in.cfg.Latency > 0 {
		time.Sleep(in.cfg.Latency)
	}
}

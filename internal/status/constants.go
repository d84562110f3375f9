// internal/status/constants.go
package status

import "fmt"

// Acquisition run states.
// Values are reported over the HTTP surface and MUST stay stable.

// State is one step of the acquisition state machine.
type State uint16

// ---- LIFECYCLE ----

// StateIdle means no measurement has started.
const StateIdle State = 0

// StateSetup means gain, FIFO and switch are being programmed.
const StateSetup State = 1

// StateWriting means the stimulus is being pushed (potentiostatic) or
// PID targets are being set (galvanostatic).
const StateWriting State = 2

// StateDraining means only reads remain.
const StateDraining State = 3

// StateTeardown means the output is being switched off.
const StateTeardown State = 4

// ---- TERMINAL ----

// StateDone means the measurement completed normally.
const StateDone State = 5

// StateFatal means a link channel exhausted its error ceiling.
const StateFatal State = 6

// StateCancelled means the caller stopped the measurement early.
const StateCancelled State = 7

var stateNames = [...]string{
	"idle", "setup", "writing", "draining", "teardown", "done", "fatal", "cancelled",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFatal || s == StateCancelled
}

// Running reports whether a measurement holds the device.
func (s State) Running() bool {
	return s >= StateSetup && s <= StateTeardown
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names MarshalText produces.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("status: unknown state %q", b)
}

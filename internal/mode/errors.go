// internal/mode/errors.go
package mode

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is wrapped by UnknownModeError.
var ErrUnknownMode = errors.New("unknown mode")

// UnknownModeError reports a technique code that is not registered.
type UnknownModeError struct {
	Code  string
	Valid []Code
}

func (e *UnknownModeError) Error() string {
	valid := make([]string, len(e.Valid))
	for i, c := range e.Valid {
		valid[i] = string(c)
	}
	return fmt.Sprintf("%v %q (valid: %s)", ErrUnknownMode, e.Code, strings.Join(valid, ", "))
}

func (e *UnknownModeError) Unwrap() error { return ErrUnknownMode }

// ParameterError reports a parameter set that does not match the technique schema.
type ParameterError struct {
	Mode     Code
	Expected []string
	Err      error
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("mode %s: invalid parameters (expected %s): %v",
		e.Mode, strings.Join(e.Expected, ", "), e.Err)
}

func (e *ParameterError) Unwrap() error { return e.Err }

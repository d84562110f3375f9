// internal/mode/mode.go
package mode

import (
	"fmt"
	"sort"
	"strings"
)

// Code names one measurement technique.
type Code string

const (
	CA      Code = "CA"
	LSV     Code = "LSV"
	CV      Code = "CV"
	PSTEP   Code = "PSTEP"
	CP      Code = "CP"
	GS      Code = "GS"
	GCV     Code = "GCV"
	STEPSEQ Code = "STEPSEQ"
	OCP     Code = "OCP"
)

// Family is the control family of a technique.
// It selects the acquisition loop.
type Family int

const (
	Potentiostatic Family = iota
	Galvanostatic
	OpenCircuit
)

// MarshalText renders the family name.
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText accepts the names MarshalText produces.
func (f *Family) UnmarshalText(b []byte) error {
	for _, c := range []Family{Potentiostatic, Galvanostatic, OpenCircuit} {
		if c.String() == string(b) {
			*f = c
			return nil
		}
	}
	return fmt.Errorf("mode: unknown family %q", b)
}

func (f Family) String() string {
	switch f {
	case Potentiostatic:
		return "potentiostatic"
	case Galvanostatic:
		return "galvanostatic"
	case OpenCircuit:
		return "open_circuit"
	default:
		return "unknown"
	}
}

// FieldKind is the value type of a parameter.
type FieldKind string

const (
	KindFloat     FieldKind = "float"
	KindInt       FieldKind = "int"
	KindFloatList FieldKind = "float_list"
)

// Field describes one parameter of a technique.
type Field struct {
	Name string    `json:"name" yaml:"name"`
	Kind FieldKind `json:"kind" yaml:"kind"`
	Unit string    `json:"unit,omitempty" yaml:"unit,omitempty"`
}

type entry struct {
	code        Code
	family      Family
	description string
	fields      []Field
	new         func() Params
}

// Registry maps technique codes to their definitions.
// It is built once and never modified.
type Registry struct {
	entries map[Code]*entry
	order   []Code
}

// NewRegistry returns the registry of the nine BEEP techniques.
func NewRegistry() *Registry {
	r := &Registry{entries: map[Code]*entry{}}
	for _, e := range definitions() {
		e := e
		r.entries[e.code] = &e
		r.order = append(r.order, e.code)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return r
}

// Available returns all codes in stable order.
func (r *Registry) Available() []Code {
	out := make([]Code, len(r.order))
	copy(out, r.order)
	return out
}

// Lookup resolves a technique name, case-insensitive.
func (r *Registry) Lookup(name string) (Code, error) {
	c := Code(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := r.entries[c]; !ok {
		return "", &UnknownModeError{Code: name, Valid: r.Available()}
	}
	return c, nil
}

// Params returns the parameter schema of a technique.
func (r *Registry) Params(name string) ([]Field, error) {
	e, err := r.entry(name)
	if err != nil {
		return nil, err
	}
	out := make([]Field, len(e.fields))
	copy(out, e.fields)
	return out, nil
}

// Family returns the control family of a technique.
func (r *Registry) Family(name string) (Family, error) {
	e, err := r.entry(name)
	if err != nil {
		return 0, err
	}
	return e.family, nil
}

// PIDActive reports whether the technique holds current through the onboard PID.
func (r *Registry) PIDActive(name string) (bool, error) {
	f, err := r.Family(name)
	if err != nil {
		return false, err
	}
	return f == Galvanostatic, nil
}

// Description returns a one-line summary of the technique.
func (r *Registry) Description(name string) (string, error) {
	e, err := r.entry(name)
	if err != nil {
		return "", err
	}
	return e.description, nil
}

func (r *Registry) entry(name string) (*entry, error) {
	c, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return r.entries[c], nil
}

func fieldNames(fs []Field) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

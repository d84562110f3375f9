// internal/mode/params.go
package mode

import (
	"fmt"
	"math"

	"github.com/tamzrod/potentiostat/internal/waveform"
)

// Params is the closed set of technique parameter structs.
// Each implementation validates itself and renders its waveform.
type Params interface {
	Mode() Code
	Validate() error
	Waveform() waveform.Waveform
}

// ---- potentiostatic ----

// ConstantPotential holds a potential (CA).
type ConstantPotential struct {
	Potential float64 `mapstructure:"potential" yaml:"potential"`
	Duration  float64 `mapstructure:"duration" yaml:"duration"`
}

func (ConstantPotential) Mode() Code { return CA }

func (p ConstantPotential) Validate() error {
	return check(
		finite("potential", p.Potential),
		nonNegative("duration", p.Duration),
	)
}

func (p ConstantPotential) Waveform() waveform.Waveform {
	return waveform.Constant(p.Potential, p.Duration)
}

// LinearSweep ramps potential once (LSV).
type LinearSweep struct {
	Start    float64 `mapstructure:"start" yaml:"start"`
	End      float64 `mapstructure:"end" yaml:"end"`
	ScanRate float64 `mapstructure:"scan_rate" yaml:"scan_rate"`
}

func (LinearSweep) Mode() Code { return LSV }

func (p LinearSweep) Validate() error {
	return check(
		finite("start", p.Start),
		finite("end", p.End),
		positive("scan_rate", p.ScanRate),
	)
}

func (p LinearSweep) Waveform() waveform.Waveform {
	return waveform.LinearSweep(p.Start, p.End, p.ScanRate)
}

// CyclicVoltammetry sweeps between two vertices (CV).
type CyclicVoltammetry struct {
	Start    float64 `mapstructure:"start" yaml:"start"`
	Vertex1  float64 `mapstructure:"vertex1" yaml:"vertex1"`
	Vertex2  float64 `mapstructure:"vertex2" yaml:"vertex2"`
	End      float64 `mapstructure:"end" yaml:"end"`
	ScanRate float64 `mapstructure:"scan_rate" yaml:"scan_rate"`
	Cycles   int     `mapstructure:"cycles" yaml:"cycles"`
}

func (CyclicVoltammetry) Mode() Code { return CV }

func (p CyclicVoltammetry) Validate() error {
	return check(
		finite("start", p.Start),
		finite("vertex1", p.Vertex1),
		finite("vertex2", p.Vertex2),
		finite("end", p.End),
		positive("scan_rate", p.ScanRate),
		atLeastOne("cycles", p.Cycles),
	)
}

func (p CyclicVoltammetry) Waveform() waveform.Waveform {
	return waveform.CyclicSweep(p.Start, p.Vertex1, p.Vertex2, p.End, p.ScanRate, p.Cycles)
}

// PotentialSteps holds a list of potentials (PSTEP).
type PotentialSteps struct {
	Potentials   []float64 `mapstructure:"potentials" yaml:"potentials"`
	StepDuration float64   `mapstructure:"step_duration" yaml:"step_duration"`
}

func (PotentialSteps) Mode() Code { return PSTEP }

func (p PotentialSteps) Validate() error {
	return check(
		finiteList("potentials", p.Potentials),
		nonNegative("step_duration", p.StepDuration),
	)
}

func (p PotentialSteps) Waveform() waveform.Waveform {
	return waveform.PotentialSteps(p.Potentials, p.StepDuration)
}

// ---- galvanostatic ----

// ConstantCurrent holds a current (CP).
type ConstantCurrent struct {
	Current  float64 `mapstructure:"current" yaml:"current"`
	Duration float64 `mapstructure:"duration" yaml:"duration"`
}

func (ConstantCurrent) Mode() Code { return CP }

func (p ConstantCurrent) Validate() error {
	return check(
		finite("current", p.Current),
		nonNegative("duration", p.Duration),
	)
}

func (p ConstantCurrent) Waveform() waveform.Waveform {
	return waveform.ConstantCurrent(p.Current, p.Duration)
}

// CurrentSteps holds a list of currents (STEPSEQ).
type CurrentSteps struct {
	Currents     []float64 `mapstructure:"currents" yaml:"currents"`
	StepDuration float64   `mapstructure:"step_duration" yaml:"step_duration"`
}

func (CurrentSteps) Mode() Code { return STEPSEQ }

func (p CurrentSteps) Validate() error {
	return check(
		finiteList("currents", p.Currents),
		nonNegative("step_duration", p.StepDuration),
	)
}

func (p CurrentSteps) Waveform() waveform.Waveform {
	return waveform.CurrentSteps(p.Currents, p.StepDuration)
}

// CurrentSweep steps current linearly (GS).
type CurrentSweep struct {
	Start        float64 `mapstructure:"start" yaml:"start"`
	End          float64 `mapstructure:"end" yaml:"end"`
	NumSteps     int     `mapstructure:"num_steps" yaml:"num_steps"`
	StepDuration float64 `mapstructure:"step_duration" yaml:"step_duration"`
}

func (CurrentSweep) Mode() Code { return GS }

func (p CurrentSweep) Validate() error {
	return check(
		finite("start", p.Start),
		finite("end", p.End),
		atLeastOne("num_steps", p.NumSteps),
		nonNegative("step_duration", p.StepDuration),
	)
}

func (p CurrentSweep) Waveform() waveform.Waveform {
	return waveform.CurrentSweep(p.Start, p.End, p.NumSteps, p.StepDuration)
}

// CyclicCurrent sweeps current between two vertices (GCV).
type CyclicCurrent struct {
	Start        float64 `mapstructure:"start" yaml:"start"`
	Vertex1      float64 `mapstructure:"vertex1" yaml:"vertex1"`
	Vertex2      float64 `mapstructure:"vertex2" yaml:"vertex2"`
	End          float64 `mapstructure:"end" yaml:"end"`
	NumSteps     int     `mapstructure:"num_steps" yaml:"num_steps"`
	StepDuration float64 `mapstructure:"step_duration" yaml:"step_duration"`
	Cycles       int     `mapstructure:"cycles" yaml:"cycles"`
}

func (CyclicCurrent) Mode() Code { return GCV }

func (p CyclicCurrent) Validate() error {
	return check(
		finite("start", p.Start),
		finite("vertex1", p.Vertex1),
		finite("vertex2", p.Vertex2),
		finite("end", p.End),
		atLeastOne("num_steps", p.NumSteps),
		nonNegative("step_duration", p.StepDuration),
		atLeastOne("cycles", p.Cycles),
	)
}

func (p CyclicCurrent) Waveform() waveform.Waveform {
	return waveform.CyclicCurrent(p.Start, p.Vertex1, p.Vertex2, p.End, p.NumSteps, p.StepDuration, p.Cycles)
}

// ---- open circuit ----

// OpenCircuitPotential monitors the cell at rest (OCP).
type OpenCircuitPotential struct {
	Duration float64 `mapstructure:"duration" yaml:"duration"`
}

func (OpenCircuitPotential) Mode() Code { return OCP }

func (p OpenCircuitPotential) Validate() error {
	return nonNegative("duration", p.Duration)
}

func (p OpenCircuitPotential) Waveform() waveform.Waveform {
	return waveform.OpenCircuit(p.Duration)
}

// ---- rules ----

func check(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func finite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be finite", name)
	}
	return nil
}

func nonNegative(name string, v float64) error {
	if err := finite(name, v); err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("%s must be >= 0, got %g", name, v)
	}
	return nil
}

func positive(name string, v float64) error {
	if err := finite(name, v); err != nil {
		return err
	}
	if v <= 0 {
		return fmt.Errorf("%s must be > 0, got %g", name, v)
	}
	return nil
}

func atLeastOne(name string, v int) error {
	if v < 1 {
		return fmt.Errorf("%s must be >= 1, got %d", name, v)
	}
	return nil
}

func finiteList(name string, vs []float64) error {
	if len(vs) == 0 {
		return fmt.Errorf("%s must not be empty", name)
	}
	for i, v := range vs {
		if err := finite(fmt.Sprintf("%s[%d]", name, i), v); err != nil {
			return err
		}
	}
	return nil
}

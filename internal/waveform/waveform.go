// internal/waveform/waveform.go
package waveform

import (
	"errors"
	"fmt"
	"math"
)

// PointInterval is the fixed hardware sample period in seconds.
const PointInterval = 0.00036

// Kind tells what the stimulus array holds.
type Kind int

const (
	// KindNone carries no stimulus (open circuit).
	KindNone Kind = iota
	// KindPotential carries applied potentials in volts.
	KindPotential
	// KindCurrent carries applied currents in amperes.
	KindCurrent
)

func (k Kind) String() string {
	switch k {
	case KindPotential:
		return "potential"
	case KindCurrent:
		return "current"
	default:
		return "none"
	}
}

// Segment is one logical level of a stepped waveform.
type Segment struct {
	Value    float32
	Duration float32
	Length   int32
}

// Waveform is produced once per measurement and read-only afterwards.
type Waveform struct {
	Kind     Kind
	Stimulus []float32
	Time     []float32

	// Optional labels, len == Len() when present.
	Cycle []int32
	Step  []int32

	// Segments drive the galvanostatic loop. sum(Length) == Len() when present.
	Segments []Segment
}

// Len returns the number of sample points.
func (w Waveform) Len() int {
	return len(w.Time)
}

// Check verifies the structural invariants.
func (w Waveform) Check() error {
	n := len(w.Time)
	if w.Kind != KindNone && len(w.Stimulus) != n {
		return fmt.Errorf("waveform: stimulus length %d != time length %d", len(w.Stimulus), n)
	}
	if w.Kind == KindNone && len(w.Stimulus) != 0 {
		return errors.New("waveform: open circuit waveform carries a stimulus")
	}
	if w.Cycle != nil && len(w.Cycle) != n {
		return fmt.Errorf("waveform: cycle length %d != %d", len(w.Cycle), n)
	}
	if w.Step != nil && len(w.Step) != n {
		return fmt.Errorf("waveform: step length %d != %d", len(w.Step), n)
	}
	if w.Segments != nil {
		var sum int
		for _, s := range w.Segments {
			if s.Length < 0 {
				return errors.New("waveform: negative segment length")
			}
			sum += int(s.Length)
		}
		if sum != n {
			return fmt.Errorf("waveform: segment lengths sum to %d, want %d", sum, n)
		}
	}
	return nil
}

// ---- helpers ----

// points converts a duration into a sample count, floor(duration / PointInterval).
func points(duration float64) int {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0
	}
	return int(duration / PointInterval)
}

func timeAxis(n int) []float32 {
	t := make([]float32, n)
	for i := range t {
		t[i] = float32(float64(i) * PointInterval)
	}
	return t
}

// linspace returns n evenly spaced values over [start, end], both ends included.
func linspace(start, end float64, n int) []float32 {
	if n <= 0 {
		return []float32{}
	}
	out := make([]float32, n)
	if n == 1 {
		out[0] = float32(start)
		return out
	}
	step := (end - start) / float64(n-1)
	for i := 0; i < n-1; i++ {
		out[i] = float32(start + float64(i)*step)
	}
	out[n-1] = float32(end)
	return out
}

func fill[T any](n int, v T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

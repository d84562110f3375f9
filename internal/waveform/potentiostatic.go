// internal/waveform/potentiostatic.go
package waveform

import "math"

// Constant holds potential for duration seconds (CA).
func Constant(potential, duration float64) Waveform {
	n := points(duration)
	return Waveform{
		Kind:     KindPotential,
		Stimulus: fill(n, float32(potential)),
		Time:     timeAxis(n),
	}
}

// LinearSweep ramps from start to end at scanRate V/s (LSV).
func LinearSweep(start, end, scanRate float64) Waveform {
	s := sweep(start, end, scanRate)
	return Waveform{
		Kind:     KindPotential,
		Stimulus: s,
		Time:     timeAxis(len(s)),
	}
}

// CyclicSweep builds a cyclic voltammogram.
//
//	cycle 1:      start -> vertex1 -> vertex2
//	cycle 2..n:   vertex2 -> vertex1 -> vertex2
//	closing leg:  vertex2 -> end, only when end != vertex2, labelled n+1
func CyclicSweep(start, vertex1, vertex2, end, scanRate float64, cycles int) Waveform {
	var (
		stim  []float32
		label []int32
	)
	add := func(seg []float32, c int) {
		stim = append(stim, seg...)
		for range seg {
			label = append(label, int32(c))
		}
	}

	if cycles >= 1 {
		add(sweep(start, vertex1, scanRate), 1)
		add(sweep(vertex1, vertex2, scanRate), 1)
		for c := 2; c <= cycles; c++ {
			add(sweep(vertex2, vertex1, scanRate), c)
			add(sweep(vertex1, vertex2, scanRate), c)
		}
		if end != vertex2 {
			add(sweep(vertex2, end, scanRate), cycles+1)
		}
	}

	if stim == nil {
		stim = []float32{}
		label = []int32{}
	}
	return Waveform{
		Kind:     KindPotential,
		Stimulus: stim,
		Time:     timeAxis(len(stim)),
		Cycle:    label,
	}
}

// PotentialSteps holds each potential for stepDuration seconds (PSTEP).
// Step labels are 0-based.
func PotentialSteps(potentials []float64, stepDuration float64) Waveform {
	per := points(stepDuration)
	stim := make([]float32, 0, per*len(potentials))
	step := make([]int32, 0, per*len(potentials))
	for i, p := range potentials {
		stim = append(stim, fill(per, float32(p))...)
		step = append(step, fill(per, int32(i))...)
	}
	return Waveform{
		Kind:     KindPotential,
		Stimulus: stim,
		Time:     timeAxis(len(stim)),
		Step:     step,
	}
}

func sweep(start, end, scanRate float64) []float32 {
	if scanRate <= 0 {
		return []float32{}
	}
	return linspace(start, end, points(math.Abs(end-start)/scanRate))
}

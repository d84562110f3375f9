// internal/waveform/galvanostatic.go
package waveform

// Galvanostatic waveforms are a list of current levels.
// Each level becomes one Segment; the PID receives one target per segment.

type builder struct {
	stim  []float32
	cycle []int32
	segs  []Segment
}

func (b *builder) level(current, duration float64, label int32) {
	n := points(duration)
	b.stim = append(b.stim, fill(n, float32(current))...)
	if b.cycle != nil {
		b.cycle = append(b.cycle, fill(n, label)...)
	}
	b.segs = append(b.segs, Segment{
		Value:    float32(current),
		Duration: float32(duration),
		Length:   int32(n),
	})
}

func (b *builder) ramp(start, end float64, numSteps int, stepDuration float64, label int32) {
	for _, c := range linspace(start, end, numSteps) {
		b.level(float64(c), stepDuration, label)
	}
}

func (b *builder) waveform() Waveform {
	if b.stim == nil {
		b.stim = []float32{}
	}
	if b.segs == nil {
		b.segs = []Segment{}
	}
	return Waveform{
		Kind:     KindCurrent,
		Stimulus: b.stim,
		Time:     timeAxis(len(b.stim)),
		Cycle:    b.cycle,
		Segments: b.segs,
	}
}

// ConstantCurrent holds current for duration seconds (CP).
func ConstantCurrent(current, duration float64) Waveform {
	var b builder
	b.level(current, duration, 0)
	return b.waveform()
}

// CurrentSteps holds each current for stepDuration seconds (STEPSEQ).
func CurrentSteps(currents []float64, stepDuration float64) Waveform {
	var b builder
	for _, c := range currents {
		b.level(c, stepDuration, 0)
	}
	return b.waveform()
}

// CurrentSweep steps linearly from start to end in numSteps levels (GS).
func CurrentSweep(start, end float64, numSteps int, stepDuration float64) Waveform {
	var b builder
	b.ramp(start, end, numSteps, stepDuration, 0)
	return b.waveform()
}

// CyclicCurrent builds a cyclic galvanostatic waveform (GCV).
//
//	every cycle:  start -> vertex1 -> vertex2 -> start, numSteps levels per leg
//	closing leg:  start -> end, only when end != start, labelled cycles+1
func CyclicCurrent(start, vertex1, vertex2, end float64, numSteps int, stepDuration float64, cycles int) Waveform {
	b := builder{cycle: []int32{}}
	for c := 1; c <= cycles; c++ {
		b.ramp(start, vertex1, numSteps, stepDuration, int32(c))
		b.ramp(vertex1, vertex2, numSteps, stepDuration, int32(c))
		b.ramp(vertex2, start, numSteps, stepDuration, int32(c))
	}
	if cycles >= 1 && end != start {
		b.ramp(start, end, numSteps, stepDuration, int32(cycles+1))
	}
	return b.waveform()
}

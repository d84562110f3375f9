// internal/datalog/datalog.go
package datalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"

	"github.com/tamzrod/potentiostat/internal/acquire"
	"github.com/tamzrod/potentiostat/internal/waveform"
)

// flushThreshold is the minimum buffered sample count before a flush.
const flushThreshold = 20

// Column headers.
const (
	ColTime             = "Time (s)"
	ColPotential        = "Potential (V)"
	ColCurrent          = "Current (A)"
	ColCycle            = "Cycle"
	ColStep             = "Step"
	ColExp              = "Exp"
	ColAppliedPotential = "Applied Potential (V)"
	ColAppliedCurrent   = "Applied Current (A)"
)

// ReducingFactor converts a sampling interval into a group size.
// Zero or negative means no reduction. Intervals finer than the hardware
// period are clamped to it with a warning.
func ReducingFactor(interval float64) int {
	if interval <= 0 || math.IsNaN(interval) || math.IsInf(interval, 0) {
		return 1
	}
	if interval < waveform.PointInterval {
		log.Printf("datalog: sampling interval %g s is below the hardware period, using %g s",
			interval, waveform.PointInterval)
		return 1
	}
	f := int(math.Round(interval / waveform.PointInterval))
	if f < 1 {
		return 1
	}
	return f
}

// Options configure a Logger.
type Options struct {
	Factor     int    // group size, < 1 means 1
	Experiment int    // value of the Exp column
	Name       string // used in log lines only
}

// Logger writes down-sampled measurement rows as CSV.
// It is driven by a single goroutine through Run.
type Logger struct {
	w    *csv.Writer
	wave waveform.Waveform
	opts Options

	cols   []string
	buf    []acquire.Sample
	offset int // index of buf[0] in the measurement
	rows   int
	header bool
}

// New prepares a logger for one measurement.
func New(w io.Writer, wave waveform.Waveform, opts Options) *Logger {
	if opts.Factor < 1 {
		opts.Factor = 1
	}
	return &Logger{
		w:    csv.NewWriter(w),
		wave: wave,
		opts: opts,
		cols: Columns(wave),
	}
}

// Columns returns the header for a waveform.
// Optional columns appear only when the waveform carries that data.
func Columns(wave waveform.Waveform) []string {
	cols := []string{ColTime, ColPotential, ColCurrent}
	if wave.Cycle != nil {
		cols = append(cols, ColCycle)
	}
	if wave.Step != nil {
		cols = append(cols, ColStep)
	}
	cols = append(cols, ColExp)
	switch wave.Kind {
	case waveform.KindPotential:
		cols = append(cols, ColAppliedPotential)
	case waveform.KindCurrent:
		cols = append(cols, ColAppliedCurrent)
	}
	return cols
}

// Run consumes batches until in is closed, then writes the remainder.
// After a write error the channel is still drained so the producer never
// blocks; the first error is returned.
func (l *Logger) Run(in <-chan []acquire.Sample) error {
	var firstErr error
	for batch := range in {
		if firstErr != nil {
			continue
		}
		l.buf = append(l.buf, batch...)
		if len(l.buf) > flushThreshold && len(l.buf) > l.opts.Factor {
			if err := l.flush(false); err != nil {
				log.Printf("datalog: write failed (file=%s): %v", l.opts.Name, err)
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return firstErr
	}
	if err := l.flush(true); err != nil {
		return err
	}
	log.Printf("datalog: saved %s (rows=%d factor=%d)", l.opts.Name, l.rows, l.opts.Factor)
	return nil
}

// Rows returns the number of data rows written.
func (l *Logger) Rows() int {
	return l.rows
}

// flush writes every complete group, and with final the partial one as well.
func (l *Logger) flush(final bool) error {
	if !l.header {
		if err := l.w.Write(l.cols); err != nil {
			return err
		}
		l.header = true
	}

	f := l.opts.Factor
	for len(l.buf) >= f || (final && len(l.buf) > 0) {
		n := f
		if n > len(l.buf) {
			n = len(l.buf)
		}
		if err := l.w.Write(l.row(l.buf[:n])); err != nil {
			return err
		}
		l.rows++
		l.offset += n
		l.buf = l.buf[n:]
	}
	// compact the remainder
	l.buf = append([]acquire.Sample(nil), l.buf...)

	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("datalog: %w", err)
	}
	return nil
}

// row averages one group. Time is the first sample's time, not a mean.
func (l *Logger) row(group []acquire.Sample) []string {
	var pot, cur, cyc, step, applied float64
	for i, s := range group {
		idx := l.offset + i
		pot += float64(s.Potential)
		cur += float64(s.Current)
		cyc += float64(at32(l.wave.Cycle, idx))
		step += float64(at32(l.wave.Step, idx))
		applied += float64(atF(l.wave.Stimulus, idx))
	}
	n := float64(len(group))

	out := make([]string, 0, len(l.cols))
	out = append(out,
		f32(float64(l.timeAt(l.offset))),
		f32(pot/n),
		f32(cur/n),
	)
	if l.wave.Cycle != nil {
		out = append(out, f64(cyc/n))
	}
	if l.wave.Step != nil {
		out = append(out, f64(step/n))
	}
	out = append(out, strconv.Itoa(l.opts.Experiment))
	if l.wave.Kind != waveform.KindNone {
		out = append(out, f32(applied/n))
	}
	return out
}

// timeAt returns the waveform time at idx, extrapolated past the end.
func (l *Logger) timeAt(idx int) float32 {
	if idx < len(l.wave.Time) {
		return l.wave.Time[idx]
	}
	return float32(float64(idx) * waveform.PointInterval)
}

// ---- helpers ----

// at32 and atF clamp idx to the last element; surplus samples reuse it.
func at32(vs []int32, idx int) int32 {
	if len(vs) == 0 {
		return 0
	}
	if idx >= len(vs) {
		idx = len(vs) - 1
	}
	return vs[idx]
}

func atF(vs []float32, idx int) float32 {
	if len(vs) == 0 {
		return 0
	}
	if idx >= len(vs) {
		idx = len(vs) - 1
	}
	return vs[idx]
}

func f32(v float64) string { return strconv.FormatFloat(v, 'g', -1, 32) }
func f64(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

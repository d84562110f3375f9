// internal/acquire/acquire.go
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tamzrod/potentiostat/internal/device"
	"github.com/tamzrod/potentiostat/internal/mode"
	"github.com/tamzrod/potentiostat/internal/status"
	"github.com/tamzrod/potentiostat/internal/waveform"
)

// Device is the part of the register driver the loop needs.
type Device interface {
	SendCommand(ctx context.Context, cmd device.Command, param uint16) error
	StartPID(ctx context.Context, target float32) error
	WriteWords(ctx context.Context, addr uint16, words []uint16) error
	ReadWords(ctx context.Context, addr uint16, count uint16) ([]uint16, error)
}

// Sample is one ADC push: the first float of the pair is the current,
// the second the potential.
type Sample struct {
	Current   float32
	Potential float32
}

// Settings tune the cadence. None of them is a protocol invariant.
type Settings struct {
	ChunkWords      int           // words per write and per read request
	BusyDelay       time.Duration // quiet time after a failure before retrying that channel
	WriteErrorLimit int           // consecutive write failures tolerated
	ReadErrorLimit  int           // consecutive read failures tolerated
	MinDrainReads   int           // post-write iterations before the drain check
	DrainRatio      float64       // words_read / words_written / 2 needed to finish
	IdlePoll        time.Duration // pause when nothing could be attempted or the FIFO was empty
}

// DefaultSettings returns the values the instrument was characterised with.
func DefaultSettings() Settings {
	return Settings{
		ChunkWords:      120,
		BusyDelay:       400 * time.Millisecond,
		WriteErrorLimit: 10,
		ReadErrorLimit:  16,
		MinDrainReads:   3,
		DrainRatio:      1.0,
		IdlePoll:        time.Millisecond,
	}
}

// Validate checks the settings without changing them.
func (s Settings) Validate() error {
	if s.ChunkWords <= 0 || s.ChunkWords > 0xFFFF {
		return fmt.Errorf("acquire: chunk_words must be in 1..65535, got %d", s.ChunkWords)
	}
	if s.ChunkWords%4 != 0 {
		return fmt.Errorf("acquire: chunk_words must be a multiple of 4 (one sample), got %d", s.ChunkWords)
	}
	if s.BusyDelay < 0 || s.IdlePoll < 0 {
		return errors.New("acquire: delays must be >= 0")
	}
	if s.WriteErrorLimit < 0 || s.ReadErrorLimit < 0 {
		return errors.New("acquire: error limits must be >= 0")
	}
	if s.MinDrainReads < 0 || s.DrainRatio < 0 {
		return errors.New("acquire: drain settings must be >= 0")
	}
	return nil
}

// Job is one measurement handed to the loop.
type Job struct {
	Mode       mode.Code
	Family     mode.Family
	Gain       device.Gain
	Waveform   waveform.Waveform
	Experiment int
}

// Result summarises a finished acquisition.
type Result struct {
	Family        mode.Family   `json:"family"`
	WordsWritten  int           `json:"words_written"`
	WordsRead     int           `json:"words_read"`
	Samples       int           `json:"samples"`
	WriteFailures int           `json:"write_failures"` // total failed write attempts
	ReadFailures  int           `json:"read_failures"`  // total failed read attempts
	Elapsed       time.Duration `json:"elapsed_ns"`
}

// Loop runs acquisitions against one device.
// It holds no per-measurement state; every Run owns a fresh session.
type Loop struct {
	dev   Device
	set   Settings
	board *status.Board

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Loop.
type Option func(*Loop)

// WithBoard publishes state and counters to b.
func WithBoard(b *status.Board) Option {
	return func(l *Loop) { l.board = b }
}

// WithClock replaces time.Now and the timer based sleep.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// New creates a loop with validated settings.
func New(dev Device, set Settings, opts ...Option) (*Loop, error) {
	if dev == nil {
		return nil, errors.New("acquire: device required")
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	l := &Loop{
		dev:   dev,
		set:   set,
		now:   time.Now,
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run executes setup, the family's cadence and teardown.
// Batches go to out; Run never closes it.
//
// Teardown is always attempted, on a context detached from ctx, so a
// cancelled or exhausted run still switches the output off.
func (l *Loop) Run(ctx context.Context, job Job, out chan<- []Sample) (Result, error) {
	s := l.newSession(job, out)
	start := l.now()

	l.board.Set(status.StateSetup)
	err := s.setup(ctx)
	if err == nil {
		switch job.Family {
		case mode.Potentiostatic:
			err = s.potentiostatic(ctx)
		case mode.Galvanostatic:
			err = s.galvanostatic(ctx)
		case mode.OpenCircuit:
			err = s.openCircuit(ctx)
		default:
			err = fmt.Errorf("acquire: unsupported family %v", job.Family)
		}
	}

	l.board.Set(status.StateTeardown)
	if terr := s.teardown(context.WithoutCancel(ctx)); terr != nil {
		log.Printf("acquire: teardown failed (mode=%s exp=%d): %v", job.Mode, job.Experiment, terr)
		err = errors.Join(err, terr)
	}

	res := s.result(l.now().Sub(start))
	l.finish(job, res, err)
	return res, err
}

func (l *Loop) finish(job Job, res Result, err error) {
	var ex *LinkExhaustedError
	switch {
	case err == nil:
		l.board.Set(status.StateDone)
	case errors.As(err, &ex):
		l.board.Set(status.StateFatal)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		l.board.Set(status.StateCancelled)
	default:
		l.board.Set(status.StateFatal)
	}

	secs := res.Elapsed.Seconds()
	rate := 0.0
	if secs > 0 {
		rate = float64(2*(res.WordsRead+res.WordsWritten)) / secs / 1000
	}
	log.Printf(
		"acquire: finished (mode=%s exp=%d): %.3f s, %.3f KB/s, sent=%d words, read=%d words, samples=%d, failed writes=%d, failed reads=%d",
		job.Mode, job.Experiment, secs, rate,
		res.WordsWritten, res.WordsRead, res.Samples, res.WriteFailures, res.ReadFailures,
	)
	if err != nil {
		log.Printf("acquire: aborted (mode=%s exp=%d): %v", job.Mode, job.Experiment, err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

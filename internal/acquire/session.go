// internal/acquire/session.go
package acquire

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tamzrod/potentiostat/internal/device"
	"github.com/tamzrod/potentiostat/internal/mode"
)

// session is the mutable state of one measurement.
// It is owned by the goroutine running Loop.Run and never shared.
type session struct {
	l   *Loop
	job Job
	out chan<- []Sample

	wr gate
	rd gate

	wordsWritten int // stimulus words accepted
	wordsRead    int // words returned by the FIFO
	samples      int // decoded samples
}

func (l *Loop) newSession(job Job, out chan<- []Sample) *session {
	return &session{
		l:   l,
		job: job,
		out: out,
		wr:  newGate(ChannelWrite, l.set.BusyDelay, l.set.WriteErrorLimit, l.now),
		rd:  newGate(ChannelRead, l.set.BusyDelay, l.set.ReadErrorLimit, l.now),
	}
}

// ---- setup / teardown ----

func (s *session) setup(ctx context.Context) error {
	dev := s.l.dev
	if err := dev.SendCommand(ctx, device.CmdSetTIAGain, uint16(s.job.Gain)); err != nil {
		return fmt.Errorf("acquire: setup: %w", err)
	}
	if err := dev.SendCommand(ctx, device.CmdClearFIFO, 1); err != nil {
		return fmt.Errorf("acquire: setup: %w", err)
	}
	// the PID starts the FIFO itself in galvanostatic mode
	if s.job.Family != mode.Galvanostatic {
		if err := dev.SendCommand(ctx, device.CmdFIFOStart, 1); err != nil {
			return fmt.Errorf("acquire: setup: %w", err)
		}
	}
	if err := dev.SendCommand(ctx, device.CmdSetSwitch, 1); err != nil {
		return fmt.Errorf("acquire: setup: %w", err)
	}
	return nil
}

func (s *session) teardown(ctx context.Context) error {
	dev := s.l.dev
	if err := dev.SendCommand(ctx, device.CmdSetSwitch, 0); err != nil {
		return fmt.Errorf("acquire: teardown: %w", err)
	}
	if err := dev.SendCommand(ctx, device.CmdTestStop, 1); err != nil {
		return fmt.Errorf("acquire: teardown: %w", err)
	}
	return nil
}

// ---- attempts ----

// failed books a failed attempt on g.
// It returns the error that must end the cadence, or nil to keep going.
func (s *session) failed(ctx context.Context, g *gate, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	exhausted := g.fail(err)
	s.l.board.Errors(s.wr.failures, s.rd.failures, err)
	if !exhausted {
		log.Printf("acquire: %s error, retrying (mode=%s exp=%d attempt=%d/%d): %v",
			g.channel, s.job.Mode, s.job.Experiment, g.failures, g.ceiling, err)
		return nil
	}
	return &LinkExhaustedError{
		Channel:      g.channel,
		Failures:     g.failures,
		Ceiling:      g.ceiling,
		WordsWritten: s.wordsWritten,
		WordsRead:    s.wordsRead,
		Last:         err,
	}
}

// write tries to send words to addr through the write gate.
// sent is false when the gate held the attempt back or the attempt failed.
func (s *session) write(ctx context.Context, addr uint16, words []uint16) (attempted, sent bool, err error) {
	if !s.wr.ready() {
		return false, false, nil
	}
	if err := s.l.dev.WriteWords(ctx, addr, words); err != nil {
		return true, false, s.failed(ctx, &s.wr, err)
	}
	s.wr.ok()
	return true, true, nil
}

// startPID sets a galvanostatic target through the write gate.
func (s *session) startPID(ctx context.Context, target float32) (attempted, sent bool, err error) {
	if !s.wr.ready() {
		return false, false, nil
	}
	if err := s.l.dev.StartPID(ctx, target); err != nil {
		return true, false, s.failed(ctx, &s.wr, err)
	}
	s.wr.ok()
	return true, true, nil
}

// read tries one FIFO read through the read gate and forwards the decoded batch.
// It returns the number of samples forwarded.
func (s *session) read(ctx context.Context) (attempted bool, n int, err error) {
	if !s.rd.ready() {
		return false, 0, nil
	}
	words, err := s.l.dev.ReadWords(ctx, device.AddrSamples, uint16(s.l.set.ChunkWords))
	if err != nil {
		return true, 0, s.failed(ctx, &s.rd, err)
	}

	batch := decode(words)
	s.wordsRead += len(words)
	s.samples += len(batch)
	s.l.board.Read(len(words), len(batch))
	if len(batch) > 0 {
		select {
		case s.out <- batch:
		case <-ctx.Done():
			return true, len(batch), ctx.Err()
		}
	}

	if rest := len(words) % wordsPerSample; rest != 0 {
		err := fmt.Errorf("%w (%d of %d words left over)", ErrPartialSample, rest, len(words))
		return true, len(batch), s.failed(ctx, &s.rd, err)
	}
	s.rd.ok()
	return true, len(batch), nil
}

// readUntil reads until cond holds, waiting out the busy delay instead of spinning.
func (s *session) readUntil(ctx context.Context, done func() bool) error {
	for !done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.rd.ready() {
			if err := s.l.sleep(ctx, s.rd.remaining()); err != nil {
				return err
			}
			continue
		}
		_, n, err := s.read(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := s.idle(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *session) idle(ctx context.Context) error {
	return s.l.sleep(ctx, s.l.set.IdlePoll)
}

func (s *session) result(elapsed time.Duration) Result {
	return Result{
		Family:        s.job.Family,
		WordsWritten:  s.wordsWritten,
		WordsRead:     s.wordsRead,
		Samples:       s.samples,
		WriteFailures: s.wr.total,
		ReadFailures:  s.rd.total,
		Elapsed:       elapsed,
	}
}

const wordsPerSample = 4

// decode turns FIFO words into samples.
// A trailing partial sample is dropped; read books it as a failure.
func decode(words []uint16) []Sample {
	n := len(words) / wordsPerSample
	out := make([]Sample, n)
	for i := range out {
		w := words[i*wordsPerSample : (i+1)*wordsPerSample]
		out[i] = Sample{
			Current:   device.WordsToFloat(w[0], w[1]),
			Potential: device.WordsToFloat(w[2], w[3]),
		}
	}
	return out
}

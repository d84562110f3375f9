// internal/acquire/cadence.go
package acquire

import (
	"context"
	"log"

	"github.com/tamzrod/potentiostat/internal/device"
	"github.com/tamzrod/potentiostat/internal/status"
)

// ---- potentiostatic ----

// potentiostatic streams the packed stimulus in chunks and reads twice per
// iteration, because the ADC pushes two values into the FIFO per host push.
// After the last chunk it keeps reading until the FIFO is drained.
func (s *session) potentiostatic(ctx context.Context) error {
	words := device.PackFloats(s.job.Waveform.Stimulus)
	chunk := s.l.set.ChunkWords
	board := s.l.board

	log.Printf("acquire: start (mode=%s exp=%d): %d words to write, %d points",
		s.job.Mode, s.job.Experiment, len(words), len(words)/2)

	if len(words) == 0 {
		board.Set(status.StateDraining)
	} else {
		board.Set(status.StateWriting)
	}

	next := 0
	post := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		progressed := false

		if next < len(words) {
			end := next + chunk
			if end > len(words) {
				end = len(words)
			}
			attempted, sent, err := s.write(ctx, device.AddrStimulus, words[next:end])
			if err != nil {
				return err
			}
			if sent {
				s.wordsWritten += end - next
				board.Wrote(end - next)
				next = end
				if next >= len(words) {
					board.Set(status.StateDraining)
				}
			}
			progressed = progressed || attempted
		}

		for i := 0; i < 2; i++ {
			attempted, n, err := s.read(ctx)
			if err != nil {
				return err
			}
			progressed = progressed || (attempted && n > 0)
		}

		if next >= len(words) {
			post++
			if post >= s.l.set.MinDrainReads && s.drained() {
				return nil
			}
		}

		if !progressed {
			if err := s.idle(ctx); err != nil {
				return err
			}
		}
	}
}

// drained applies the empirical drain rule words_read / words_written / 2 >= ratio.
// Nothing written counts as drained.
func (s *session) drained() bool {
	if s.wordsWritten == 0 {
		return true
	}
	return float64(s.wordsRead)/float64(s.wordsWritten)/2 >= s.l.set.DrainRatio
}

// ---- galvanostatic ----

// galvanostatic sets one PID target per segment, then only reads until the
// segment has produced as many samples as its length.
func (s *session) galvanostatic(ctx context.Context) error {
	segs := s.job.Waveform.Segments
	board := s.l.board

	log.Printf("acquire: start (mode=%s exp=%d): %d segments, %d points",
		s.job.Mode, s.job.Experiment, len(segs), s.job.Waveform.Len())

	for i, seg := range segs {
		board.Set(status.StateWriting)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !s.wr.ready() {
				if err := s.l.sleep(ctx, s.wr.remaining()); err != nil {
					return err
				}
				continue
			}
			_, sent, err := s.startPID(ctx, seg.Value)
			if err != nil {
				return err
			}
			if sent {
				break
			}
		}

		board.Set(status.StateDraining)
		got := 0
		want := int(seg.Length)
		start := s.samples
		if err := s.readUntil(ctx, func() bool {
			got = s.samples - start
			return got >= want
		}); err != nil {
			return err
		}
		log.Printf("acquire: segment %d/%d done (mode=%s exp=%d target=%g): %d samples",
			i+1, len(segs), s.job.Mode, s.job.Experiment, seg.Value, got)
	}
	return nil
}

// ---- open circuit ----

// openCircuit only reads, until 2*len(time) floats (len(time) samples) arrived.
func (s *session) openCircuit(ctx context.Context) error {
	want := 2 * s.job.Waveform.Len()

	log.Printf("acquire: start (mode=%s exp=%d): %d floats to read",
		s.job.Mode, s.job.Experiment, want)

	s.l.board.Set(status.StateDraining)
	return s.readUntil(ctx, func() bool {
		return 2*s.samples >= want
	})
}

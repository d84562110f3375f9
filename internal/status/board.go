// internal/status/board.go
package status

import (
	"sync"
	"time"
)

// Board holds the live run state.
// The acquisition loop writes it; HTTP and CLI readers copy it.
// All methods are safe on a nil *Board.
type Board struct {
	mu  sync.Mutex
	s   Snapshot
	now func() time.Time
}

// NewBoard returns an idle board.
func NewBoard() *Board {
	return &Board{now: time.Now}
}

// Begin resets the board for a new measurement.
func (b *Board) Begin(mode string, experiment int, path string, wordsTotal, samplesTotal int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.now()
	b.s = Snapshot{
		State:        StateIdle,
		Mode:         mode,
		Experiment:   experiment,
		Path:         path,
		WordsTotal:   wordsTotal,
		SamplesTotal: samplesTotal,
		Started:      t,
		Updated:      t,
	}
}

// Set moves the state machine.
// A terminal state is final until the next Begin.
func (b *Board) Set(s State) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.s.State.Terminal() {
		return
	}
	b.s.State = s
	b.s.Updated = b.now()
}

// Wrote records stimulus words accepted by the instrument.
func (b *Board) Wrote(words int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s.WordsWritten += words
	b.s.Updated = b.now()
}

// Read records words and decoded samples taken from the FIFO.
func (b *Board) Read(words, samples int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s.WordsRead += words
	b.s.Samples += samples
	b.s.Updated = b.now()
}

// Errors records the current channel counters and the last failure.
func (b *Board) Errors(write, read int, last error) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s.WriteErrors = write
	b.s.ReadErrors = read
	if last != nil {
		b.s.LastError = last.Error()
	}
	b.s.Updated = b.now()
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() Snapshot {
	if b == nil {
		return Snapshot{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.s
}

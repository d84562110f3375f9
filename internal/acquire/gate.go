// internal/acquire/gate.go
package acquire

import (
	"errors"
	"fmt"
	"time"
)

// Channel identifies the link direction a gate guards.
type Channel string

const (
	ChannelWrite Channel = "write"
	ChannelRead  Channel = "read"
)

// ErrPartialSample means a FIFO read did not end on a sample boundary.
// It is booked as a failed read.
var ErrPartialSample = errors.New("acquire: read ended inside a sample")

// LinkExhaustedError is fatal: a channel failed more often in a row than its ceiling allows.
type LinkExhaustedError struct {
	Channel      Channel
	Failures     int
	Ceiling      int
	WordsWritten int
	WordsRead    int
	Last         error
}

func (e *LinkExhaustedError) Error() string {
	return fmt.Sprintf(
		"acquire: %s errors exceeded the limit (%d > %d), instrument not responding (written=%d read=%d words): %v",
		e.Channel, e.Failures, e.Ceiling, e.WordsWritten, e.WordsRead, e.Last,
	)
}

func (e *LinkExhaustedError) Unwrap() error { return e.Last }

// gate is the busy-delay backoff of one channel.
// An attempt is allowed only when more than delay has passed since the last failure.
type gate struct {
	channel Channel
	delay   time.Duration
	ceiling int
	now     func() time.Time

	failures int       // consecutive, reset on success
	total    int       // all failures of the session
	lastFail time.Time // zero until the first failure
	last     error
}

func newGate(ch Channel, delay time.Duration, ceiling int, now func() time.Time) gate {
	return gate{channel: ch, delay: delay, ceiling: ceiling, now: now}
}

func (g *gate) ready() bool {
	return g.lastFail.IsZero() || g.now().Sub(g.lastFail) > g.delay
}

// remaining is the time left before ready turns true.
func (g *gate) remaining() time.Duration {
	if g.ready() {
		return 0
	}
	return g.delay - g.now().Sub(g.lastFail) + time.Nanosecond
}

// fail records a failed attempt. It reports whether the ceiling is exceeded.
func (g *gate) fail(err error) bool {
	g.lastFail = g.now()
	g.failures++
	g.total++
	g.last = err
	return g.failures > g.ceiling
}

func (g *gate) ok() {
	g.failures = 0
}

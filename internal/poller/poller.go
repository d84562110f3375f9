// internal/poller/poller.go
package poller

import (
	"errors"
	"time"

	"github.com/tamzrod/potentiostat/internal/status"
)

// Source reports the live run state.
type Source interface {
	Status() status.Snapshot
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	Interval time.Duration

	// ChangesOnly drops snapshots identical to the previous one.
	ChangesOnly bool
}

// Result is one poll.
type Result struct {
	At       time.Time
	Snapshot status.Snapshot
	Changed  bool
}

// Poller is a dumb, clock-driven reader of run state.
// It never touches the device.
type Poller struct {
	cfg Config
	src Source

	last status.Snapshot
	seen bool
	now  func() time.Time
}

// New creates a poller with immutable config.
func New(cfg Config, src Source) (*Poller, error) {
	if src == nil {
		return nil, errors.New("poller: source required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	return &Poller{cfg: cfg, src: src, now: time.Now}, nil
}

// PollOnce takes exactly one snapshot.
func (p *Poller) PollOnce() Result {
	snap := p.src.Status()
	res := Result{
		At:       p.now(),
		Snapshot: snap,
		Changed:  !p.seen || snap != p.last,
	}
	p.last = snap
	p.seen = true
	return res
}

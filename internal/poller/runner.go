// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run starts the ticker loop and emits results on out until ctx ends
// or the polled run reaches a terminal state. It closes out on return.
// One goroutine per source. No overlap.
func (p *Poller) Run(ctx context.Context, out chan<- Result) {
	defer close(out)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		res := p.PollOnce()
		if p.cfg.ChangesOnly && !res.Changed {
			continue
		}
		select {
		case out <- res:
		case <-ctx.Done():
			return
		}
		if res.Snapshot.State.Terminal() {
			return
		}
	}
}

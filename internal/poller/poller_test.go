// internal/poller/poller_test.go
package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/potentiostat/internal/status"
)

type fakeSource struct {
	mu   sync.Mutex
	snap status.Snapshot
}

func (f *fakeSource) Status() status.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) set(s status.State, samples int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.State = s
	f.snap.Samples = samples
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New(Config{Interval: time.Second}, nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
	if _, err := New(Config{}, &fakeSource{}); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestPollOnce_Changed(t *testing.T) {
	src := &fakeSource{}
	p, err := New(Config{Interval: time.Second}, src)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	if res := p.PollOnce(); !res.Changed {
		t.Fatalf("first poll must count as changed")
	}
	if res := p.PollOnce(); res.Changed {
		t.Fatalf("identical snapshot reported as changed")
	}
	src.set(status.StateDraining, 10)
	res := p.PollOnce()
	if !res.Changed || res.Snapshot.Samples != 10 {
		t.Fatalf("update missed: %+v", res)
	}
}

func TestRun_StopsAtTerminalState(t *testing.T) {
	src := &fakeSource{}
	src.set(status.StateDraining, 1)
	p, err := New(Config{Interval: time.Millisecond, ChangesOnly: true}, src)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	out := make(chan Result)
	go p.Run(context.Background(), out)

	first := <-out
	if first.Snapshot.State != status.StateDraining {
		t.Fatalf("first result %+v", first.Snapshot)
	}
	src.set(status.StateDone, 2)

	var last Result
	for res := range out {
		last = res
	}
	if last.Snapshot.State != status.StateDone {
		t.Fatalf("run ended on %v", last.Snapshot.State)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	p, err := New(Config{Interval: time.Millisecond}, &fakeSource{})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Result, 1)
	done := make(chan struct{})
	go func() {
		p.Run(ctx, out)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("run ignored cancellation")
	}
}

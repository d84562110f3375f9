// internal/status/board_test.go
package status

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestBoardLifecycle(t *testing.T) {
	b := NewBoard()
	clock := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	b.now = func() time.Time { return clock }

	b.Begin("CA", 3, "/tmp/x.csv", 100, 50)
	b.Set(StateSetup)
	if !b.Snapshot().State.Running() {
		t.Fatalf("setup should be running")
	}

	b.Wrote(40)
	b.Read(8, 2)
	b.Read(4, 1)
	b.Errors(1, 2, errors.New("timeout"))
	b.Set(StateFatal)
	b.Set(StateDone)

	s := b.Snapshot()
	if s.State != StateFatal {
		t.Fatalf("terminal state overwritten: %v", s.State)
	}
	if s.WordsWritten != 40 || s.WordsRead != 12 || s.Samples != 3 {
		t.Fatalf("counters: %+v", s)
	}
	if s.WriteErrors != 1 || s.ReadErrors != 2 || s.LastError != "timeout" {
		t.Fatalf("errors: %+v", s)
	}
	if s.Experiment != 3 || s.Mode != "CA" || !s.Started.Equal(clock) {
		t.Fatalf("header: %+v", s)
	}

	b.Begin("OCP", 4, "", 0, 0)
	if got := b.Snapshot(); got.State != StateIdle || got.Samples != 0 {
		t.Fatalf("begin did not reset: %+v", got)
	}
}

func TestNilBoard(t *testing.T) {
	var b *Board
	b.Begin("CA", 1, "", 0, 0)
	b.Set(StateDone)
	b.Read(1, 1)
	if b.Snapshot().State != StateIdle {
		t.Fatalf("nil board should report idle")
	}
}

func TestProgress(t *testing.T) {
	s := Snapshot{Samples: 5, SamplesTotal: 10}
	if s.Progress() != 0.5 {
		t.Fatalf("progress %v", s.Progress())
	}
	s.Samples = 20
	if s.Progress() != 1 {
		t.Fatalf("progress should clamp to 1")
	}
	if (Snapshot{State: StateDone}).Progress() != 1 {
		t.Fatalf("empty done run should be complete")
	}
}

func TestStateNames(t *testing.T) {
	if StateCancelled.String() != "cancelled" || State(99).String() != "unknown" {
		t.Fatalf("state names")
	}
	if !StateDone.Terminal() || StateDraining.Terminal() {
		t.Fatalf("terminal")
	}
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	for s := StateIdle; s <= StateCancelled; s++ {
		in := Snapshot{
			State:      s,
			Mode:       "CV",
			Experiment: 2,
			Samples:    10,
			Started:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		b, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("%v: marshal: %v", s, err)
		}
		var out Snapshot
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("%s: unmarshal: %v", b, err)
		}
		if diff := cmp.Diff(in, out); diff != "" {
			t.Fatalf("round trip (-want +got):\n%s", diff)
		}
	}

	var s State
	if err := s.UnmarshalText([]byte("paused")); err == nil {
		t.Fatalf("unknown state accepted")
	}
}

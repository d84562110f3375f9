// internal/controller/controller_test.go
package controller

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/potentiostat/internal/acquire"
	"github.com/tamzrod/potentiostat/internal/datalog"
	"github.com/tamzrod/potentiostat/internal/device"
	"github.com/tamzrod/potentiostat/internal/mode"
	"github.com/tamzrod/potentiostat/internal/sim"
	"github.com/tamzrod/potentiostat/internal/status"
	"github.com/tamzrod/potentiostat/internal/waveform"
)

func fastSettings() acquire.Settings {
	s := acquire.DefaultSettings()
	s.BusyDelay = time.Millisecond
	return s
}

func newController(t *testing.T, in *sim.Instrument) (*Controller, string) {
	t.Helper()
	dev, err := device.New(in)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	c, err := New(dev, Options{Settings: fastSettings(), DefaultFolder: dir})
	if err != nil {
		t.Fatal(err)
	}
	return c, dir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	return recs
}

func column(t *testing.T, recs [][]string, name string) int {
	t.Helper()
	for i, h := range recs[0] {
		if h == name {
			return i
		}
	}
	t.Fatalf("column %q missing in %v", name, recs[0])
	return -1
}

func TestConstantPotentialEndToEnd(t *testing.T) {
	in := sim.New(sim.DefaultConfig())
	c, _ := newController(t, in)

	rep, err := c.ApplyMeasurement(context.Background(), Request{
		Mode:             "CA",
		Params:           map[string]any{"potential": 0.5, "duration": 1.05},
		Gain:             0,
		SamplingInterval: 0.2,
		Filename:         "ca.csv",
	})
	if err != nil {
		t.Fatalf("measurement: %v", err)
	}

	d := 1.05
	if want := int(d / waveform.PointInterval); rep.Points != want {
		t.Fatalf("points %d, want %d", rep.Points, want)
	}
	if rep.Result.Samples != rep.Points {
		t.Fatalf("collected %d samples for %d points", rep.Result.Samples, rep.Points)
	}

	recs := readCSV(t, rep.Path)
	rows := recs[1:]
	if len(rows) < 5 || len(rows) > 6 || rep.Rows != len(rows) {
		t.Fatalf("expected 5 or 6 rows, got %d (report %d)", len(rows), rep.Rows)
	}

	ti := column(t, recs, datalog.ColTime)
	prev := -1.0
	for i, r := range rows {
		v, err := strconv.ParseFloat(r[ti], 64)
		if err != nil {
			t.Fatal(err)
		}
		if v < prev {
			t.Fatalf("time decreases at row %d: %v < %v", i, v, prev)
		}
		prev = v
	}
	if rows[0][column(t, recs, datalog.ColExp)] != "1" {
		t.Fatalf("first measurement should be experiment 1")
	}
	if in.Output() {
		t.Fatalf("output left on")
	}
	if c.LastPath() != rep.Path || c.Status().State != status.StateDone {
		t.Fatalf("last path %q state %v", c.LastPath(), c.Status().State)
	}
}

func TestCyclicVoltammetryLabels(t *testing.T) {
	in := sim.New(sim.DefaultConfig())
	c, _ := newController(t, in)

	rep, err := c.ApplyMeasurement(context.Background(), Request{
		Mode: "cv",
		Params: map[string]any{
			"start": -0.5, "vertex1": 0.5, "vertex2": -0.5, "end": 0.5, "scan_rate": 0.5, "cycles": 2,
		},
		Filename: "cv.csv",
	})
	if err != nil {
		t.Fatalf("measurement: %v", err)
	}

	recs := readCSV(t, rep.Path)
	ci := column(t, recs, datalog.ColCycle)
	labels := map[string]bool{}
	for _, r := range recs[1:] {
		labels[r[ci]] = true
	}
	if len(labels) != 3 || !labels["1"] || !labels["2"] || !labels["3"] {
		t.Fatalf("expected cycle labels 1, 2 and closing 3, got %v", labels)
	}
	if len(recs)-1 != rep.Points {
		t.Fatalf("undecimated run wrote %d rows for %d points", len(recs)-1, rep.Points)
	}
}

func TestGalvanostaticEndToEnd(t *testing.T) {
	in := sim.New(sim.DefaultConfig())
	c, _ := newController(t, in)

	rep, err := c.ApplyMeasurement(context.Background(), Request{
		Mode:     "GS",
		Params:   map[string]any{"start": -1e-5, "end": 1e-5, "num_steps": 3, "step_duration": 0.05},
		Gain:     1,
		Filename: "gs.csv",
	})
	if err != nil {
		t.Fatalf("measurement: %v", err)
	}
	if rep.Result.Samples < rep.Points {
		t.Fatalf("collected %d samples for %d points", rep.Result.Samples, rep.Points)
	}
	recs := readCSV(t, rep.Path)
	column(t, recs, datalog.ColAppliedCurrent)

	var pids int
	for _, cmd := range in.Commands() {
		if cmd == device.CmdPIDStart {
			pids++
		}
	}
	if pids != 3 {
		t.Fatalf("expected one PID start per segment, got %d", pids)
	}
}

func TestOpenCircuitEndToEnd(t *testing.T) {
	in := sim.New(sim.DefaultConfig())
	c, _ := newController(t, in)

	rep, err := c.ApplyMeasurement(context.Background(), Request{
		Mode: "OCP", Params: map[string]any{"duration": 0.1}, Filename: "ocp.csv",
	})
	if err != nil {
		t.Fatalf("measurement: %v", err)
	}
	recs := readCSV(t, rep.Path)
	if len(recs[0]) != 4 {
		t.Fatalf("ocp header %v", recs[0])
	}
	if rep.Result.WordsWritten != 0 {
		t.Fatalf("ocp wrote %d words", rep.Result.WordsWritten)
	}
}

func TestRejectsBeforeDeviceIO(t *testing.T) {
	in := sim.New(sim.DefaultConfig())
	c, dir := newController(t, in)
	ctx := context.Background()

	_, err := c.ApplyMeasurement(ctx, Request{Mode: "EIS", Params: map[string]any{}})
	if !errors.Is(err, mode.ErrUnknownMode) {
		t.Fatalf("expected unknown mode, got %v", err)
	}

	_, err = c.ApplyMeasurement(ctx, Request{Mode: "CA", Params: map[string]any{"potential": 0.5}})
	var pe *mode.ParameterError
	if !errors.As(err, &pe) || pe.Mode != mode.CA {
		t.Fatalf("expected parameter error, got %v", err)
	}

	_, err = c.ApplyMeasurement(ctx, Request{
		Mode: "CA", Params: map[string]any{"potential": 0.5, "duration": 1}, Gain: 7,
	})
	if !errors.Is(err, ErrInvalidGain) {
		t.Fatalf("expected gain error, got %v", err)
	}

	if n := len(in.Commands()); n != 0 {
		t.Fatalf("rejected requests reached the device (%d commands)", n)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("rejected requests created files")
	}
}

func TestDefaultPath(t *testing.T) {
	in := sim.New(sim.DefaultConfig())
	dev, _ := device.New(in)
	dir := t.TempDir()
	at := time.Date(2024, 5, 1, 9, 8, 7, 0, time.UTC)
	c, err := New(dev, Options{
		Settings:      fastSettings(),
		DefaultFolder: filepath.Join(dir, "nested"),
		Now:           func() time.Time { return at },
	})
	if err != nil {
		t.Fatal(err)
	}

	rep, err := c.ApplyMeasurement(context.Background(), Request{
		Mode: "OCP", Params: map[string]any{"duration": 0.01}, Gain: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "nested", "20240501_09h08m07s_OCP_tia3.csv")
	if rep.Path != want {
		t.Fatalf("path %q, want %q", rep.Path, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("default file missing: %v", err)
	}
}

func TestLinkExhaustionStillTearsDown(t *testing.T) {
	in := sim.New(sim.DefaultConfig())
	c, _ := newController(t, in)
	in.FailNext(1000, 0)

	rep, err := c.ApplyMeasurement(context.Background(), Request{
		Mode: "OCP", Params: map[string]any{"duration": 1}, Filename: "fatal.csv",
	})
	var ex *acquire.LinkExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected link exhaustion, got %v", err)
	}
	if !errors.Is(err, sim.ErrTimeout) {
		t.Fatalf("last error not carried: %v", err)
	}
	cmds := in.Commands()
	if n := len(cmds); n < 2 || cmds[n-2] != device.CmdSetSwitch || cmds[n-1] != device.CmdTestStop {
		t.Fatalf("teardown missing: %v", cmds)
	}
	if in.Output() {
		t.Fatalf("output left on after fatal error")
	}
	if c.Status().State != status.StateFatal {
		t.Fatalf("state %v", c.Status().State)
	}
	if recs := readCSV(t, rep.Path); len(recs) != 1 {
		t.Fatalf("expected header only, got %d records", len(recs))
	}
}

func TestCancelStopsMeasurement(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.Realtime = true
	in := sim.New(cfg)
	c, _ := newController(t, in)

	done := make(chan error, 1)
	go func() {
		_, err := c.ApplyMeasurement(context.Background(), Request{
			Mode: "OCP", Params: map[string]any{"duration": 30}, Filename: "cancel.csv",
		})
		done <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !c.Status().State.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("measurement never started")
		}
		time.Sleep(time.Millisecond)
	}
	if !c.Cancel() {
		t.Fatalf("cancel found no running measurement")
	}

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("cancelled measurement did not return")
	}
	if in.Output() {
		t.Fatalf("output left on after cancel")
	}
	if c.Status().State != status.StateCancelled {
		t.Fatalf("state %v", c.Status().State)
	}
	if c.Cancel() {
		t.Fatalf("cancel reported a running measurement after return")
	}
}

// exclusive fails the test if two measurements hold the output at once.
type exclusive struct {
	*device.Device
	mu      sync.Mutex
	active  int
	overlap bool
}

func (e *exclusive) SendCommand(ctx context.Context, cmd device.Command, param uint16) error {
	if cmd == device.CmdSetSwitch {
		e.mu.Lock()
		if param == 1 {
			e.active++
			if e.active > 1 {
				e.overlap = true
			}
		} else {
			e.active--
		}
		e.mu.Unlock()
	}
	return e.Device.SendCommand(ctx, cmd, param)
}

func TestMeasurementsAreSerialised(t *testing.T) {
	in := sim.New(sim.DefaultConfig())
	dev, _ := device.New(in)
	ex := &exclusive{Device: dev}
	c, err := New(ex, Options{Settings: fastSettings(), DefaultFolder: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	exps := make(chan int, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rep, err := c.ApplyMeasurement(context.Background(), Request{
				Mode:     "CA",
				Params:   map[string]any{"potential": 0.1, "duration": 0.05},
				Filename: "run" + strconv.Itoa(i) + ".csv",
			})
			if err != nil {
				t.Errorf("run %d: %v", i, err)
				return
			}
			exps <- rep.Experiment
		}(i)
	}
	wg.Wait()
	close(exps)

	if ex.overlap {
		t.Fatalf("two measurements held the device at once")
	}
	seen := map[int]bool{}
	for e := range exps {
		seen[e] = true
	}
	if len(seen) != 4 {
		t.Fatalf("experiment numbers not unique: %v", seen)
	}
}

func TestWaitForDeviceHonoursContext(t *testing.T) {
	in := sim.New(sim.DefaultConfig())
	c, _ := newController(t, in)
	c.sem <- struct{}{} // device busy
	defer func() { <-c.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ApplyMeasurement(ctx, Request{Mode: "OCP", Params: map[string]any{"duration": 0.01}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if len(in.Commands()) != 0 {
		t.Fatalf("waiting request touched the device")
	}
}

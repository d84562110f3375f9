// internal/controller/controller.go
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/tamzrod/potentiostat/internal/acquire"
	"github.com/tamzrod/potentiostat/internal/datalog"
	"github.com/tamzrod/potentiostat/internal/device"
	"github.com/tamzrod/potentiostat/internal/mode"
	"github.com/tamzrod/potentiostat/internal/status"
)

// ErrInvalidGain is returned for a TIA gain index outside 0..MaxGain.
var ErrInvalidGain = errors.New("invalid tia gain")

// Options configure a Controller. Zero values take defaults.
type Options struct {
	Settings      acquire.Settings
	DefaultFolder string
	QueueDepth    int
	Now           func() time.Time
	Board         *status.Board
}

// Request describes one measurement.
type Request struct {
	Mode             string         `json:"mode" yaml:"mode"`
	Params           map[string]any `json:"params" yaml:"params"`
	Gain             int            `json:"gain" yaml:"gain"`
	SamplingInterval float64        `json:"sampling_interval,omitempty" yaml:"sampling_interval,omitempty"`
	Filename         string         `json:"filename,omitempty" yaml:"filename,omitempty"`
	Folder           string         `json:"folder,omitempty" yaml:"folder,omitempty"`
}

// Report describes a finished measurement.
type Report struct {
	Mode       mode.Code      `json:"mode"`
	Experiment int            `json:"experiment"`
	Path       string         `json:"path"`
	Points     int            `json:"points"`
	Factor     int            `json:"factor"`
	Rows       int            `json:"rows"`
	Result     acquire.Result `json:"result"`
}

// Controller runs measurements one at a time against a single device.
type Controller struct {
	reg   *mode.Registry
	loop  *acquire.Loop
	board *status.Board
	opts  Options

	// sem holds the device for the full measurement; a channel so waiting honours ctx.
	sem chan struct{}

	mu       sync.Mutex
	exp      int
	lastPath string
	cancel   context.CancelFunc
}

// New builds a controller around dev.
func New(dev acquire.Device, opts Options) (*Controller, error) {
	if opts.Settings == (acquire.Settings{}) {
		opts.Settings = acquire.DefaultSettings()
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultFolder == "" {
		opts.DefaultFolder = "."
	}
	if opts.Board == nil {
		opts.Board = status.NewBoard()
	}

	loop, err := acquire.New(dev, opts.Settings, acquire.WithBoard(opts.Board))
	if err != nil {
		return nil, err
	}
	return &Controller{
		reg:   mode.NewRegistry(),
		loop:  loop,
		board: opts.Board,
		opts:  opts,
		sem:   make(chan struct{}, 1),
	}, nil
}

// ---- introspection ----

// Registry exposes the technique table.
func (c *Controller) Registry() *mode.Registry { return c.reg }

// Modes lists the available technique codes.
func (c *Controller) Modes() []mode.Code { return c.reg.Available() }

// ModeParams returns the parameter schema of a technique.
func (c *Controller) ModeParams(name string) ([]mode.Field, error) { return c.reg.Params(name) }

// Status returns the live run state.
func (c *Controller) Status() status.Snapshot { return c.board.Snapshot() }

// LastPath returns the output file of the most recent measurement.
func (c *Controller) LastPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPath
}

// Cancel stops the running measurement. It reports whether one was running.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// ---- measurement ----

// prepared is a request that passed every check not needing the device.
type prepared struct {
	code   mode.Code
	family mode.Family
	params mode.Params
	gain   device.Gain
	factor int
	path   string
}

func (c *Controller) prepare(req Request) (prepared, error) {
	code, err := c.reg.Lookup(req.Mode)
	if err != nil {
		return prepared{}, err
	}
	params, err := c.reg.Decode(string(code), req.Params)
	if err != nil {
		return prepared{}, err
	}
	family, _ := c.reg.Family(string(code))

	if req.Gain < 0 || req.Gain > int(device.MaxGain) {
		return prepared{}, fmt.Errorf("controller: %w %d (want 0..%d)", ErrInvalidGain, req.Gain, device.MaxGain)
	}
	gain := device.Gain(req.Gain)

	return prepared{
		code:   code,
		family: family,
		params: params,
		gain:   gain,
		factor: datalog.ReducingFactor(req.SamplingInterval),
		path:   c.resolvePath(req, code, gain),
	}, nil
}

func (c *Controller) resolvePath(req Request, code mode.Code, gain device.Gain) string {
	name := req.Filename
	if name == "" {
		name = datalog.DefaultName(c.opts.Now(), string(code), gain)
	}
	if filepath.IsAbs(name) && req.Folder == "" {
		return name
	}
	folder := req.Folder
	if folder == "" {
		folder = c.opts.DefaultFolder
	}
	return filepath.Join(folder, name)
}

// Check runs every validation ApplyMeasurement does before touching the device.
func (c *Controller) Check(req Request) error {
	p, err := c.prepare(req)
	if err != nil {
		return err
	}
	if err := p.params.Waveform().Check(); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	return nil
}

// ApplyMeasurement validates req, then runs it to completion, to a fatal
// link error or to cancellation. Technique and parameter errors are returned
// before any device I/O. Concurrent calls wait for the device.
func (c *Controller) ApplyMeasurement(ctx context.Context, req Request) (Report, error) {
	p, err := c.prepare(req)
	if err != nil {
		return Report{}, err
	}
	wave := p.params.Waveform()
	if err := wave.Check(); err != nil {
		return Report{}, fmt.Errorf("controller: %w", err)
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
	defer func() { <-c.sem }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.exp++
	exp := c.exp
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()

	rep := Report{Mode: p.code, Experiment: exp, Path: p.path, Points: wave.Len(), Factor: p.factor}

	f, err := datalog.Create(p.path)
	if err != nil {
		return rep, err
	}

	log.Printf("controller: measurement start (mode=%s exp=%d gain=%s points=%d factor=%d file=%s)",
		p.code, exp, p.gain, wave.Len(), p.factor, p.path)

	c.board.Begin(string(p.code), exp, p.path, 2*wave.Len(), wave.Len())

	batches := make(chan []acquire.Sample, c.opts.QueueDepth)
	logger := datalog.New(f, wave, datalog.Options{Factor: p.factor, Experiment: exp, Name: p.path})

	var logErr error
	logged := make(chan struct{})
	go func() {
		defer close(logged)
		logErr = logger.Run(batches)
	}()

	res, runErr := c.loop.Run(runCtx, acquire.Job{
		Mode:       p.code,
		Family:     p.family,
		Gain:       p.gain,
		Waveform:   wave,
		Experiment: exp,
	}, batches)

	close(batches)
	<-logged
	closeErr := f.Close()

	c.mu.Lock()
	c.lastPath = p.path
	c.mu.Unlock()

	rep.Rows = logger.Rows()
	rep.Result = res

	if logErr != nil {
		logErr = fmt.Errorf("controller: data logger: %w", logErr)
	}
	if closeErr != nil {
		closeErr = fmt.Errorf("controller: close %s: %w", p.path, closeErr)
	}
	return rep, errors.Join(runErr, logErr, closeErr)
}

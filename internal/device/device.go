// internal/device/device.go
package device

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

// Transport is the register link below the driver.
// Its shape matches a Modbus client (FC3 read, FC16 write), raw big-endian bytes.
type Transport interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// LinkError is returned for every failed transport operation.
// The driver never retries; retry policy belongs to the caller.
type LinkError struct {
	Op      string
	Address uint16
	Err     error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("device: %s addr=%#04x: %v", e.Op, e.Address, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// IsLinkError reports whether err came from the register link.
func IsLinkError(err error) bool {
	var le *LinkError
	return errors.As(err, &le)
}

var errShortRead = errors.New("short read")

// Device encodes domain commands as register writes.
// It is not safe for concurrent measurements; the controller serialises access.
type Device struct {
	tr      Transport
	limiter *rate.Limiter
}

// Option configures a Device.
type Option func(*Device)

// WithRateLimit caps the number of register requests per second.
// rps <= 0 disables pacing.
func WithRateLimit(rps float64) Option {
	return func(d *Device) {
		if rps > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// New wraps a transport.
func New(tr Transport, opts ...Option) (*Device, error) {
	if tr == nil {
		return nil, errors.New("device: transport required")
	}
	d := &Device{tr: tr}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// SendCommand writes [cmd, param] to the command register.
func (d *Device) SendCommand(ctx context.Context, cmd Command, param uint16) error {
	if err := d.WriteWords(ctx, AddrCommand, []uint16{uint16(cmd), param}); err != nil {
		return fmt.Errorf("%s(%d): %w", cmd, param, err)
	}
	return nil
}

// StartPID activates the onboard PID with target as setpoint.
func (d *Device) StartPID(ctx context.Context, target float32) error {
	w := FloatToWords(target)
	if err := d.WriteWords(ctx, AddrCommand, []uint16{uint16(CmdPIDStart), w[0], w[1]}); err != nil {
		return fmt.Errorf("%s(%g): %w", CmdPIDStart, target, err)
	}
	return nil
}

// WriteWords writes registers starting at addr.
func (d *Device) WriteWords(ctx context.Context, addr uint16, words []uint16) error {
	if len(words) == 0 {
		return nil
	}
	if err := d.wait(ctx); err != nil {
		return err
	}
	if _, err := d.tr.WriteMultipleRegisters(addr, uint16(len(words)), packRegisters(words)); err != nil {
		return &LinkError{Op: "write", Address: addr, Err: err}
	}
	return nil
}

// ReadWords reads count registers starting at addr.
func (d *Device) ReadWords(ctx context.Context, addr uint16, count uint16) ([]uint16, error) {
	if count == 0 {
		return nil, nil
	}
	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	raw, err := d.tr.ReadHoldingRegisters(addr, count)
	if err != nil {
		return nil, &LinkError{Op: "read", Address: addr, Err: err}
	}
	if len(raw)%2 != 0 {
		return nil, &LinkError{Op: "read", Address: addr, Err: fmt.Errorf("%w: odd byte count %d", errShortRead, len(raw))}
	}
	return unpackRegisters(raw), nil
}

func (d *Device) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.limiter == nil {
		return nil
	}
	return d.limiter.Wait(ctx)
}

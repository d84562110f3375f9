// internal/device/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/goburrow/modbus"
	"github.com/goburrow/serial"
)

// Client is a Modbus RTU connection to one instrument.
// It serializes requests: the link is half-duplex.
type Client struct {
	mu      sync.Mutex
	handler *modbus.RTUClientHandler
	client  modbus.Client
}

// Config is the serial line and framing setup.
type Config struct {
	Port     string
	SlaveID  uint8
	BaudRate int
	DataBits int
	Parity   string
	StopBits int
	Timeout  time.Duration

	// ConnectTimeout bounds the retry window of Connect.
	ConnectTimeout time.Duration

	// Debug dumps every frame to stderr.
	Debug bool
}

// Connect opens the port, retrying with exponential backoff.
// Missing ports and permission errors are not retried.
func Connect(cfg Config) (*Client, error) {
	if cfg.Port == "" {
		return nil, errors.New("device modbus: port required")
	}

	h := modbus.NewRTUClientHandler(cfg.Port)
	h.Config = serial.Config{
		Address:  cfg.Port,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.Timeout,
	}
	h.SlaveId = cfg.SlaveID
	if cfg.Debug {
		h.Logger = log.New(os.Stderr, "modbus: ", log.LstdFlags)
	}

	maxElapsed := cfg.ConnectTimeout
	if maxElapsed <= 0 {
		maxElapsed = 3 * time.Second
	}

	op := func() error {
		err := h.Connect()
		if err == nil {
			return nil
		}
		if permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      maxElapsed,
		Clock:               backoff.SystemClock,
	})
	if err != nil {
		return nil, fmt.Errorf("device modbus: connect %s: %w", cfg.Port, err)
	}

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func permanent(err error) bool {
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "no such") || strings.Contains(s, "denied")
}

// Close releases the serial port.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// ---- device.Transport ----

func (c *Client) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client.ReadHoldingRegisters(address, quantity)
}

func (c *Client) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client.WriteMultipleRegisters(address, quantity, value)
}

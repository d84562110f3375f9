// internal/config/validate.go
package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// LINK (ignored when the mock instrument replaces it)
	// ------------------------------------------------------------

	if !cfg.Mock.Enabled {
		l := cfg.Link
		if strings.TrimSpace(l.Port) == "" {
			return fmt.Errorf("link: port is required unless mock.enabled is set")
		}
		if l.SlaveID == 0 || l.SlaveID > 247 {
			return fmt.Errorf("link: slave_id must be in 1..247, got %d", l.SlaveID)
		}
		if l.BaudRate <= 0 {
			return fmt.Errorf("link: baud_rate must be > 0, got %d", l.BaudRate)
		}
		if l.DataBits != 0 && (l.DataBits < 5 || l.DataBits > 8) {
			return fmt.Errorf("link: data_bits must be in 5..8, got %d", l.DataBits)
		}
		if l.StopBits != 0 && l.StopBits != 1 && l.StopBits != 2 {
			return fmt.Errorf("link: stop_bits must be 1 or 2, got %d", l.StopBits)
		}
		switch strings.ToUpper(strings.TrimSpace(l.Parity)) {
		case "", "N", "E", "O":
		default:
			return fmt.Errorf("link: parity must be N, E or O, got %q", l.Parity)
		}
		if l.TimeoutMs < 0 || l.ConnectTimeoutMs < 0 {
			return fmt.Errorf("link: timeouts must be >= 0")
		}
		if l.MaxRequestsPerSecond < 0 {
			return fmt.Errorf("link: max_requests_per_second must be >= 0")
		}
	}

	// ------------------------------------------------------------
	// ACQUISITION
	// ------------------------------------------------------------

	if err := cfg.Acquisition.Settings().Validate(); err != nil {
		return fmt.Errorf("acquisition: %w", err)
	}

	// ------------------------------------------------------------
	// OUTPUT / SERVER / MOCK
	// ------------------------------------------------------------

	if cfg.Output.QueueDepth < 0 {
		return fmt.Errorf("output: queue_depth must be >= 0, got %d", cfg.Output.QueueDepth)
	}

	if cfg.Server.Addr != "" && !strings.Contains(cfg.Server.Addr, ":") {
		return fmt.Errorf("server: addr %q must be host:port", cfg.Server.Addr)
	}

	if cfg.Mock.Enabled {
		if cfg.Mock.CellOhms < 0 {
			return fmt.Errorf("mock: cell_ohms must be >= 0")
		}
		if cfg.Mock.LatencyMs < 0 || cfg.Mock.FailEvery < 0 {
			return fmt.Errorf("mock: latency_ms and fail_every must be >= 0")
		}
	}

	return nil
}

// internal/config/config.go
package config

import (
	"time"

	"github.com/tamzrod/potentiostat/internal/acquire"
	"github.com/tamzrod/potentiostat/internal/device/modbus"
	"github.com/tamzrod/potentiostat/internal/sim"
)

// DefaultFileName is read from the working directory when no path is given.
const DefaultFileName = "beep.yml"

type Config struct {
	Link        LinkConfig        `koanf:"link" yaml:"link"`
	Acquisition AcquisitionConfig `koanf:"acquisition" yaml:"acquisition"`
	Output      OutputConfig      `koanf:"output" yaml:"output"`
	Server      ServerConfig      `koanf:"server" yaml:"server"`
	Mock        MockConfig        `koanf:"mock" yaml:"mock"`
}

// ---- LINK ----

type LinkConfig struct {
	Port             string `koanf:"port" yaml:"port"`
	SlaveID          uint8  `koanf:"slave_id" yaml:"slave_id"`
	BaudRate         int    `koanf:"baud_rate" yaml:"baud_rate"`
	DataBits         int    `koanf:"data_bits" yaml:"data_bits"`
	Parity           string `koanf:"parity" yaml:"parity"` // N, E or O
	StopBits         int    `koanf:"stop_bits" yaml:"stop_bits"`
	TimeoutMs        int    `koanf:"timeout_ms" yaml:"timeout_ms"`
	ConnectTimeoutMs int    `koanf:"connect_timeout_ms" yaml:"connect_timeout_ms"`

	// 0 = unpaced
	MaxRequestsPerSecond float64 `koanf:"max_requests_per_second" yaml:"max_requests_per_second"`

	Debug bool `koanf:"debug" yaml:"debug"`
}

// ---- ACQUISITION ----

type AcquisitionConfig struct {
	ChunkWords      int     `koanf:"chunk_words" yaml:"chunk_words"`
	BusyDelayMs     int     `koanf:"busy_delay_ms" yaml:"busy_delay_ms"`
	WriteErrorLimit int     `koanf:"write_error_limit" yaml:"write_error_limit"`
	ReadErrorLimit  int     `koanf:"read_error_limit" yaml:"read_error_limit"`
	MinDrainReads   int     `koanf:"min_drain_reads" yaml:"min_drain_reads"`
	DrainRatio      float64 `koanf:"drain_ratio" yaml:"drain_ratio"`
	IdlePollMs      int     `koanf:"idle_poll_ms" yaml:"idle_poll_ms"`
}

// ---- OUTPUT ----

type OutputConfig struct {
	DefaultFolder string `koanf:"default_folder" yaml:"default_folder"`
	QueueDepth    int    `koanf:"queue_depth" yaml:"queue_depth"`
}

// ---- SERVER ----

type ServerConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// ---- MOCK ----

// MockConfig sets up the simulated instrument used instead of the serial link.
type MockConfig struct {
	Enabled       bool    `koanf:"enabled" yaml:"enabled"`
	CellOhms      float64 `koanf:"cell_ohms" yaml:"cell_ohms"`
	RestPotential float64 `koanf:"rest_potential" yaml:"rest_potential"`
	Realtime      bool    `koanf:"realtime" yaml:"realtime"`
	LatencyMs     int     `koanf:"latency_ms" yaml:"latency_ms"`
	FailEvery     int     `koanf:"fail_every" yaml:"fail_every"`
}

// Default returns the configuration the BEEP board ships with.
func Default() Config {
	set := acquire.DefaultSettings()
	mock := sim.DefaultConfig()
	return Config{
		Link: LinkConfig{
			Port:             defaultPort(),
			SlaveID:          1,
			BaudRate:         1500000,
			DataBits:         8,
			Parity:           "N",
			StopBits:         1,
			TimeoutMs:        30,
			ConnectTimeoutMs: 3000,
		},
		Acquisition: AcquisitionConfig{
			ChunkWords:      set.ChunkWords,
			BusyDelayMs:     int(set.BusyDelay / time.Millisecond),
			WriteErrorLimit: set.WriteErrorLimit,
			ReadErrorLimit:  set.ReadErrorLimit,
			MinDrainReads:   set.MinDrainReads,
			DrainRatio:      set.DrainRatio,
			IdlePollMs:      int(set.IdlePoll / time.Millisecond),
		},
		Output: OutputConfig{
			DefaultFolder: ".",
			QueueDepth:    64,
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
		Mock: MockConfig{
			CellOhms:      mock.CellOhms,
			RestPotential: float64(mock.RestPotential),
		},
	}
}

// ---- runtime views ----

// Modbus maps the link section onto the RTU client setup.
func (c LinkConfig) Modbus() modbus.Config {
	return modbus.Config{
		Port:           c.Port,
		SlaveID:        c.SlaveID,
		BaudRate:       c.BaudRate,
		DataBits:       c.DataBits,
		Parity:         c.Parity,
		StopBits:       c.StopBits,
		Timeout:        time.Duration(c.TimeoutMs) * time.Millisecond,
		ConnectTimeout: time.Duration(c.ConnectTimeoutMs) * time.Millisecond,
		Debug:          c.Debug,
	}
}

// Settings maps the acquisition section onto the loop cadence.
func (c AcquisitionConfig) Settings() acquire.Settings {
	return acquire.Settings{
		ChunkWords:      c.ChunkWords,
		BusyDelay:       time.Duration(c.BusyDelayMs) * time.Millisecond,
		WriteErrorLimit: c.WriteErrorLimit,
		ReadErrorLimit:  c.ReadErrorLimit,
		MinDrainReads:   c.MinDrainReads,
		DrainRatio:      c.DrainRatio,
		IdlePoll:        time.Duration(c.IdlePollMs) * time.Millisecond,
	}
}

// Sim maps the mock section onto the simulated instrument.
func (c MockConfig) Sim() sim.Config {
	return sim.Config{
		CellOhms:      c.CellOhms,
		RestPotential: float32(c.RestPotential),
		TIAVolts:      sim.DefaultConfig().TIAVolts,
		Realtime:      c.Realtime,
		Latency:       time.Duration(c.LatencyMs) * time.Millisecond,
		FailEvery:     c.FailEvery,
	}
}

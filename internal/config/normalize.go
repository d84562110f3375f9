// internal/config/normalize.go
package config

import "strings"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	l := &cfg.Link
	l.Port = strings.TrimSpace(l.Port)
	l.Parity = strings.ToUpper(strings.TrimSpace(l.Parity))
	if l.Parity == "" {
		l.Parity = "N"
	}
	if l.DataBits == 0 {
		l.DataBits = 8
	}
	if l.StopBits == 0 {
		l.StopBits = 1
	}

	if strings.TrimSpace(cfg.Output.DefaultFolder) == "" {
		cfg.Output.DefaultFolder = "."
	}
	if cfg.Output.QueueDepth == 0 {
		cfg.Output.QueueDepth = 64
	}
}

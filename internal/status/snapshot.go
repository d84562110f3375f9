// internal/status/snapshot.go
package status

import "time"

// Snapshot is a copy of the run state at one instant.
// It contains no logic.
type Snapshot struct {
	State        State     `json:"state" yaml:"state"`
	Mode         string    `json:"mode,omitempty" yaml:"mode,omitempty"`
	Experiment   int       `json:"experiment" yaml:"experiment"`
	Path         string    `json:"path,omitempty" yaml:"path,omitempty"`
	WordsWritten int       `json:"words_written" yaml:"words_written"`
	WordsTotal   int       `json:"words_total" yaml:"words_total"`
	WordsRead    int       `json:"words_read" yaml:"words_read"`
	Samples      int       `json:"samples" yaml:"samples"`
	SamplesTotal int       `json:"samples_total" yaml:"samples_total"`
	WriteErrors  int       `json:"write_errors" yaml:"write_errors"`
	ReadErrors   int       `json:"read_errors" yaml:"read_errors"`
	LastError    string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	Started      time.Time `json:"started,omitempty" yaml:"started,omitempty"`
	Updated      time.Time `json:"updated,omitempty" yaml:"updated,omitempty"`
}

// Progress returns the fraction of expected samples collected, in [0, 1].
func (s Snapshot) Progress() float64 {
	if s.SamplesTotal <= 0 {
		if s.State == StateDone {
			return 1
		}
		return 0
	}
	p := float64(s.Samples) / float64(s.SamplesTotal)
	if p > 1 {
		return 1
	}
	return p
}

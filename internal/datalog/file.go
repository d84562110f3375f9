// internal/datalog/file.go
package datalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tamzrod/potentiostat/internal/device"
)

// ErrNoPath is returned by Create for an empty path.
var ErrNoPath = errors.New("datalog: empty output path")

// DefaultName is the timestamped file name used when the caller gives none,
// e.g. 20240501_12h00m00s_CV_tia2.csv.
func DefaultName(at time.Time, mode string, gain device.Gain) string {
	return fmt.Sprintf("%s_%s_tia%d.csv", at.Format("20060102_15h04m05s"), mode, uint16(gain))
}

// Create opens path for writing, creating missing parent folders.
func Create(path string) (*os.File, error) {
	if path == "" {
		return nil, ErrNoPath
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("datalog: create folder: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("datalog: %w", err)
	}
	return f, nil
}

// cmd/beep/cmd/conf_test.go
package cmd

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tamzrod/potentiostat/internal/config"
)

func TestWriteDefaultConfigLoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beep.yml")
	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := config.Default()
	config.Normalize(&want)
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
}

func TestWriteDefaultConfigReportsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "beep.yml")
	if err := writeDefaultConfig(path); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

// Package testutil provides isolated client-installation fixtures for
// tests. Every fixture lives in a t.TempDir so tests never touch a real
// installation and need no manual cleanup.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mittelgard/clientforge/internal/config"
)

// NewDataset creates a dataset backed by a temporary installation
// directory. When image is non-nil it is written as the working client
// executable.
func NewDataset(t *testing.T, name string, image []byte) *config.Dataset {
	t.Helper()

	ds := &config.Dataset{
		Name:        name,
		InstallPath: t.TempDir(),
		Locale:      "enUS",
	}
	if image != nil {
		if err := os.WriteFile(ds.ExePath(), image, 0o755); err != nil {
			t.Fatalf("write executable: %v", err)
		}
	}
	return ds
}

// MakeDataDir creates the overlay data directory of the dataset,
// including the locale subdirectory when the dataset is locale-scoped.
func MakeDataDir(t *testing.T, ds *config.Dataset) {
	t.Helper()

	dir := ds.DataDir()
	if ds.LocaleScoped {
		dir = filepath.Join(dir, ds.Locale)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create data dir: %v", err)
	}
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

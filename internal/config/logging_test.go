package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupLogFilePrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	old := []string{
		"arbor-2024-01-01T00-00-00.log",
		"arbor-2024-01-02T00-00-00.log",
		"arbor-2024-01-03T00-00-00.log",
	}
	for _, name := range old {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	f, err := SetupLogFile(dir, 2)
	if err != nil {
		t.Fatalf("SetupLogFile() error = %v", err)
	}
	defer f.Close()

	if base := filepath.Base(f.Name()); !strings.HasPrefix(base, "arbor-") {
		t.Errorf("log file name = %q, want arbor- prefix", base)
	}

	files, err := filepath.Glob(filepath.Join(dir, "arbor-*.log"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d log files after prune, want 2: %v", len(files), files)
	}
	// The fresh file sorts last, so the two oldest must be gone.
	for _, name := range old[:2] {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s survived the prune", name)
		}
	}
}

func TestSetupLogFileCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	f, err := SetupLogFile(dir, 5)
	if err != nil {
		t.Fatalf("SetupLogFile() error = %v", err)
	}
	defer f.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("log directory not created: %v", err)
	}
}

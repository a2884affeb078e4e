package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	cfg := Default()

	if cfg.Polling.IntervalMS != 10 {
		t.Errorf("Polling.IntervalMS = %d, want 10", cfg.Polling.IntervalMS)
	}
	if cfg.CabinArray.CabinCount != 25 {
		t.Errorf("CabinArray.CabinCount = %d, want 25", cfg.CabinArray.CabinCount)
	}
	if cfg.Runtime.Threshold != 0.3 {
		t.Errorf("Runtime.Threshold = %v, want 0.3", cfg.Runtime.Threshold)
	}
	if cfg.Health.MaxStoreSizeMB != 450 {
		t.Errorf("Health.MaxStoreSizeMB = %v, want 450", cfg.Health.MaxStoreSizeMB)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	want := Default()
	if cfg.Polling != want.Polling || cfg.CabinArray != want.CabinArray {
		t.Fatalf("expected defaults for missing config file, got %+v", cfg)
	}
}

func TestLoadMalformedYAMLYieldsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("polling: [this is not a mapping"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg := Load(path)
	want := Default()
	if cfg.Polling != want.Polling {
		t.Fatalf("expected defaults on malformed YAML, got %+v", cfg.Polling)
	}
}

func TestLoadOverridesCabinCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	yamlBody := "cabin_array:\n  db_number: 9\n  start_offset: 0\n  cabin_count: 40\n  cabin_size_bytes: 12\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg := Load(path)
	if cfg.CabinArray.CabinCount != 40 {
		t.Fatalf("CabinArray.CabinCount = %d, want 40", cfg.CabinArray.CabinCount)
	}
	// untouched sections keep their defaults
	if cfg.Polling.IntervalMS != 10 {
		t.Fatalf("Polling.IntervalMS = %d, want unchanged default 10", cfg.Polling.IntervalMS)
	}
}

func TestEnvOverrideWinsOverDefault(t *testing.T) {
	t.Setenv("LDPJ_PLC_IP", "10.0.0.50")
	t.Setenv("LDPJ_CABIN_COUNT", "30")

	cfg := Load("")
	if cfg.Connection.IP != "10.0.0.50" {
		t.Errorf("Connection.IP = %q, want env override", cfg.Connection.IP)
	}
	if cfg.CabinArray.CabinCount != 30 {
		t.Errorf("CabinArray.CabinCount = %d, want env override 30", cfg.CabinArray.CabinCount)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsBoundedFieldsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	initialYAML := "runtime:\n  threshold: 0.3\n  feature_mode: \"7d\"\n"
	if err := os.WriteFile(path, []byte(initialYAML), 0o644); err != nil {
		t.Fatalf("writing initial config: %v", err)
	}

	initial := Load(path)
	w := NewWatcher(path, initial)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	updatedYAML := "runtime:\n  threshold: 0.55\n  feature_mode: \"7d\"\nconnection:\n  ip: \"10.0.0.99\"\n"
	if err := os.WriteFile(path, []byte(updatedYAML), 0o644); err != nil {
		t.Fatalf("writing updated config: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Current().Runtime.Threshold == 0.55 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	got := w.Current()
	if got.Runtime.Threshold != 0.55 {
		t.Fatalf("expected threshold to hot-reload to 0.55, got %v", got.Runtime.Threshold)
	}
	if got.Connection.IP == "10.0.0.99" {
		t.Fatalf("connection.ip must not hot-reload, but it changed")
	}
}

func TestApplyLiveFieldsLeavesConnectionAndDatabaseUntouched(t *testing.T) {
	base := Default()
	base.Connection.IP = "192.168.9.9"
	base.Runtime.Database.Path = "/data/ldpj.db"

	reloaded := Default()
	reloaded.Connection.IP = "10.1.1.1"
	reloaded.Runtime.Database.Path = "/tmp/other.db"
	reloaded.Runtime.Threshold = 0.42

	merged := applyLiveFields(base, reloaded)

	if merged.Connection.IP != "192.168.9.9" {
		t.Fatalf("connection.ip should not change, got %q", merged.Connection.IP)
	}
	if merged.Runtime.Database.Path != "/data/ldpj.db" {
		t.Fatalf("database path should not change, got %q", merged.Runtime.Database.Path)
	}
	if merged.Runtime.Threshold != 0.42 {
		t.Fatalf("threshold should hot-reload, got %v", merged.Runtime.Threshold)
	}
}

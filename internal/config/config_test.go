package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sanonone/latticedb/pkg/engine"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture failed: %v", err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != Default() {
		t.Errorf("got %+v, want defaults", cfg)
	}
	if cfg.Driver != engine.DriverSQLite || cfg.BatchSize != engine.DefaultBatchSize {
		t.Errorf("defaults drifted: %+v", cfg)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, "dsn: /tmp/other.db\nlog_mode: dev\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DSN != "/tmp/other.db" || cfg.LogMode != "dev" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Driver != engine.DriverSQLite || cfg.BatchSize != engine.DefaultBatchSize {
		t.Errorf("unset fields lost their defaults: %+v", cfg)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("LATTICE_TEST_DSN", "expanded.db")
	path := writeFile(t, "dsn: ${LATTICE_TEST_DSN}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DSN != "expanded.db" {
		t.Errorf("got dsn %q, want %q", cfg.DSN, "expanded.db")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "drivr: sqlite\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected strict decoding to reject a typoed field")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoggerModes(t *testing.T) {
	for _, mode := range []string{"", "prod", "dev", "silent"} {
		cfg := Config{LogMode: mode}
		log, err := cfg.Logger()
		if err != nil {
			t.Errorf("mode %q: %v", mode, err)
		}
		if log == nil {
			t.Errorf("mode %q: nil logger", mode)
		}
	}
	if _, err := (Config{LogMode: "verbose"}).Logger(); err == nil {
		t.Error("expected unknown log_mode to fail")
	}
}

func TestEngineOptionsMapping(t *testing.T) {
	cfg := Config{Driver: engine.DriverPostgres, DSN: "postgres://x", BatchSize: 42}
	opts := cfg.EngineOptions(nil)
	if opts.Driver != engine.DriverPostgres || opts.DSN != "postgres://x" || opts.BatchSize != 42 {
		t.Errorf("options not mapped: %+v", opts)
	}
}

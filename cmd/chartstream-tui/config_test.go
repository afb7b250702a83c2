package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tinytelemetry/chartstream/internal/model"
)

func TestLoadTUIConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadTUIConfig("")
	if err != nil {
		t.Fatalf("loadTUIConfig: %v", err)
	}
	if !cfg.Autoplay || !cfg.HistoryEnabled {
		t.Errorf("autoplay/history = %v/%v, want both enabled", cfg.Autoplay, cfg.HistoryEnabled)
	}
	if cfg.RunsLimit != model.DefaultRunsLimit {
		t.Errorf("RunsLimit = %d, want %d", cfg.RunsLimit, model.DefaultRunsLimit)
	}
}

func TestLoadTUIConfigOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CHARTSTREAM_AUTOPLAY", "false")

	path := filepath.Join(home, "config.yml")
	if err := os.WriteFile(path, []byte("speed: 0.5\nruns-limit: 5\ndb-path: ~/h.duckdb\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadTUIConfig(path)
	if err != nil {
		t.Fatalf("loadTUIConfig: %v", err)
	}
	if cfg.Autoplay {
		t.Error("Autoplay = true, want env override to false")
	}
	if cfg.Speed != 0.5 || cfg.RunsLimit != 5 {
		t.Errorf("speed/limit = %v/%d, want 0.5/5", cfg.Speed, cfg.RunsLimit)
	}
	if want := filepath.Join(home, "h.duckdb"); cfg.DBPath != want {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, want)
	}
}

func TestLoadTUIConfigInvalidDelay(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "config.yml")
	if err := os.WriteFile(path, []byte("min-delay: 1s\nmax-delay: 10ms\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTUIConfig(path); err == nil {
		t.Fatal("expected error for inverted delay window")
	}
}

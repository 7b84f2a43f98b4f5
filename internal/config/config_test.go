package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	body := `
[simulation]
cell_size = 25.0
decision_cache_capacity = 512
decision_cache_ttl_ticks = 3
worker_count = 2

[observer]
enabled = true
bind_address = "0.0.0.0:9000"

[logging]
level = "debug"
format = "json"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Simulation.CellSize != 25.0 || cfg.Simulation.DecisionCacheCapacity != 512 {
		t.Fatalf("simulation overrides: %+v", cfg.Simulation)
	}
	if cfg.Simulation.DecisionCacheTTLTicks != 3 || cfg.Simulation.WorkerCount != 2 {
		t.Fatalf("simulation overrides: %+v", cfg.Simulation)
	}
	if !cfg.Observer.Enabled || cfg.Observer.BindAddress != "0.0.0.0:9000" {
		t.Fatalf("observer overrides: %+v", cfg.Observer)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging overrides: %+v", cfg.Logging)
	}

	// Untouched sections keep defaults.
	if cfg.Database.Enabled || cfg.Persistence.AutosaveTicks != 600 {
		t.Fatalf("defaults lost: db %+v persistence %+v", cfg.Database, cfg.Persistence)
	}
	if cfg.Data.Dir != "data/yaml" || cfg.Scripts.Dir != "scripts" {
		t.Fatalf("path defaults: %+v %+v", cfg.Data, cfg.Scripts)
	}
	if cfg.Server.StartTime == 0 {
		t.Fatal("start time not set")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing config")
	}
}

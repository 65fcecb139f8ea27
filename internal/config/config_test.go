package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forcebridge/forcebridge/internal/comm"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if cfg.GetPrecision() != comm.Single {
		t.Errorf("default precision = %v, want single", cfg.GetPrecision())
	}
	if cfg.GetForceMode() != comm.ForceOverwrite {
		t.Errorf("default force mode = %v, want overwrite", cfg.GetForceMode())
	}
	if cfg.Timeout() != time.Duration(DefaultTimeoutMS)*time.Millisecond {
		t.Errorf("timeout = %v", cfg.Timeout())
	}
}

func TestConfigSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	cfg := DefaultConfig()
	cfg.Channel = "roundtrip"
	cfg.Particles = 256
	cfg.NNeighs = 16
	cfg.Precision = "double"
	cfg.ForceMode = "output"
	cfg.Virial = true

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip mismatch:\nsaved  %+v\nloaded %+v", cfg, loaded)
	}
}

func TestConfigLoadAppliesDefaults(t *testing.T) {
	// A partial file only overrides what it names.
	path := filepath.Join(t.TempDir(), "partial.yaml")
	partial := []byte("channel: partial\nparticles: 7\n")
	if err := os.WriteFile(path, partial, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Channel != "partial" || cfg.Particles != 7 {
		t.Errorf("overrides lost: %+v", cfg)
	}
	if cfg.Dt != DefaultDt || cfg.Steps != DefaultSteps || cfg.Precision != "single" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.Channel = "" },
		func(c *Config) { c.Particles = -1 },
		func(c *Config) { c.NNeighs = -2 },
		func(c *Config) { c.Dt = 0 },
		func(c *Config) { c.Steps = 0 },
		func(c *Config) { c.Precision = "half" },
		func(c *Config) { c.ForceMode = "merge" },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, cfg)
		}
	}
}

func TestPresetsValid(t *testing.T) {
	if len(ListPresets()) == 0 {
		t.Fatal("no presets registered")
	}
	for _, name := range ListPresets() {
		p := GetPreset(name)
		if p == nil {
			t.Fatalf("preset %q listed but not returned", name)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("preset %q invalid: %v", name, err)
		}
	}
	if GetPreset("nope") != nil {
		t.Error("unknown preset should return nil")
	}
}

func TestGetPresetReturnsCopy(t *testing.T) {
	a := GetPreset("small")
	a.Particles = 99999
	b := GetPreset("small")
	if b.Particles == 99999 {
		t.Error("preset mutation leaked into the registry")
	}
}

func TestPerturberPresetIsOutputMode(t *testing.T) {
	p := GetPreset("perturber")
	if p == nil {
		t.Fatal("perturber preset missing")
	}
	if p.GetForceMode() != comm.ForceOutput {
		t.Errorf("force mode = %v, want output", p.GetForceMode())
	}
	if p.NNeighs != 0 || p.SendNeighbors {
		t.Error("perturber should not exchange neighbors")
	}
}

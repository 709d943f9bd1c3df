package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSampleRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if cfg.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("port = %d, want %d", cfg.Server.Port, DefaultConfig().Server.Port)
	}
	if cfg.Source != path {
		t.Errorf("source = %q, want %q", cfg.Source, path)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PIEMONTE_PORT", "7001")
	t.Setenv("PIEMONTE_DATA_DIR", "/tmp/elsewhere")
	t.Setenv("PIEMONTE_VECTORIZED", "false")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("port = %d, want 7001", cfg.Server.Port)
	}
	if cfg.DataDir != "/tmp/elsewhere" {
		t.Errorf("data dir = %q", cfg.DataDir)
	}
	if cfg.Exec.Vectorized {
		t.Error("vectorized should be off")
	}
}

func TestValidateRejectsCollisions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.AdminPort = cfg.Server.Port
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for colliding ports")
	}
	cfg = DefaultConfig()
	cfg.Storage.CacheSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero cache size")
	}
}

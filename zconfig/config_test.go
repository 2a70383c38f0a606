package zconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Variant != VariantStandard {
		t.Fatalf("default variant = %v, want standard", cfg.Variant)
	}
	if cfg.FabricKind != FabricLocal {
		t.Fatalf("default fabric kind = %v, want local", cfg.FabricKind)
	}
	if cfg.SolGatherPeriod != 5*time.Second {
		t.Fatalf("default gather period = %v, want 5s", cfg.SolGatherPeriod)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solver.yaml")
	yaml := []byte(`
timeout: 30s
sol_gather_period: 2s
expected_chi: 4
variant: balanced
fabric_kind: tcp
peers:
  - 127.0.0.1:9001
  - 127.0.0.1:9002
log_level: debug
`)
	if err := os.WriteFile(path, yaml, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.SolGatherPeriod != 2*time.Second {
		t.Fatalf("sol_gather_period = %v, want 2s", cfg.SolGatherPeriod)
	}
	if cfg.ExpectedChi != 4 {
		t.Fatalf("expected_chi = %d, want 4", cfg.ExpectedChi)
	}
	if cfg.Variant != VariantBalanced {
		t.Fatalf("variant = %v, want balanced", cfg.Variant)
	}
	if cfg.FabricKind != FabricTCP {
		t.Fatalf("fabric_kind = %v, want tcp", cfg.FabricKind)
	}
	if len(cfg.Peers) != 2 || cfg.Peers[0] != "127.0.0.1:9001" {
		t.Fatalf("peers = %v, want two entries starting with 127.0.0.1:9001", cfg.Peers)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log_level = %q, want debug", cfg.LogLevel)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solver.yaml")
	if err := os.WriteFile(path, []byte("timeout: 30s\nvariant: standard\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	t.Setenv("ZYKOV_TIMEOUT", "90s")
	t.Setenv("ZYKOV_VARIANT", "BALANCED")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != 90*time.Second {
		t.Fatalf("timeout = %v, want 90s (env override)", cfg.Timeout)
	}
	if cfg.Variant != VariantBalanced {
		t.Fatalf("variant = %v, want balanced (env override, lowercased)", cfg.Variant)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	want := Default()
	if cfg.Timeout != want.Timeout || cfg.Variant != want.Variant || cfg.FabricKind != want.FabricKind {
		t.Fatalf("Load(\"\") = %+v, want %+v", cfg, want)
	}
}

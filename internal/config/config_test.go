package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("Expected an error for an explicit missing file, got %+v", cfg)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ledger.ComputeUnitLimit != 200_000 {
		t.Errorf("Expected default compute limit, got %d", cfg.Ledger.ComputeUnitLimit)
	}
	if cfg.Database.Type != "memory" {
		t.Errorf("Expected memory database, got %q", cfg.Database.Type)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixedratio.yaml")
	body := `
ledger:
  lamports_per_signature: 10000
client:
  retry_initial_interval: 20ms
database:
  type: postgres
  postgres:
    host: db.internal
log:
  format: json
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FIXEDRATIO_API_LISTEN", "0.0.0.0:9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ledger.LamportsPerSignature != 10_000 {
		t.Errorf("LamportsPerSignature = %d", cfg.Ledger.LamportsPerSignature)
	}
	if cfg.Client.RetryInitialInterval != 20*time.Millisecond {
		t.Errorf("RetryInitialInterval = %s", cfg.Client.RetryInitialInterval)
	}
	if cfg.Database.Postgres.Host != "db.internal" || cfg.Database.Postgres.Port != 5432 {
		t.Errorf("Unexpected postgres config %+v", cfg.Database.Postgres)
	}
	if cfg.API.Listen != "0.0.0.0:9000" {
		t.Errorf("Expected env override, got %q", cfg.API.Listen)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Format = %q", cfg.Log.Format)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Type = "sqlite"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected unsupported database type to fail")
	}
	cfg = DefaultConfig()
	cfg.Ledger.ComputeUnitLimit = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected zero compute limit to fail")
	}
}

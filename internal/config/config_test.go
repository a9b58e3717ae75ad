package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults for empty path, got %v", err)
	}
	if cfg.AgentID != "agent-core" {
		t.Fatalf("expected default agent id, got %q", cfg.AgentID)
	}
	if cfg.RateLimit.Capacity <= 0 || cfg.MaxPayloadBytes <= 0 {
		t.Fatal("expected positive default bounds")
	}
	if cfg.Policy.AllowUnsigned {
		t.Fatal("expected allow_unsigned to default off")
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected defaults for missing file, got %v", err)
	}
	if cfg.SocketPath == "" {
		t.Fatal("expected default socket path")
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
asset_id: asset-42
rate_limit:
  capacity: 5
telemetry:
  require_checksum: true
policy:
  allow_unsigned: true
`
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AssetID != "asset-42" {
		t.Fatalf("expected overlay asset id, got %q", cfg.AssetID)
	}
	if cfg.RateLimit.Capacity != 5 {
		t.Fatalf("expected overlay capacity 5, got %d", cfg.RateLimit.Capacity)
	}
	// Unset fields keep defaults.
	if cfg.AgentID != "agent-core" {
		t.Fatalf("expected default agent id to survive overlay, got %q", cfg.AgentID)
	}
	if !cfg.TelemetryConfig().RequireChecksum {
		t.Fatal("expected checksum requirement from overlay")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("asset_id: [unclosed"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for invalid YAML")
	}
}

func TestSigningKeyInlineHex(t *testing.T) {
	cfg := Default()
	cfg.Policy.SigningKeyHex = "deadbeef"
	key, err := cfg.SigningKey()
	if err != nil {
		t.Fatalf("expected hex key to resolve, got %v", err)
	}
	if len(key) != 4 {
		t.Fatalf("expected 4-byte key, got %d", len(key))
	}

	cfg.Policy.SigningKeyHex = "not-hex"
	if _, err := cfg.SigningKey(); err == nil {
		t.Fatal("expected invalid hex to error")
	}
}

func TestSigningKeyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.hex")
	if err := os.WriteFile(path, []byte("cafebabe\n"), 0600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	cfg := Default()
	cfg.Policy.SigningKeyFile = path
	key, err := cfg.SigningKey()
	if err != nil {
		t.Fatalf("expected key file to resolve, got %v", err)
	}
	if len(key) != 4 {
		t.Fatalf("expected 4-byte key, got %d", len(key))
	}
}

func TestSigningKeyAbsent(t *testing.T) {
	key, err := Default().SigningKey()
	if err != nil || key != nil {
		t.Fatalf("expected nil key without configuration, got %v %v", key, err)
	}
}

func TestTelemetryConfigFallbacks(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.MinPayloadBytes = 0
	cfg.Telemetry.MaxEventCount = 0
	rt := cfg.TelemetryConfig()
	if rt.MinPayloadBytes <= 0 || rt.MaxEventCount == 0 {
		t.Fatal("expected zero values to fall back to defaults")
	}
}

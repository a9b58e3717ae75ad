// Package config assembles the agent core's startup configuration from
// a YAML file over built-in defaults. Components never read the process
// environment; everything they need is passed in explicitly from here,
// which keeps the admission pipeline testable without environment
// manipulation.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/perimetra/agentcore/internal/ratelimit"
	"github.com/perimetra/agentcore/internal/router"
)

// RateLimit configures the IPC admission quota.
type RateLimit struct {
	Capacity int `yaml:"capacity"`
}

// Policy configures where the bundle comes from and how it is verified.
type Policy struct {
	Path           string `yaml:"path"`
	SigningKeyHex  string `yaml:"signing_key_hex"`
	SigningKeyFile string `yaml:"signing_key_file"`
	ExpectedKeyID  string `yaml:"expected_key_id"`

	// AllowUnsigned admits a bundle without signature verification.
	// Explicit operator opt-in; defaults to off.
	AllowUnsigned bool `yaml:"allow_unsigned"`

	// Strict halts startup on any policy load or validation failure
	// instead of falling back to the placeholder bundle.
	Strict bool `yaml:"strict"`
}

// Telemetry bounds telemetry admission.
type Telemetry struct {
	MinPayloadBytes int    `yaml:"min_payload_bytes"`
	MaxPayloadBytes int    `yaml:"max_payload_bytes"`
	MaxEventCount   uint32 `yaml:"max_event_count"`
	RequireChecksum bool   `yaml:"require_checksum"`
}

// Config is the full agent-core configuration.
type Config struct {
	AssetID         string    `yaml:"asset_id"`
	AgentID         string    `yaml:"agent_id"`
	SocketPath      string    `yaml:"socket_path"`
	MaxPayloadBytes int       `yaml:"max_payload_bytes"`
	RateLimit       RateLimit `yaml:"rate_limit"`
	Policy          Policy    `yaml:"policy"`
	Telemetry       Telemetry `yaml:"telemetry"`
	AuditLogPath    string    `yaml:"audit_log_path"`
	MetricsAddr     string    `yaml:"metrics_addr"`
}

// Default returns the built-in configuration. Every field has a usable
// value; an absent config file never prevents startup.
func Default() *Config {
	t := router.DefaultTelemetryConfig()
	return &Config{
		AssetID:         "asset-placeholder",
		AgentID:         "agent-core",
		SocketPath:      "/run/agentcore/ipc.sock",
		MaxPayloadBytes: 1 << 20,
		RateLimit:       RateLimit{Capacity: ratelimit.DefaultCapacity},
		Telemetry: Telemetry{
			MinPayloadBytes: t.MinPayloadBytes,
			MaxPayloadBytes: t.MaxPayloadBytes,
			MaxEventCount:   t.MaxEventCount,
			RequireChecksum: t.RequireChecksum,
		},
	}
}

// Load reads configuration from a YAML file. An empty path or a
// missing file yields the defaults; invalid YAML is an error. Fields
// absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// SigningKey resolves the policy verification key material: inline hex
// first, then a key file. Returns nil when neither is configured.
func (c *Config) SigningKey() ([]byte, error) {
	if c.Policy.SigningKeyHex != "" {
		key, err := hex.DecodeString(strings.TrimSpace(c.Policy.SigningKeyHex))
		if err != nil {
			return nil, fmt.Errorf("invalid signing_key_hex: %w", err)
		}
		return key, nil
	}
	if c.Policy.SigningKeyFile != "" {
		data, err := os.ReadFile(c.Policy.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read signing key file: %w", err)
		}
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("invalid signing key file contents: %w", err)
		}
		return key, nil
	}
	return nil, nil
}

// TelemetryConfig converts the configured bounds to the router's form,
// falling back to defaults for unset values.
func (c *Config) TelemetryConfig() router.TelemetryConfig {
	t := router.DefaultTelemetryConfig()
	if c.Telemetry.MinPayloadBytes > 0 {
		t.MinPayloadBytes = c.Telemetry.MinPayloadBytes
	}
	if c.Telemetry.MaxPayloadBytes > 0 {
		t.MaxPayloadBytes = c.Telemetry.MaxPayloadBytes
	}
	if c.Telemetry.MaxEventCount > 0 {
		t.MaxEventCount = c.Telemetry.MaxEventCount
	}
	t.RequireChecksum = c.Telemetry.RequireChecksum
	return t
}

// Identity returns the asset/agent pair telemetry decisions are tagged
// with.
func (c *Config) Identity() router.Identity {
	return router.Identity{AssetID: c.AssetID, AgentID: c.AgentID}
}

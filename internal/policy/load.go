package policy

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON string

// documentSchema rejects policy documents with missing or unknown
// fields before decoding. additionalProperties is false throughout, so
// an unrecognized field is a hard parse error, never silently ignored.
var documentSchema = jsonschema.MustCompileString("policy.schema.json", schemaJSON)

// placeholderTTL is the validity window granted to the built-in bundle.
const placeholderTTL = 24 * time.Hour

// Parse decodes a policy document. The raw bytes are validated against
// the embedded JSON Schema first, then decoded with unknown fields
// disallowed as a second line of defense.
func Parse(data []byte) (*Bundle, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode policy document: %w", err)
	}
	if err := documentSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("policy document rejected by schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var b Bundle
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode policy document: %w", err)
	}
	return &b, nil
}

// Load reads and parses a policy document from disk.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// LoadWithHash loads a policy document and returns the SHA-256 of the
// raw bytes on disk, for tagging audit entries with the exact document
// that produced a decision.
func LoadWithHash(path string) (*Bundle, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read policy file: %w", err)
	}
	h := sha256.Sum256(data)
	b, err := Parse(data)
	if err != nil {
		return nil, "", err
	}
	return b, "sha256:" + hex.EncodeToString(h[:]), nil
}

// PlaceholderHash is the policy hash recorded when the built-in bundle
// is active.
const PlaceholderHash = "sha256:placeholder"

// Placeholder returns the built-in fallback bundle. It is unsigned and
// therefore only admissible when the operator has opted into
// allow_unsigned; its window opens now and closes after placeholderTTL.
func Placeholder() *Bundle {
	now := uint64(time.Now().UnixMilli())
	return &Bundle{
		SchemaVersion: SchemaVersion,
		Version:       "policy-placeholder",
		IssuedAtMs:    now,
		ExpiresAtMs:   now + uint64(placeholderTTL.Milliseconds()),
		SigningKeyID:  "placeholder",
		Signature:     "unsigned",
		Execution: Execution{
			AllowedActions:    []string{"patch-apply", "script-run", "service-restart"},
			MaxArguments:      4,
			MaxArgumentLength: 256,
		},
		TelemetryStreams: []string{"agent", "sensor"},
	}
}

// LoadOrPlaceholder loads and validates the policy at path. Behavior on
// failure is the deployment-policy switch: with strict set, any load or
// validation failure is returned and startup should halt; without it,
// the placeholder bundle is installed and a warning logged.
//
// An empty path skips the load entirely and goes straight to the
// placeholder (or an error under strict).
func LoadOrPlaceholder(path string, strict bool, opts VerifyOptions, logger *slog.Logger) (*Bundle, string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path == "" {
		if strict {
			return nil, "", fmt.Errorf("strict policy mode requires a policy file")
		}
		logger.Warn("no policy file configured, using placeholder bundle")
		return Placeholder(), PlaceholderHash, nil
	}

	b, hash, err := LoadWithHash(path)
	if err == nil && !b.Validate(uint64(time.Now().UnixMilli()), opts) {
		err = fmt.Errorf("policy document %s did not validate", path)
	}
	if err != nil {
		if strict {
			return nil, "", err
		}
		logger.Warn("falling back to placeholder bundle", "error", err)
		return Placeholder(), PlaceholderHash, nil
	}
	return b, hash, nil
}

// Package policy defines the signed authorization bundle consulted on
// every admission decision: which execution actions are allowed, the
// argument limits that apply to them, which telemetry streams may be
// forwarded, and the validity window binding it all together.
//
// A bundle is immutable once loaded. Replacing the active policy means
// loading and validating a fresh instance and swapping it in whole;
// nothing mutates a live bundle.
package policy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/perimetra/agentcore/internal/limits"
)

// SchemaVersion is the policy document schema this build understands.
const SchemaVersion = 1

// actionPattern constrains action names to lowercase-kebab identifiers.
var actionPattern = regexp.MustCompile(`^[a-z\-_]+$`)

// Execution holds the command-admission section of a bundle.
type Execution struct {
	AllowedActions    []string `json:"allowed_actions"`
	MaxArguments      uint32   `json:"max_arguments"`
	MaxArgumentLength uint32   `json:"max_argument_length"`
}

// Bundle is the signed policy document. Field order here mirrors the
// canonical signing payload; see signingPayload.
type Bundle struct {
	SchemaVersion    uint32    `json:"schema_version"`
	Version          string    `json:"version"`
	IssuedAtMs       uint64    `json:"issued_at_ms"`
	ExpiresAtMs      uint64    `json:"expires_at_ms"`
	SigningKeyID     string    `json:"signing_key_id"`
	Signature        string    `json:"signature"`
	Execution        Execution `json:"execution"`
	TelemetryStreams []string  `json:"telemetry_streams"`
}

// VerifyOptions carries the signing-key context for Validate.
type VerifyOptions struct {
	// SigningKey is the MAC key used to verify Signature. Nil means no
	// verification material is available.
	SigningKey []byte

	// ExpectedKeyID, when set, must match the bundle's signing_key_id.
	ExpectedKeyID string

	// AllowUnsigned admits a bundle without verifying its signature.
	// Only honored when no SigningKey is supplied; requires an explicit
	// operator opt-in upstream.
	AllowUnsigned bool
}

// Validate checks the bundle against the current time and signing-key
// context. It returns false on the first failing check. All failure
// modes are indistinguishable so a caller holding a bad signature
// learns nothing about which check tripped.
func (b *Bundle) Validate(nowMs uint64, opts VerifyOptions) bool {
	if !b.structuralOK() {
		return false
	}
	if opts.ExpectedKeyID != "" && opts.ExpectedKeyID != b.SigningKeyID {
		return false
	}
	if nowMs < b.IssuedAtMs || nowMs > b.ExpiresAtMs {
		return false
	}
	if opts.SigningKey != nil {
		expected := computeSignature(opts.SigningKey, b.signingPayload())
		return hmac.Equal([]byte(expected), []byte(b.Signature))
	}
	return opts.AllowUnsigned
}

// SignWithKey computes the bundle's signature over the canonical
// signing payload and stores it. The structural checks are the same as
// Validate's, minus the window-versus-now comparison (a bundle may be
// signed before its validity window opens) and minus the existing
// signature, which is about to be overwritten. Returns false without
// touching the bundle when a structural check fails.
//
// The MAC is HMAC-SHA256. Production deployments countersign bundles
// with an asymmetric key; the HMAC is a placeholder sharing the same
// canonical payload so the verification path is identical.
func (b *Bundle) SignWithKey(key []byte) bool {
	if len(key) == 0 {
		return false
	}
	if !b.structuralOKForSigning() {
		return false
	}
	b.Signature = computeSignature(key, b.signingPayload())
	return true
}

// AllowsAction reports whether the action is whitelisted. The action
// list is strictly sorted, so membership is a binary search.
func (b *Bundle) AllowsAction(name string) bool {
	i := sort.SearchStrings(b.Execution.AllowedActions, name)
	return i < len(b.Execution.AllowedActions) && b.Execution.AllowedActions[i] == name
}

// AllowsStream reports whether the telemetry stream is whitelisted.
func (b *Bundle) AllowsStream(name string) bool {
	i := sort.SearchStrings(b.TelemetryStreams, name)
	return i < len(b.TelemetryStreams) && b.TelemetryStreams[i] == name
}

// structuralOK runs the shape checks shared by Validate and SignWithKey.
func (b *Bundle) structuralOK() bool {
	return b.shape(true)
}

// structuralOKForSigning skips the signature-presence check; the
// signature is about to be overwritten.
func (b *Bundle) structuralOKForSigning() bool {
	return b.shape(false)
}

// shape evaluates the structural checks in their documented order.
func (b *Bundle) shape(checkSignature bool) bool {
	if b.SchemaVersion == 0 {
		return false
	}
	if !limits.BoundedString(b.Version, limits.MaxStreamLen) {
		return false
	}
	if !limits.BoundedString(b.SigningKeyID, limits.MaxCommandIDLen) {
		return false
	}
	if checkSignature && !limits.BoundedString(b.Signature, limits.MaxPayloadLen) {
		return false
	}
	if b.IssuedAtMs > b.ExpiresAtMs {
		return false
	}
	if len(b.Execution.AllowedActions) == 0 ||
		b.Execution.MaxArguments == 0 ||
		b.Execution.MaxArgumentLength == 0 {
		return false
	}
	for _, action := range b.Execution.AllowedActions {
		if !limits.BoundedString(action, limits.MaxStreamLen) {
			return false
		}
		if !actionPattern.MatchString(action) {
			return false
		}
	}
	if !strictlySorted(b.Execution.AllowedActions) {
		return false
	}
	if len(b.TelemetryStreams) == 0 {
		return false
	}
	for _, stream := range b.TelemetryStreams {
		if !limits.BoundedString(stream, limits.MaxStreamLen) {
			return false
		}
	}
	return strictlySorted(b.TelemetryStreams)
}

// strictlySorted reports whether values are in strictly ascending order,
// which also rules out duplicates.
func strictlySorted(values []string) bool {
	for i := 1; i < len(values); i++ {
		if values[i-1] >= values[i] {
			return false
		}
	}
	return true
}

// signingPayload builds the canonical byte string the signature covers.
// Signing and verification must use this exact construction; any
// divergence breaks signature round-tripping.
func (b *Bundle) signingPayload() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(uint64(b.SchemaVersion), 10))
	sb.WriteByte('|')
	sb.WriteString(b.Version)
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatUint(b.IssuedAtMs, 10))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatUint(b.ExpiresAtMs, 10))
	sb.WriteByte('|')
	sb.WriteString(b.SigningKeyID)
	sb.WriteByte('|')
	sb.WriteString(strings.Join(b.Execution.AllowedActions, ","))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatUint(uint64(b.Execution.MaxArguments), 10))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatUint(uint64(b.Execution.MaxArgumentLength), 10))
	sb.WriteByte('|')
	sb.WriteString(strings.Join(b.TelemetryStreams, ","))
	return sb.String()
}

// computeSignature returns the hex HMAC-SHA256 of payload under key.
func computeSignature(key []byte, payload string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

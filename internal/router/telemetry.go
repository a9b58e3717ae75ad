package router

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/perimetra/agentcore/internal/limits"
	"github.com/perimetra/agentcore/internal/policy"
)

// Rejection reasons are part of the observable contract: the same
// rejection condition always yields the same string, suitable for
// logging and metrics on the caller's side.
const (
	ReasonStreamInvalid      = "stream name invalid"
	ReasonStreamNotPermitted = "stream not permitted"
	ReasonPayloadSize        = "payload size out of bounds"
	ReasonEventCount         = "event count out of bounds"
	ReasonChecksumMissing    = "checksum required"
)

// TelemetryConfig bounds telemetry admission per deployment.
type TelemetryConfig struct {
	MinPayloadBytes int
	MaxPayloadBytes int
	MaxEventCount   uint32
	RequireChecksum bool
}

// DefaultTelemetryConfig returns the bounds applied when the operator
// configures nothing.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		MinPayloadBytes: 1,
		MaxPayloadBytes: 256 * 1024,
		MaxEventCount:   512,
		RequireChecksum: false,
	}
}

// Decision is the structured outcome of a telemetry admission check.
// On acceptance it carries the identity-tagged routed payload; on
// rejection, a stable reason.
type Decision struct {
	Accepted     bool
	Reason       string
	Stream       string
	PayloadBytes int
	EventCount   uint32
	Identity     Identity
	DecisionID   string
	Timestamp    time.Time
}

// RouteTelemetry decides whether a telemetry payload may be forwarded
// under the active policy and the configured bounds.
func RouteTelemetry(p TelemetryPayload, b *policy.Bundle, id Identity, cfg TelemetryConfig) Decision {
	if !limits.BoundedString(p.Stream, limits.MaxStreamLen) {
		return reject(p, ReasonStreamInvalid)
	}
	if !b.AllowsStream(p.Stream) {
		return reject(p, ReasonStreamNotPermitted)
	}
	if p.PayloadBytes < cfg.MinPayloadBytes || p.PayloadBytes > cfg.MaxPayloadBytes {
		return reject(p, ReasonPayloadSize)
	}
	if p.EventCount == 0 || p.EventCount > cfg.MaxEventCount {
		return reject(p, ReasonEventCount)
	}
	if cfg.RequireChecksum && strings.TrimSpace(p.Checksum) == "" {
		return reject(p, ReasonChecksumMissing)
	}

	return Decision{
		Accepted:     true,
		Stream:       p.Stream,
		PayloadBytes: p.PayloadBytes,
		EventCount:   p.EventCount,
		Identity:     id,
		DecisionID:   uuid.NewString(),
		Timestamp:    time.Now().UTC(),
	}
}

func reject(p TelemetryPayload, reason string) Decision {
	return Decision{
		Reason:       reason,
		Stream:       p.Stream,
		PayloadBytes: p.PayloadBytes,
		EventCount:   p.EventCount,
		Timestamp:    time.Now().UTC(),
	}
}

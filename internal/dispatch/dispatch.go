// Package dispatch demultiplexes a decoded envelope by payload variant
// and forwards it to the command or telemetry router. Sensor events
// travel on the "sensor" stream; everything the agent reports about
// itself (results, evidence, compliance, heartbeats) travels on the
// "agent" stream.
package dispatch

import (
	"github.com/perimetra/agentcore/internal/envelope"
	"github.com/perimetra/agentcore/internal/policy"
	"github.com/perimetra/agentcore/internal/router"
)

// Stream names assigned by payload variant.
const (
	StreamSensor = "sensor"
	StreamAgent  = "agent"
)

// Rejection reasons produced by the dispatcher itself. Command
// rejections share a single reason: policy admission failures are
// deliberately indistinguishable.
const (
	ReasonNoPayload          = "no payload present"
	ReasonCommandNotAdmitted = "command not admitted"
)

// Options carries the per-deployment inputs the routers need.
type Options struct {
	Telemetry router.TelemetryConfig
	Identity  router.Identity
}

// Result is the admission outcome for one envelope.
type Result struct {
	Admitted bool
	Kind     envelope.PayloadKind
	Reason   string

	// Decision is set for telemetry-class payloads.
	Decision *router.Decision
}

// Route makes the policy-aware admission decision for a decoded
// envelope. Envelope-level gates (schema version, size, rate quota)
// are the caller's responsibility and run before this.
func Route(env *envelope.Envelope, b *policy.Bundle, nowMs uint64, opts Options) Result {
	kind := env.Kind()
	switch kind {
	case envelope.KindExecutionCommand:
		cmd := env.ExecutionCommand
		admitted := router.RouteCommand(router.SignedCommand{
			CommandID:     cmd.CommandID,
			SignedPayload: cmd.SignedBlob,
			Action:        cmd.Action,
			Arguments:     cmd.Arguments,
			NotBeforeMs:   cmd.NotBeforeMs,
			NotAfterMs:    cmd.NotAfterMs,
		}, b, nowMs)
		res := Result{Admitted: admitted, Kind: kind}
		if !admitted {
			res.Reason = ReasonCommandNotAdmitted
		}
		return res

	case envelope.KindSensorEvent:
		ev := env.SensorEvent
		return telemetryResult(kind, router.TelemetryPayload{
			Stream:       StreamSensor,
			PayloadBytes: envelope.EncodedLen(env),
			EventCount:   ev.EventCount,
			Checksum:     ev.Checksum,
		}, b, opts)

	case envelope.KindExecutionResult, envelope.KindComplianceAssertion, envelope.KindHealthHeartbeat:
		return telemetryResult(kind, router.TelemetryPayload{
			Stream:       StreamAgent,
			PayloadBytes: envelope.EncodedLen(env),
			EventCount:   1,
		}, b, opts)

	case envelope.KindEvidencePackage:
		return telemetryResult(kind, router.TelemetryPayload{
			Stream:       StreamAgent,
			PayloadBytes: envelope.EncodedLen(env),
			EventCount:   1,
			Checksum:     env.EvidencePackage.SHA256,
		}, b, opts)

	case envelope.KindNone:
		return Result{Kind: kind, Reason: ReasonNoPayload}

	default:
		// Unreachable while PayloadKind stays closed; fail closed anyway.
		return Result{Kind: kind, Reason: ReasonNoPayload}
	}
}

func telemetryResult(kind envelope.PayloadKind, p router.TelemetryPayload, b *policy.Bundle, opts Options) Result {
	d := router.RouteTelemetry(p, b, opts.Identity, opts.Telemetry)
	return Result{
		Admitted: d.Accepted,
		Kind:     kind,
		Reason:   d.Reason,
		Decision: &d,
	}
}

package dispatch

import (
	"testing"

	"github.com/perimetra/agentcore/internal/envelope"
	"github.com/perimetra/agentcore/internal/policy"
	"github.com/perimetra/agentcore/internal/router"
)

func testPolicy() *policy.Bundle {
	return &policy.Bundle{
		SchemaVersion: 1,
		Version:       "test",
		IssuedAtMs:    0,
		ExpiresAtMs:   1 << 40,
		SigningKeyID:  "k",
		Signature:     "unsigned",
		Execution: policy.Execution{
			AllowedActions:    []string{"patch-apply", "script-run"},
			MaxArguments:      2,
			MaxArgumentLength: 8,
		},
		TelemetryStreams: []string{"agent", "sensor"},
	}
}

func testOptions() Options {
	return Options{
		Telemetry: router.DefaultTelemetryConfig(),
		Identity:  router.Identity{AssetID: "asset-01", AgentID: "agent-core"},
	}
}

func baseEnvelope() *envelope.Envelope {
	return &envelope.Envelope{
		SchemaVersion: envelope.SchemaVersion,
		AssetID:       "asset-01",
		AgentID:       "agent-core",
		TimestampMs:   1700000000000,
	}
}

func TestRouteExecutionCommand(t *testing.T) {
	env := baseEnvelope()
	env.ExecutionCommand = &envelope.ExecutionCommand{
		CommandID:   "cmd-1",
		SignedBlob:  "blob",
		Action:      "script-run",
		Arguments:   []string{"-v"},
		NotBeforeMs: 10,
		NotAfterMs:  20,
	}

	res := Route(env, testPolicy(), 15, testOptions())
	if !res.Admitted {
		t.Fatalf("expected command admission, got reason %q", res.Reason)
	}
	if res.Kind != envelope.KindExecutionCommand {
		t.Fatalf("expected execution command kind, got %v", res.Kind)
	}
	if res.Decision != nil {
		t.Fatal("expected no telemetry decision for a command")
	}

	res = Route(env, testPolicy(), 25, testOptions())
	if res.Admitted || res.Reason != ReasonCommandNotAdmitted {
		t.Fatalf("expected command rejection outside window, got %+v", res)
	}
}

func TestRouteSensorEventUsesSensorStream(t *testing.T) {
	env := baseEnvelope()
	env.SensorEvent = &envelope.SensorEvent{
		Source:     "etw",
		EventCount: 3,
	}

	res := Route(env, testPolicy(), 15, testOptions())
	if !res.Admitted {
		t.Fatalf("expected sensor event admission, got reason %q", res.Reason)
	}
	if res.Decision == nil || res.Decision.Stream != StreamSensor {
		t.Fatalf("expected decision on the sensor stream, got %+v", res.Decision)
	}
	if res.Decision.PayloadBytes != envelope.EncodedLen(env) {
		t.Fatal("expected payload size to be the encoded envelope length")
	}
}

func TestRouteAgentVariantsUseAgentStream(t *testing.T) {
	variants := []struct {
		name   string
		mutate func(*envelope.Envelope)
		kind   envelope.PayloadKind
	}{
		{"execution result", func(e *envelope.Envelope) {
			e.ExecutionResult = &envelope.ExecutionResult{CommandID: "cmd-1", ExitCode: 0}
		}, envelope.KindExecutionResult},
		{"evidence package", func(e *envelope.Envelope) {
			e.EvidencePackage = &envelope.EvidencePackage{EvidenceID: "ev-1", SHA256: "abc", SizeBytes: 10}
		}, envelope.KindEvidencePackage},
		{"compliance assertion", func(e *envelope.Envelope) {
			e.ComplianceAssertion = &envelope.ComplianceAssertion{ControlID: "fw-enabled", Passed: true}
		}, envelope.KindComplianceAssertion},
		{"health heartbeat", func(e *envelope.Envelope) {
			e.HealthHeartbeat = &envelope.HealthHeartbeat{Component: "sensor", UptimeMs: 1000}
		}, envelope.KindHealthHeartbeat},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			env := baseEnvelope()
			v.mutate(env)
			res := Route(env, testPolicy(), 15, testOptions())
			if !res.Admitted {
				t.Fatalf("expected admission, got reason %q", res.Reason)
			}
			if res.Kind != v.kind {
				t.Fatalf("expected kind %v, got %v", v.kind, res.Kind)
			}
			if res.Decision == nil || res.Decision.Stream != StreamAgent {
				t.Fatalf("expected decision on the agent stream, got %+v", res.Decision)
			}
		})
	}
}

func TestRouteNoPayload(t *testing.T) {
	res := Route(baseEnvelope(), testPolicy(), 15, testOptions())
	if res.Admitted {
		t.Fatal("expected unconditional rejection without a payload")
	}
	if res.Reason != ReasonNoPayload {
		t.Fatalf("expected no-payload reason, got %q", res.Reason)
	}
}

func TestRouteStreamNotInPolicy(t *testing.T) {
	b := testPolicy()
	b.TelemetryStreams = []string{"agent"} // sensor stream removed

	env := baseEnvelope()
	env.SensorEvent = &envelope.SensorEvent{Source: "etw", EventCount: 1}

	res := Route(env, b, 15, testOptions())
	if res.Admitted {
		t.Fatal("expected rejection for unpermitted stream")
	}
	if res.Reason != router.ReasonStreamNotPermitted {
		t.Fatalf("expected stream-not-permitted reason, got %q", res.Reason)
	}
}

func TestRouteIdentityTagging(t *testing.T) {
	env := baseEnvelope()
	env.HealthHeartbeat = &envelope.HealthHeartbeat{Component: "patch", UptimeMs: 5}

	opts := testOptions()
	res := Route(env, testPolicy(), 15, opts)
	if !res.Admitted || res.Decision.Identity != opts.Identity {
		t.Fatal("expected accepted telemetry to carry the configured identity")
	}
}

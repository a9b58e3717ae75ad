package envelope

import (
	"bytes"
	"testing"
)

func commandEnvelope() *Envelope {
	return &Envelope{
		SchemaVersion: SchemaVersion,
		AssetID:       "asset-01",
		AgentID:       "agent-core",
		TimestampMs:   1700000000000,
		ExecutionCommand: &ExecutionCommand{
			CommandID:   "cmd-1",
			SignedBlob:  "blob",
			Action:      "script-run",
			Arguments:   []string{"-v"},
			NotBeforeMs: 10,
			NotAfterMs:  20,
		},
	}
}

func TestKindResolution(t *testing.T) {
	cases := []struct {
		name string
		env  Envelope
		want PayloadKind
	}{
		{"none", Envelope{SchemaVersion: 1}, KindNone},
		{"execution command", Envelope{ExecutionCommand: &ExecutionCommand{}}, KindExecutionCommand},
		{"sensor event", Envelope{SensorEvent: &SensorEvent{}}, KindSensorEvent},
		{"execution result", Envelope{ExecutionResult: &ExecutionResult{}}, KindExecutionResult},
		{"evidence package", Envelope{EvidencePackage: &EvidencePackage{}}, KindEvidencePackage},
		{"compliance assertion", Envelope{ComplianceAssertion: &ComplianceAssertion{}}, KindComplianceAssertion},
		{"health heartbeat", Envelope{HealthHeartbeat: &HealthHeartbeat{}}, KindHealthHeartbeat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.env.Kind(); got != tc.want {
				t.Fatalf("expected kind %v, got %v", tc.want, got)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	env := commandEnvelope()
	data, err := Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind() != KindExecutionCommand {
		t.Fatalf("expected execution command after round-trip, got %v", got.Kind())
	}
	if got.ExecutionCommand.Action != "script-run" {
		t.Fatalf("expected action to survive round-trip, got %q", got.ExecutionCommand.Action)
	}
	if got.AssetID != "asset-01" || got.AgentID != "agent-core" {
		t.Fatal("expected routing metadata to survive round-trip")
	}
}

func TestMarshalDeterministic(t *testing.T) {
	a, err := Marshal(commandEnvelope())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := Marshal(commandEnvelope())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("expected deterministic encoding for identical envelopes")
	}
	if EncodedLen(commandEnvelope()) != len(a) {
		t.Fatal("expected EncodedLen to match marshal output")
	}
}

func TestValidateSchemaVersion(t *testing.T) {
	if !ValidateSchemaVersion(1, 1) {
		t.Fatal("expected matching versions to pass")
	}
	if ValidateSchemaVersion(2, 1) || ValidateSchemaVersion(0, 1) {
		t.Fatal("expected mismatched versions to fail")
	}
}

func TestValidatePayloadSize(t *testing.T) {
	if !ValidatePayloadSize(100, 100) {
		t.Fatal("expected size at bound to pass")
	}
	if ValidatePayloadSize(101, 100) {
		t.Fatal("expected oversize to fail")
	}
}

func TestValidateEnvelope(t *testing.T) {
	env := commandEnvelope()
	if !Validate(env, SchemaVersion, 4096) {
		t.Fatal("expected valid envelope to pass")
	}

	wrongVersion := commandEnvelope()
	wrongVersion.SchemaVersion = 99
	if Validate(wrongVersion, SchemaVersion, 4096) {
		t.Fatal("expected schema version mismatch to fail")
	}

	empty := &Envelope{SchemaVersion: SchemaVersion, AssetID: "asset-01"}
	if Validate(empty, SchemaVersion, 4096) {
		t.Fatal("expected payload-less envelope to fail")
	}

	if Validate(env, SchemaVersion, 8) {
		t.Fatal("expected oversize envelope to fail")
	}
}

// Package envelope defines the outer wire wrapper exchanged with local
// helper processes: routing metadata plus exactly one typed payload.
// The payload set is closed; dispatch switches over Kind exhaustively,
// so adding a variant forces every consumer to handle it.
package envelope

// SchemaVersion is the envelope schema this build speaks. A peer
// announcing any other version is rejected before dispatch.
const SchemaVersion = 1

// PayloadKind identifies which payload variant an envelope carries.
type PayloadKind int

const (
	KindNone PayloadKind = iota
	KindExecutionCommand
	KindSensorEvent
	KindExecutionResult
	KindEvidencePackage
	KindComplianceAssertion
	KindHealthHeartbeat
)

// String returns the wire name of the payload kind.
func (k PayloadKind) String() string {
	switch k {
	case KindExecutionCommand:
		return "execution_command"
	case KindSensorEvent:
		return "sensor_event"
	case KindExecutionResult:
		return "execution_result"
	case KindEvidencePackage:
		return "evidence_package"
	case KindComplianceAssertion:
		return "compliance_assertion"
	case KindHealthHeartbeat:
		return "health_heartbeat"
	default:
		return "none"
	}
}

// ExecutionCommand asks the execution helper to run a whitelisted
// action. The signed blob is carried opaquely; verifying it against a
// trust bundle is a separate layer from policy admission.
type ExecutionCommand struct {
	CommandID   string   `cbor:"command_id"`
	SignedBlob  string   `cbor:"signed_blob"`
	Action      string   `cbor:"action"`
	Arguments   []string `cbor:"arguments,omitempty"`
	NotBeforeMs uint64   `cbor:"not_before_ms"`
	NotAfterMs  uint64   `cbor:"not_after_ms"`
}

// SensorEvent is a batch of raw detections from the sensor helper.
type SensorEvent struct {
	Source       string `cbor:"source"`
	RuleID       string `cbor:"rule_id,omitempty"`
	Detail       string `cbor:"detail,omitempty"`
	EventCount   uint32 `cbor:"event_count"`
	Checksum     string `cbor:"checksum,omitempty"`
	CapturedAtMs uint64 `cbor:"captured_at_ms"`
}

// ExecutionResult reports the outcome of a previously admitted command.
type ExecutionResult struct {
	CommandID string `cbor:"command_id"`
	ExitCode  int32  `cbor:"exit_code"`
	Output    string `cbor:"output,omitempty"`
}

// EvidencePackage references a collected artifact by digest.
type EvidencePackage struct {
	EvidenceID string `cbor:"evidence_id"`
	SHA256     string `cbor:"sha256"`
	SizeBytes  uint64 `cbor:"size_bytes"`
}

// ComplianceAssertion is a self-audit check result.
type ComplianceAssertion struct {
	ControlID string `cbor:"control_id"`
	Passed    bool   `cbor:"passed"`
	Detail    string `cbor:"detail,omitempty"`
}

// HealthHeartbeat is a liveness report from a helper component.
type HealthHeartbeat struct {
	Component string `cbor:"component"`
	UptimeMs  uint64 `cbor:"uptime_ms"`
}

// Envelope is the outer wire wrapper. Exactly one payload pointer is
// expected to be set; Kind resolves which.
type Envelope struct {
	SchemaVersion uint32 `cbor:"schema_version"`
	AssetID       string `cbor:"asset_id"`
	AgentID       string `cbor:"agent_id"`
	TimestampMs   uint64 `cbor:"timestamp_ms"`

	ExecutionCommand    *ExecutionCommand    `cbor:"execution_command,omitempty"`
	SensorEvent         *SensorEvent         `cbor:"sensor_event,omitempty"`
	ExecutionResult     *ExecutionResult     `cbor:"execution_result,omitempty"`
	EvidencePackage     *EvidencePackage     `cbor:"evidence_package,omitempty"`
	ComplianceAssertion *ComplianceAssertion `cbor:"compliance_assertion,omitempty"`
	HealthHeartbeat     *HealthHeartbeat     `cbor:"health_heartbeat,omitempty"`
}

// Kind returns the payload variant present in the envelope. When more
// than one variant is set the first in declaration order wins; peers
// following the contract never send that.
func (e *Envelope) Kind() PayloadKind {
	switch {
	case e.ExecutionCommand != nil:
		return KindExecutionCommand
	case e.SensorEvent != nil:
		return KindSensorEvent
	case e.ExecutionResult != nil:
		return KindExecutionResult
	case e.EvidencePackage != nil:
		return KindEvidencePackage
	case e.ComplianceAssertion != nil:
		return KindComplianceAssertion
	case e.HealthHeartbeat != nil:
		return KindHealthHeartbeat
	default:
		return KindNone
	}
}

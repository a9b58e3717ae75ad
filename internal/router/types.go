// Package router makes the final policy-aware admission decision for
// the two message classes crossing the IPC boundary: signed execution
// commands and telemetry payloads. Routers are pure functions over the
// active policy bundle; the only inputs are the message, the bundle,
// and the clock.
package router

// SignedCommand is one inbound execution request. Policy admission here
// does not verify the signed payload's authenticity; that layer sits
// behind a trust bundle owned by a separate collaborator.
type SignedCommand struct {
	CommandID     string
	SignedPayload string
	Action        string
	Arguments     []string
	NotBeforeMs   uint64
	NotAfterMs    uint64
}

// TelemetryPayload is one inbound telemetry request, admitted or
// rejected synchronously.
type TelemetryPayload struct {
	Stream       string
	PayloadBytes int
	EventCount   uint32
	Checksum     string
}

// Identity tags accepted telemetry with the asset and agent that this
// core instance represents.
type Identity struct {
	AssetID string
	AgentID string
}

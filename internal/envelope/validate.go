package envelope

// ValidateSchemaVersion reports whether the peer's schema version
// matches exactly. No forward or backward tolerance.
func ValidateSchemaVersion(actual, expected uint32) bool {
	return actual == expected
}

// ValidatePayloadSize reports whether the wire-encoded size is within
// bound.
func ValidatePayloadSize(payloadBytes, maxPayloadBytes int) bool {
	return payloadBytes <= maxPayloadBytes
}

// Validate checks the outer envelope independent of payload semantics:
// schema version, presence of a payload variant, and encoded size. All
// three must hold.
func Validate(e *Envelope, expectedVersion uint32, maxPayloadBytes int) bool {
	if !ValidateSchemaVersion(e.SchemaVersion, expectedVersion) {
		return false
	}
	if e.Kind() == KindNone {
		return false
	}
	return ValidatePayloadSize(EncodedLen(e), maxPayloadBytes)
}

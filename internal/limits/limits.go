// Package limits holds the shared validation bounds consulted by every
// admission component. All string acceptance in the agent core goes
// through BoundedString so bound enforcement cannot drift between
// packages.
package limits

const (
	// MaxCommandIDLen bounds command identifiers and signing key IDs.
	MaxCommandIDLen = 128

	// MaxPayloadLen bounds opaque string payloads (signed blobs, signatures).
	MaxPayloadLen = 4096

	// MaxStreamLen bounds telemetry stream names and policy version strings.
	MaxStreamLen = 64
)

// BoundedString reports whether value is non-empty and within max bytes.
func BoundedString(value string, max int) bool {
	return value != "" && len(value) <= max
}

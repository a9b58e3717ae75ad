// Package integrity verifies the agent binary's checksum at startup.
// The expected hash is embedded at build time via ldflags; when the
// running binary does not match, a tamper event is recorded and the
// process refuses to start.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExpectedHash is set at build time via:
//
//	-ldflags "-X github.com/perimetra/agentcore/internal/integrity.ExpectedHash=<sha256hex>"
//
// When empty (dev builds), verification falls back to a checksum file.
var ExpectedHash string

// TamperLogDir is where tamper events are written. Override for testing.
var TamperLogDir = "/var/log/agentcore"

// ChecksumPaths are checked in order for a hex SHA-256 checksum file.
// Override for testing.
var ChecksumPaths = []string{
	"/etc/agentcore/binary.sha256",
	"$HOME/.agentcore/binary.sha256",
}

// TamperEvent records a binary integrity violation.
type TamperEvent struct {
	Timestamp    string `json:"timestamp"`
	Binary       string `json:"binary"`
	ExpectedHash string `json:"expected_hash"`
	ActualHash   string `json:"actual_hash"`
	Hostname     string `json:"hostname"`
	Type         string `json:"type"`
}

// Verify checks that the running binary matches ExpectedHash, falling
// back to the checksum file when no build-time hash is present.
// Returns nil when verification passes or no expected hash exists at
// all (dev mode). On mismatch, a tamper event is written before the
// error is returned.
func Verify() error {
	expected := ExpectedHash
	if expected == "" {
		expected = loadChecksumFile()
	}
	if expected == "" {
		fmt.Fprintf(os.Stderr, "integrity: WARNING no build-time hash or checksum file found (dev build, integrity check skipped)\n")
		return nil
	}

	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("integrity: cannot resolve executable path: %w", err)
	}
	actual, err := hashFile(exePath)
	if err != nil {
		return fmt.Errorf("integrity: cannot hash binary: %w", err)
	}
	if actual == expected {
		return nil
	}

	event := TamperEvent{
		Timestamp:    time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Binary:       exePath,
		ExpectedHash: expected,
		ActualHash:   actual,
		Type:         "binary_tamper",
	}
	event.Hostname, _ = os.Hostname()
	writeTamperEvent(event)

	return fmt.Errorf("integrity: binary checksum mismatch (expected %s, got %s)", expected, actual)
}

// HashSelf returns the SHA-256 hex digest of the running binary.
// Useful for writing the checksum file after install.
func HashSelf() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("integrity: cannot resolve executable path: %w", err)
	}
	return hashFile(exePath)
}

// loadChecksumFile reads the expected hash from the first readable
// checksum file. Returns empty when none is found.
func loadChecksumFile() string {
	for _, p := range ChecksumPaths {
		data, err := os.ReadFile(os.ExpandEnv(p))
		if err != nil {
			continue
		}
		hash := strings.TrimSpace(string(data))
		if len(hash) == 64 && isHex(hash) {
			return hash
		}
	}
	return ""
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeTamperEvent appends a tamper event to the tamper log and prints
// it to stderr for the journal. Alert fan-out is the uplink worker's
// job, not the core's.
func writeTamperEvent(event TamperEvent) {
	line, err := json.Marshal(event)
	if err != nil {
		return
	}

	logPath := filepath.Join(TamperLogDir, "tamper.jsonl")
	if err := os.MkdirAll(TamperLogDir, 0700); err == nil {
		if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600); err == nil {
			f.Write(append(line, '\n'))
			f.Sync()
			f.Close()
		}
	}

	fmt.Fprintf(os.Stderr, "TAMPER ALERT: %s\n", string(line))
}

package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testEntry(kind string, admitted bool) Entry {
	return Entry{
		AssetID:    "asset-01",
		AgentID:    "agent-core",
		Kind:       kind,
		Admitted:   admitted,
		PolicyHash: "sha256:abc",
	}
}

func TestRecordAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	log, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := log.Record(testEntry("execution_command", true)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := log.Record(testEntry("sensor_event", false)); err != nil {
		t.Fatalf("record: %v", err)
	}
	log.Close()

	res := Verify(path)
	if !res.Valid {
		t.Fatalf("expected valid chain, got %+v", res)
	}
	if res.Lines != 2 {
		t.Fatalf("expected 2 lines, got %d", res.Lines)
	}
}

func TestChainSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")

	log, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	log.Record(testEntry("execution_command", true))
	log.Close()

	log, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	log.Record(testEntry("health_heartbeat", true))
	log.Close()

	res := Verify(path)
	if !res.Valid || res.Lines != 2 {
		t.Fatalf("expected intact 2-line chain across reopen, got %+v", res)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	log, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	log.Record(testEntry("execution_command", true))
	log.Record(testEntry("execution_command", false))
	log.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	tampered := strings.Replace(string(data), `"admitted":true`, `"admitted":false`, 1)
	if err := os.WriteFile(path, []byte(tampered), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	res := Verify(path)
	if res.Valid {
		t.Fatal("expected tampered log to fail verification")
	}
	if res.ErrorLine != 2 {
		t.Fatalf("expected break detected at line 2, got %d", res.ErrorLine)
	}
}

func TestVerifyMissingFile(t *testing.T) {
	res := Verify(filepath.Join(t.TempDir(), "missing.jsonl"))
	if res.Valid || res.Error == "" {
		t.Fatal("expected error for missing file")
	}
}

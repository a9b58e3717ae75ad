package router

import (
	"strings"
	"testing"

	"github.com/perimetra/agentcore/internal/policy"
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

func validCommand() SignedCommand {
	return SignedCommand{
		CommandID:     "cmd-1",
		SignedPayload: "blob",
		Action:        "script-run",
		Arguments:     []string{"-v"},
		NotBeforeMs:   10,
		NotAfterMs:    20,
	}
}

func TestRouteCommandAccepts(t *testing.T) {
	if !RouteCommand(validCommand(), testPolicy(), 15) {
		t.Fatal("expected valid command at now=15 to be admitted")
	}
}

func TestRouteCommandRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SignedCommand)
		nowMs  uint64
	}{
		{"empty command id", func(c *SignedCommand) { c.CommandID = "" }, 15},
		{"oversize command id", func(c *SignedCommand) { c.CommandID = strings.Repeat("x", 129) }, 15},
		{"empty signed payload", func(c *SignedCommand) { c.SignedPayload = "" }, 15},
		{"empty action", func(c *SignedCommand) { c.Action = "" }, 15},
		{"forbidden action", func(c *SignedCommand) { c.Action = "forbidden" }, 15},
		{"too many arguments", func(c *SignedCommand) { c.Arguments = []string{"a", "b", "c"} }, 15},
		{"oversize argument", func(c *SignedCommand) { c.Arguments = []string{"123456789"} }, 15},
		{"empty argument", func(c *SignedCommand) { c.Arguments = []string{""} }, 15},
		{"inverted window", func(c *SignedCommand) { c.NotBeforeMs, c.NotAfterMs = 20, 10 }, 15},
		{"before window", func(c *SignedCommand) {}, 9},
		{"after window", func(c *SignedCommand) {}, 25},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := validCommand()
			tc.mutate(&cmd)
			if RouteCommand(cmd, testPolicy(), tc.nowMs) {
				t.Fatal("expected rejection")
			}
		})
	}
}

func TestRouteCommandWindowBoundaries(t *testing.T) {
	cmd := validCommand()
	b := testPolicy()
	// Window is inclusive on both ends.
	if !RouteCommand(cmd, b, 10) || !RouteCommand(cmd, b, 20) {
		t.Fatal("expected admission at window boundaries")
	}
}

func TestRouteCommandArgumentLimits(t *testing.T) {
	b := testPolicy()
	cmd := validCommand()
	cmd.Arguments = []string{"12345678", "abcdefgh"}
	if !RouteCommand(cmd, b, 15) {
		t.Fatal("expected two max-length arguments to be admitted")
	}
	cmd.Arguments = nil
	if !RouteCommand(cmd, b, 15) {
		t.Fatal("expected command without arguments to be admitted")
	}
}

// Package scenario runs policy assertions from YAML files: each case
// describes an envelope and the expected admission outcome. Used by the
// check command to gate policy rollouts in CI.
package scenario

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/perimetra/agentcore/internal/dispatch"
	"github.com/perimetra/agentcore/internal/envelope"
	"github.com/perimetra/agentcore/internal/policy"
	"github.com/perimetra/agentcore/internal/router"
)

// Run evaluates all cases against the given bundle. Each case builds a
// fresh envelope and goes through the same dispatch pipeline the server
// uses; cases are independent.
func Run(s *Scenario, bundle *policy.Bundle, telemetry router.TelemetryConfig, nowMs uint64) *RunResult {
	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
	}

	opts := dispatch.Options{
		Telemetry: telemetry,
		Identity:  router.Identity{AssetID: "scenario", AgentID: "scenario"},
	}

	for i, c := range s.Cases {
		cr := CaseResult{
			Index:    i + 1,
			Name:     c.Name,
			Kind:     c.Kind,
			Expected: strings.ToLower(c.Expect),
		}

		env, err := buildEnvelope(&c, nowMs)
		if err != nil {
			cr.Actual = "error"
			cr.Reason = err.Error()
			result.Failed++
			result.Cases = append(result.Cases, cr)
			continue
		}

		res := dispatch.Route(env, bundle, nowMs, opts)
		if res.Admitted {
			cr.Actual = "admit"
		} else {
			cr.Actual = "reject"
		}
		cr.Reason = res.Reason

		cr.Passed = cr.Actual == cr.Expected
		if cr.Passed && c.Reason != "" && !strings.Contains(res.Reason, c.Reason) {
			cr.Passed = false
			cr.Reason = fmt.Sprintf("expected reason containing %q, got %q", c.Reason, res.Reason)
		}

		if cr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result
}

// LoadAndRun loads a scenario YAML file and a policy bundle, then runs.
// An empty policy path uses the built-in placeholder bundle.
func LoadAndRun(path, policyPath string, opts policy.VerifyOptions) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	nowMs := uint64(time.Now().UnixMilli())

	bundle := policy.Placeholder()
	if policyPath != "" {
		bundle, err = policy.Load(policyPath)
		if err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
		if !bundle.Validate(nowMs, opts) {
			return nil, fmt.Errorf("policy bundle failed validation: %s", policyPath)
		}
	}

	result := Run(&s, bundle, router.DefaultTelemetryConfig(), nowMs)
	result.File = path

	return result, nil
}

// buildEnvelope turns a YAML case into a concrete envelope. The kind
// "none" produces an envelope with no payload, for asserting that the
// pipeline fails closed.
func buildEnvelope(c *Case, nowMs uint64) (*envelope.Envelope, error) {
	env := &envelope.Envelope{
		SchemaVersion: envelope.SchemaVersion,
		AssetID:       "scenario",
		AgentID:       "scenario",
		TimestampMs:   nowMs,
	}

	eventCount := c.EventCount
	if eventCount == 0 {
		eventCount = 1
	}

	switch c.Kind {
	case "execution_command":
		env.ExecutionCommand = &envelope.ExecutionCommand{
			CommandID:   "scenario-cmd",
			SignedBlob:  "scenario",
			Action:      c.Action,
			Arguments:   c.Arguments,
			NotBeforeMs: 0,
			NotAfterMs:  nowMs + 3600_000,
		}
	case "sensor_event":
		source := c.Source
		if source == "" {
			source = "scenario"
		}
		env.SensorEvent = &envelope.SensorEvent{
			Source:       source,
			RuleID:       "scenario",
			EventCount:   eventCount,
			Checksum:     c.Checksum,
			CapturedAtMs: nowMs,
		}
	case "execution_result":
		env.ExecutionResult = &envelope.ExecutionResult{
			CommandID: "scenario-cmd",
			ExitCode:  0,
		}
	case "evidence_package":
		env.EvidencePackage = &envelope.EvidencePackage{
			EvidenceID: "scenario-ev",
			SHA256:     c.Checksum,
			SizeBytes:  1,
		}
	case "compliance_assertion":
		env.ComplianceAssertion = &envelope.ComplianceAssertion{
			ControlID: "scenario",
			Passed:    true,
		}
	case "health_heartbeat":
		env.HealthHeartbeat = &envelope.HealthHeartbeat{
			Component: "scenario",
			UptimeMs:  1,
		}
	case "none":
	default:
		return nil, fmt.Errorf("unknown payload kind %q", c.Kind)
	}

	return env, nil
}

package router

import (
	"github.com/perimetra/agentcore/internal/limits"
	"github.com/perimetra/agentcore/internal/policy"
)

// RouteCommand decides whether a signed execution command is admissible
// under the active policy at the given time. Every check must pass;
// any failure rejects with no side effect.
func RouteCommand(cmd SignedCommand, b *policy.Bundle, nowMs uint64) bool {
	if !limits.BoundedString(cmd.CommandID, limits.MaxCommandIDLen) {
		return false
	}
	if !limits.BoundedString(cmd.SignedPayload, limits.MaxPayloadLen) {
		return false
	}
	if !limits.BoundedString(cmd.Action, limits.MaxStreamLen) {
		return false
	}
	if !b.AllowsAction(cmd.Action) {
		return false
	}
	if uint32(len(cmd.Arguments)) > b.Execution.MaxArguments {
		return false
	}
	for _, arg := range cmd.Arguments {
		if !limits.BoundedString(arg, int(b.Execution.MaxArgumentLength)) {
			return false
		}
	}
	if cmd.NotBeforeMs > cmd.NotAfterMs {
		return false
	}
	return nowMs >= cmd.NotBeforeMs && nowMs <= cmd.NotAfterMs
}

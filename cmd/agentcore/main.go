// agentcore — endpoint agent control-plane core.
// Loads a signed policy bundle and admits command and telemetry
// envelopes over the local IPC socket.
package main

import "github.com/perimetra/agentcore/internal/cli"

func main() {
	cli.Execute()
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/perimetra/agentcore/internal/integrity"
)

var rootCmd = &cobra.Command{
	Use:   "agentcore",
	Short: "Endpoint agent control-plane core",
	Long:  "Validates signed policy bundles, admits command and telemetry envelopes\nagainst the active policy, and serves the local IPC socket helpers talk to.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := integrity.Verify(); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(78) // EX_CONFIG
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

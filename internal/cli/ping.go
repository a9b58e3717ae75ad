package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/perimetra/agentcore/internal/client"
	"github.com/perimetra/agentcore/internal/config"
	"github.com/perimetra/agentcore/internal/envelope"
)

var (
	pingConfig string
	pingSocket string
)

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().StringVar(&pingConfig, "config", "", "Path to config YAML")
	pingCmd.Flags().StringVar(&pingSocket, "socket", "", "Unix socket path (overrides config)")
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the daemon is admitting envelopes",
	Long:  "Connects to the IPC socket, submits a health heartbeat, and reports\nthe admission outcome. Exits non-zero when the daemon is unreachable\nor the heartbeat is rejected.",
	RunE:  runPing,
}

func runPing(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(pingConfig)
	if err != nil {
		return err
	}
	socket := cfg.SocketPath
	if pingSocket != "" {
		socket = pingSocket
	}

	c, err := client.Dial(socket)
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.Submit(&envelope.Envelope{
		SchemaVersion: envelope.SchemaVersion,
		AssetID:       cfg.AssetID,
		AgentID:       cfg.AgentID,
		TimestampMs:   uint64(time.Now().UnixMilli()),
		HealthHeartbeat: &envelope.HealthHeartbeat{
			Component: "cli",
			UptimeMs:  0,
		},
	})
	if err != nil {
		return err
	}
	if !resp.Admitted {
		fmt.Fprintf(os.Stderr, "REJECTED: %s\n", resp.Reason)
		os.Exit(1)
	}

	fmt.Printf("OK: heartbeat admitted (decision %s)\n", resp.DecisionID)
	return nil
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/perimetra/agentcore/internal/config"
	"github.com/perimetra/agentcore/internal/envelope"
	"github.com/perimetra/agentcore/internal/metrics"
	"github.com/perimetra/agentcore/internal/policy"
	"github.com/perimetra/agentcore/internal/server"
)

var (
	serveConfig   string
	serveSocket   string
	servePolicy   string
	serveAuditLog string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "Path to config YAML")
	serveCmd.Flags().StringVar(&serveSocket, "socket", "", "Unix socket path (overrides config)")
	serveCmd.Flags().StringVar(&servePolicy, "policy", "", "Path to signed policy bundle JSON (overrides config)")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "", "Path to decision audit log JSONL (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the IPC admission server",
	Long:  "Runs the agent core daemon: loads and validates the policy bundle,\nlistens on the local Unix socket, and admits or rejects every inbound\nenvelope. The policy file is hot-reloaded on change.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfig)
	if err != nil {
		return err
	}
	if serveSocket != "" {
		cfg.SocketPath = serveSocket
	}
	if servePolicy != "" {
		cfg.Policy.Path = servePolicy
	}
	if serveAuditLog != "" {
		cfg.AuditLogPath = serveAuditLog
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	key, err := cfg.SigningKey()
	if err != nil {
		return err
	}
	if key == nil && !cfg.Policy.AllowUnsigned && cfg.Policy.Strict {
		return fmt.Errorf("strict mode requires a signing key or allow_unsigned")
	}

	var mets metrics.Metrics = metrics.Noop{}
	if cfg.MetricsAddr != "" {
		mets = metrics.NewProm("agentcore")
	}

	srv, err := server.New(server.Config{
		SocketPath:        cfg.SocketPath,
		SchemaVersion:     envelope.SchemaVersion,
		MaxPayloadBytes:   cfg.MaxPayloadBytes,
		RateLimitCapacity: cfg.RateLimit.Capacity,
		Telemetry:         cfg.TelemetryConfig(),
		Identity:          cfg.Identity(),
		PolicyPath:        cfg.Policy.Path,
		PolicyVerify: policy.VerifyOptions{
			SigningKey:    key,
			ExpectedKeyID: cfg.Policy.ExpectedKeyID,
			AllowUnsigned: cfg.Policy.AllowUnsigned,
		},
		PolicyStrict: cfg.Policy.Strict,
		AuditLogPath: cfg.AuditLogPath,
	}, mets, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot-reload watcher for the policy file.
	if reloader, err := server.NewReloader(srv, logger); err != nil {
		logger.Warn("hot-reload disabled", "error", err)
	} else {
		go reloader.Run(ctx)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Warn("metrics listener failed", "error", err)
			}
		}()
		logger.Info("metrics exposed", "addr", cfg.MetricsAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("agent core starting",
		"socket", cfg.SocketPath,
		"policy", cfg.Policy.Path,
		"policy_version", srv.Policy().Version,
		"policy_hash", srv.PolicyHash())

	return srv.Serve(ctx)
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beyonddemise/couchdb-idp-updater/internal/config"
	"github.com/beyonddemise/couchdb-idp-updater/internal/server"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the synchronization daemon",
		Long: `Start the synchronization daemon.

The daemon will:
  - Fetch JWT signing keys from every configured IdP on a periodic tick
  - Push changed keys into each CouchDB cluster node's jwt_keys config
  - Request staggered node restarts after key changes
  - Serve /status and static assets over HTTP

Configuration precedence (highest to lowest):
  1. Command-line flags
  2. Environment variables (IDPSYNC_*)
  3. Configuration file (if --config or IDPSYNC_CONFIG is set)
  4. Built-in defaults

CouchDB credentials come from COUCHDB_USER and COUCHDB_PWD
(alias: COUCHDB_PASSWORD).

Examples:
  # Start with the bundled config
  couchdb-idp-updater serve --config data/config.json

  # Override the listen port
  couchdb-idp-updater serve --config data/config.json --http-port 8081`,
		RunE: runServe,
	}

	// Auto-register all config flags
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// 1. Determine config file path
	configPath := configFile
	if configPath == "" {
		configPath = os.Getenv("IDPSYNC_CONFIG")
	}

	// 2. Load configuration (file + env vars + flags)
	loader, err := config.NewLoaderWithFlags(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := loader.Get()
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	// 3. Build components via provider
	provider := config.NewProvider(cfg, logger)

	rec, err := provider.Reconciler()
	if err != nil {
		return fmt.Errorf("failed to create reconciler: %w", err)
	}

	serverCfg := provider.ServerConfig()
	serverCfg.Ready = rec.Ready

	srv := server.New(serverCfg)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := rec.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}

	logger.Info("couchdb-idp-updater is running",
		"http_port", serverCfg.HTTPPort,
		"idps", len(cfg.IdPs),
		"couchdb_servers", len(cfg.CouchDBServers),
		"update_interval_seconds", cfg.UpdateIntervalSeconds,
		"config", configPath,
	)

	// 4. Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")

	// 5. Graceful shutdown: stop the timer, let in-flight work finish
	rec.Stop()
	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

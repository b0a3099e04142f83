package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/loykin/landodeck"
	"github.com/loykin/landodeck/internal/logger"
)

// createServeCommand creates the daemon command
func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the landodeck daemon",
		Long: `Start the landodeck daemon. Settings come from the JSON config file
(--config, default ~/.landodeckrc.json) and LANDODECK_* environment
variables, e.g. LANDODECK_SERVER_LISTEN=127.0.0.1:3001.

Examples:
  landodeck serve
  landodeck serve --config=/etc/landodeck.json --log-level=debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), globalFlags.ConfigPath, *serveFlags)
		},
	}

	cmd.Flags().StringVar(&serveFlags.LogLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&serveFlags.LogFormat, "log-format", "", "override log format (text, json)")
	cmd.Flags().BoolVar(&serveFlags.NoDocker, "no-docker", false, "do not remove site volumes through Docker on destroy")

	return cmd
}

func runServe(ctx context.Context, configPath string, flags ServeFlags) error {
	store, err := landodeck.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	cfg := store.Get()

	logCfg := cfg.Log
	if flags.LogLevel != "" {
		logCfg.Level = flags.LogLevel
	}
	if flags.LogFormat != "" {
		logCfg.Format = flags.LogFormat
	}
	log, closer := logger.New(logCfg, os.Stderr)
	defer func() { _ = closer.Close() }()
	slog.SetDefault(log)

	if err := landodeck.RegisterMetricsDefault(); err != nil {
		log.Warn("Failed to register metrics", "error", err)
	}

	d, err := landodeck.New(store, landodeck.Options{Logger: log, DisableDocker: flags.NoDocker})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	if cfg.SitesDirectory == "" {
		log.Warn("No sites directory configured; run 'landodeck config detect' and set sitesDirectory", "config", store.Path())
	}
	return d.Run(ctx)
}

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/tandem/internal/engine"
	"github.com/dyluth/tandem/internal/logging"
	"github.com/dyluth/tandem/internal/printer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the delegation engine",
	Long: `Run the delegation engine until interrupted.

Loads tandem.yml (or the built-in defaults when no file exists), starts the
event loop, and when a Redis URL is configured bridges commands in and events
out. The health server listens on health_addr when set.

Examples:
  # Run with built-in defaults and no bridge
  tandem serve

  # Run against a local Redis
  tandem serve --redis-url redis://localhost:6379 --name prod`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return printer.Error("invalid logging configuration", err.Error(), nil)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []engine.Option{engine.WithLogger(logger)}
	if cfg.RedisURL != "" {
		client, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, engine.WithClient(client))
	}

	eng := engine.New(cfg, opts...)

	printer.Success("Engine started for instance '%s' with %d queues and %d workers\n",
		cfg.Instance, len(cfg.Queues), len(cfg.Workers))
	if cfg.RedisURL == "" {
		printer.Warning("Redis bridge disabled; commands can only be submitted in-process\n")
	}

	logger.Info("engine starting",
		zap.String("instance", cfg.Instance),
		zap.Bool("bridge", cfg.RedisURL != ""),
		zap.String("health_addr", cfg.HealthAddr))

	if err := eng.Run(ctx); err != nil {
		return fmt.Errorf("engine stopped: %w", err)
	}

	printer.Info("Shut down cleanly\n")
	return nil
}

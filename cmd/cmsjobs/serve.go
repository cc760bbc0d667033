package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/cmsjobs/internal/app"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/version"
)

var serveNoReload bool

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job runner (main command)",
	Long: `Start cmsjobs with the given configuration. All enabled recurring jobs
are started, the delivery API index follows content and public access
changes, and the admin API serves health, metrics and manual triggers.

SIGINT or SIGTERM triggers a graceful shutdown.`,
	RunE: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	logger.SetDefault(log)

	log.Info("starting cmsjobs",
		logger.Field{Key: "version", Value: version.Version},
		logger.Field{Key: "git_commit", Value: version.GitCommit},
		logger.Field{Key: "config", Value: configPath},
		logger.Field{Key: "server_role", Value: cfg.Runtime.ServerRole},
		logger.Field{Key: "database", Value: cfg.Database.Path})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []app.Option
	if !serveNoReload {
		opts = append(opts, app.WithConfigPath(configPath))
	}

	if err := app.New(cfg, log, opts...).Run(ctx); err != nil {
		log.Error("cmsjobs stopped with error", err)
		return err
	}
	log.Info("cmsjobs stopped gracefully")
	return nil
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoReload, "no-reload", false, "Disable config hot reload")
}

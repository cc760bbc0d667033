package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/cmsjobs/internal/config"
	"github.com/aatumaykin/cmsjobs/internal/logger"
)

const defaultConfigPath = "./config.toml"

var (
	configPath string
	envFile    string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cmsjobs",
	Short: "cmsjobs - recurring background jobs for a CMS cluster",
	Long: `cmsjobs runs the recurring maintenance jobs of a CMS installation
(temp file cleanup, audit log scrubbing, server registration, health checks)
on the servers whose role allows them, and keeps the delivery API index in
sync with public access changes.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file loaded before the config")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(indexCmd)
}

// loadConfig reads the .env file and the config, applies flag overrides and
// validates the result.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvOptional(envFile); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(rootCmd.ErrOrStderr(), "  - %v\n", e)
		}
		return nil, fmt.Errorf("configuration validation failed: %d errors", len(errs))
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}

package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

var configPrint bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Validate and inspect cmsjobs configuration.`,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate configuration file",
	Long: `Validate the configuration file and check for errors. With --print the
effective configuration (defaults applied, secrets masked) is written as TOML.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			configPath = args[0]
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if configPrint {
			if err := toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg.Redacted()); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration %s is valid\n", configPath)
		return nil
	},
}

func init() {
	configValidateCmd.Flags().BoolVar(&configPrint, "print", false, "Print the effective configuration")
	configCmd.AddCommand(configValidateCmd)
}

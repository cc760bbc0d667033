package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/cmsjobs/internal/app"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain the delivery API index",
}

var indexRefreshPublicAccessCmd = &cobra.Command{
	Use:   "refresh-public-access",
	Short: "Resynchronize protected documents with the public access entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		if err := app.RefreshPublicAccess(cmd.Context(), cfg, log); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Public access synchronized")
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexRefreshPublicAccessCmd)
}

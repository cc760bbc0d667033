package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/cmsjobs/internal/app"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load content and public access entries from a YAML fixture",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		fixture, err := app.LoadFixture(seedFile)
		if err != nil {
			return err
		}
		res, err := app.Seed(cmd.Context(), cfg, log, fixture)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d content items and %d public access entries\n", res.Content, res.PublicAccess)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "Fixture file")
	_ = seedCmd.MarkFlagRequired("file")
}

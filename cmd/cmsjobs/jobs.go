package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/cmsjobs/internal/app"
	"github.com/aatumaykin/cmsjobs/internal/audit"
)

var (
	jobsOutput       string
	jobsHistoryLimit int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect recurring jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the jobs enabled by the configuration",
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

		jobs, err := app.DescribeJobs(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		return writeJobs(cmd.OutOrStdout(), jobs, jobsOutput)
	},
}

var jobsHistoryCmd = &cobra.Command{
	Use:   "history [job]",
	Short: "Show the latest executions from the audit log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		var job string
		if len(args) > 0 {
			job = args[0]
		}
		entries, err := app.JobHistory(cmd.Context(), cfg, log, job, jobsHistoryLimit)
		if err != nil {
			return err
		}
		return writeHistory(cmd.OutOrStdout(), entries)
	},
}

func writeJobs(w io.Writer, jobs []app.JobDescription, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(jobs); err != nil {
			return fmt.Errorf("failed to encode jobs: %w", err)
		}
		return enc.Close()
	case "text", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tPERIOD\tDELAY\tROLES")
		for _, j := range jobs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", j.Name, j.Period, j.Delay, j.Roles)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format: %s (expected: text, yaml)", format)
	}
}

func writeHistory(w io.Writer, entries []*audit.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tJOB\tEVENT\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.OccurredAt.Format(time.RFC3339), e.Job, e.Event, e.Detail)
	}
	return tw.Flush()
}

func init() {
	jobsListCmd.Flags().StringVarP(&jobsOutput, "output", "o", "text", "Output format (text, yaml)")
	jobsHistoryCmd.Flags().IntVarP(&jobsHistoryLimit, "limit", "n", 20, "Maximum number of entries")
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsHistoryCmd)
}

package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/docguard/pkg/cli"
	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/store"
)

var statusFlags struct {
	status   string
	document string
	limit    int
	format   string
}

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show runs",
	Long: `Show one run in detail, or list runs.

Examples:
  # List runs waiting for a human decision
  docguard status --status awaiting_hitl

  # List every run of one document
  docguard status --document contracts/nda.md

  # Show one run as JSON
  docguard status 7f9c0a4e-5d1b-4c36-9a51-0b8f2d7e6c13 --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusFlags.status, "status", "", "filter by status (pending, running, awaiting_hitl, completed, failed)")
	statusCmd.Flags().StringVar(&statusFlags.document, "document", "", "filter by document id")
	statusCmd.Flags().IntVar(&statusFlags.limit, "limit", 50, "max runs listed")
	statusCmd.Flags().StringVar(&statusFlags.format, "format", "text", "output format: text, json, csv")
}

func showStatus(cmd *cobra.Command, args []string) error {
	formatter, err := outputFormatter(statusFlags.format)
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		run, err := a.service.GetRun(cmd.Context(), args[0])
		if err != nil {
			return cli.NewCommandError("status", err)
		}
		return formatter.FormatTo(cmd.OutOrStdout(), cli.RunDetail{Run: run})
	}

	runs, err := a.service.ListRuns(cmd.Context(), store.RunFilter{
		Status:     model.RunStatus(statusFlags.status),
		DocumentID: statusFlags.document,
		Limit:      statusFlags.limit,
	})
	if err != nil {
		return cli.NewCommandError("status", err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), cli.RunList(runs))
}

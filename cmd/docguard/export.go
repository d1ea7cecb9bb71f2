package main

import (
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/docguard/pkg/cli"
	"mercator-hq/docguard/pkg/pipeline"
)

var exportFlags struct {
	output string
	format string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export reviewed documents",
	Long: `Export the documents produced by a run. Every export is recorded in the
audit ledger with the SHA-256 hash of its content.

Subcommands:
  redline  - Tracked-changes document of any run that reached the draft stage
  final    - Redacted final document of a completed run`,
}

var exportRedlineCmd = &cobra.Command{
	Use:   "redline <run-id>",
	Short: "Export the tracked-changes document",
	Long: `Export the redline of a run. Removed text is marked {-like this-},
inserted text {+like this+}, and each change has a [^n] footnote naming its
reason. On a terminal the markup is rendered as colours instead.

Examples:
  docguard export redline 7f9c0a4e-...
  docguard export redline 7f9c0a4e-... -o contract.redline.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportDocument(cmd, args[0], pipeline.ExportRedline)
	},
}

var exportFinalCmd = &cobra.Command{
	Use:   "final <run-id>",
	Short: "Export the final document",
	Long: `Export the final document of a completed run.

Examples:
  docguard export final 7f9c0a4e-... -o contract.final.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportDocument(cmd, args[0], pipeline.ExportFinal)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportRedlineCmd, exportFinalCmd)

	for _, c := range []*cobra.Command{exportRedlineCmd, exportFinalCmd} {
		c.Flags().StringVarP(&exportFlags.output, "output", "o", "", "output file; the raw document is written (default: stdout)")
		c.Flags().StringVar(&exportFlags.format, "format", "text", "stdout format: text, json")
	}
}

func exportDocument(cmd *cobra.Command, runID, kind string) error {
	formatter, err := outputFormatter(exportFlags.format)
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var exp *pipeline.Export
	switch kind {
	case pipeline.ExportRedline:
		exp, err = a.service.ExportRedline(cmd.Context(), runID, currentActor())
	default:
		exp, err = a.service.ExportFinal(cmd.Context(), runID, currentActor())
	}
	if err != nil {
		return cli.NewCommandError("export "+kind, err)
	}

	if exportFlags.output != "" {
		return withOutput(nil, exportFlags.output, func(w io.Writer) error {
			_, err := io.WriteString(w, exp.Content)
			return err
		})
	}
	return formatter.FormatTo(cmd.OutOrStdout(), cli.Document{
		RunID:       exp.RunID,
		Kind:        exp.Kind,
		Content:     exp.Content,
		ContentHash: exp.ContentHash,
	})
}

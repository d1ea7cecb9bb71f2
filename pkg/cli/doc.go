/*
Package cli provides command-line interface utilities for docguard.

Output Formatting:

Command results are written in one of three formats. Text output is styled
with lipgloss; values opt in by implementing Renderable. CSV output is
available for values implementing Tabular:

	formatter := cli.NewFormatter(cli.FormatText)
	if err := formatter.FormatTo(os.Stdout, cli.RunList(runs)); err != nil {
		return err
	}

Progress Reporting:

The run command reports the outcome of each run as it settles:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(len(documents))
	progress.Done(run, err)
	summary := progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, cancel := cli.SetupSignalHandler(context.Background())
	defer cancel()

Exit Codes:

ExitCode maps validation, conflict and not-found errors onto distinct
process exit codes so scripts can tell them apart.
*/
package cli

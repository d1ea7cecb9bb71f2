package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/docguard/pkg/audit"
	"mercator-hq/docguard/pkg/audit/export"
	"mercator-hq/docguard/pkg/cli"
	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/store"
)

var auditFlags struct {
	actions []string
	since   string
	until   string
	limit   int
	format  string
	output  string
	verify  bool
	all     bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query and verify the audit ledger",
	Long: `Query, export and verify the append-only audit ledger.

Every run has its own hash chain: each entry carries the hash of its
predecessor, so any gap, reordering or edit is detected by verify.

Subcommands:
  query    - Export ledger entries as text, JSON or CSV
  verify   - Check the hash chain of one or more runs
  history  - Rebuild a run's history from its ledger`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query [run-id]",
	Short: "Export ledger entries",
	Long: `Export ledger entries of one run in sequence order, or entries of all
runs matching the filters in timestamp order.

Time Format:
  RFC3339, e.g. 2026-03-01T00:00:00Z

Examples:
  # Show one run's trail and verify it
  docguard audit query 7f9c0a4e-... --verify

  # Export all HITL decisions since March as CSV
  docguard audit query --action hitl_decision --since 2026-03-01T00:00:00Z --format csv -o decisions.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: queryAudit,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [run-id...]",
	Short: "Verify hash chains",
	Long: `Verify the hash chain of the named runs, or of every known run with --all.

Examples:
  docguard audit verify 7f9c0a4e-...
  docguard audit verify --all`,
	RunE: verifyAudit,
}

var auditHistoryCmd = &cobra.Command{
	Use:   "history <run-id>",
	Short: "Rebuild a run's history from its ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  showHistory,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditVerifyCmd, auditHistoryCmd)

	auditQueryCmd.Flags().StringSliceVar(&auditFlags.actions, "action", nil, "filter by action (run_created, transition, stage_completed, hitl_enqueued, hitl_decision, export)")
	auditQueryCmd.Flags().StringVar(&auditFlags.since, "since", "", "entries at or after this time (RFC3339)")
	auditQueryCmd.Flags().StringVar(&auditFlags.until, "until", "", "entries before this time (RFC3339)")
	auditQueryCmd.Flags().IntVar(&auditFlags.limit, "limit", 0, "max entries (0 for all)")
	auditQueryCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json, json-pretty, csv")
	auditQueryCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "output file (default: stdout)")
	auditQueryCmd.Flags().BoolVar(&auditFlags.verify, "verify", false, "verify the run's hash chain (requires run-id)")

	auditVerifyCmd.Flags().BoolVar(&auditFlags.all, "all", false, "verify every run in the store")

	auditHistoryCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json")
}

func queryAudit(cmd *cobra.Command, args []string) error {
	if auditFlags.verify && len(args) == 0 {
		return cli.NewConfigError("verify", "--verify requires a run id")
	}
	filter, err := auditFilter(args)
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	var entries []*model.AuditEntry
	if filter.RunID != "" && filter.Limit == 0 && len(filter.Actions) == 0 && filter.Since.IsZero() && filter.Until.IsZero() {
		entries, err = a.service.AuditTrail(ctx, filter.RunID)
	} else {
		entries, err = a.ledger.Search(ctx, filter)
	}
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}

	if auditFlags.verify {
		if failed := verifyRuns(ctx, a.ledger, []string{filter.RunID}, cmd.ErrOrStderr()); failed > 0 {
			return cli.NewCommandError("audit query", fmt.Errorf("chain of run %s failed verification", filter.RunID))
		}
	}

	return withOutput(cmd.OutOrStdout(), auditFlags.output, func(w io.Writer) error {
		return writeEntries(ctx, w, entries, auditFlags.format)
	})
}

// auditFilter builds a ledger filter from the query flags.
func auditFilter(args []string) (audit.Filter, error) {
	filter := audit.Filter{Limit: auditFlags.limit}
	if len(args) == 1 {
		filter.RunID = args[0]
	}
	for _, a := range auditFlags.actions {
		filter.Actions = append(filter.Actions, model.AuditAction(strings.TrimSpace(a)))
	}
	if auditFlags.since != "" {
		t, err := time.Parse(time.RFC3339, auditFlags.since)
		if err != nil {
			return filter, cli.NewConfigError("since", fmt.Sprintf("invalid time: %v", err))
		}
		filter.Since = t
	}
	if auditFlags.until != "" {
		t, err := time.Parse(time.RFC3339, auditFlags.until)
		if err != nil {
			return filter, cli.NewConfigError("until", fmt.Sprintf("invalid time: %v", err))
		}
		filter.Until = t
	}
	return filter, nil
}

func writeEntries(ctx context.Context, w io.Writer, entries []*model.AuditEntry, format string) error {
	if format == "" || format == string(cli.FormatText) {
		return cli.NewFormatter(cli.FormatText).FormatTo(w, cli.AuditTrail(entries))
	}
	exporter, ok := export.For(format)
	if !ok {
		return cli.NewConfigError("format", fmt.Sprintf("unknown format %q (want text, json, json-pretty or csv)", format))
	}
	return exporter.Export(ctx, entries, w)
}

func verifyAudit(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !auditFlags.all {
		return cli.NewConfigError("run-id", "name at least one run or pass --all")
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	runIDs := args
	if auditFlags.all {
		runs, err := a.store.ListRuns(ctx, store.RunFilter{})
		if err != nil {
			return cli.NewCommandError("audit verify", err)
		}
		for _, r := range runs {
			runIDs = append(runIDs, r.RunID)
		}
	}

	failed := verifyRuns(ctx, a.ledger, runIDs, cmd.OutOrStdout())
	if failed > 0 {
		return cli.NewCommandError("audit verify", fmt.Errorf("%d of %d chains failed verification", failed, len(runIDs)))
	}
	return nil
}

// verifyRuns verifies each run's chain, reporting one line per run, and
// returns the number of failures.
func verifyRuns(ctx context.Context, ledger *audit.Ledger, runIDs []string, w io.Writer) int {
	styles := cli.NewStyles(nil)
	failed := 0
	for _, id := range runIDs {
		entries, err := ledger.Query(ctx, id)
		switch {
		case err != nil:
		case len(entries) == 0:
			err = fmt.Errorf("no audit entries: %w", model.ErrNotFound)
		default:
			err = audit.Verify(entries)
		}
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", styles.Error.Render("✗"), id, err)
			continue
		}
		fmt.Fprintf(w, "%s %s (%d entries)\n", styles.Success.Render("✓"), id, len(entries))
	}
	return failed
}

func showHistory(cmd *cobra.Command, args []string) error {
	formatter, err := outputFormatter(auditFlags.format)
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	h, err := a.service.History(cmd.Context(), args[0])
	if err != nil {
		return cli.NewCommandError("audit history", err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), historyView{h})
}

type historyView struct {
	*audit.History
}

func (v historyView) Render(s *cli.Styles) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", s.Title.Render("History "+v.RunID), s.Status(v.Status).Render(string(v.Status)))
	fmt.Fprintf(&b, "document %s, policy set %s\n\n", v.DocumentID, v.PolicySetID)
	for _, t := range v.Transitions {
		line := fmt.Sprintf("%4d %s %s -> %s", t.Sequence, t.At.Format(time.RFC3339), t.From, t.To)
		if t.Stage != "" {
			line += " @" + string(t.Stage)
		}
		if t.HITLID != "" {
			line += " hitl " + t.HITLID
		}
		if t.Failure != nil {
			line += " " + s.Error.Render(t.Failure.Message)
		}
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "\n%d stage outputs, %d hitl batches, %d decisions, %d exports",
		len(v.StageOutputs), len(v.Enqueued), len(v.Decisions), len(v.Exports))
	return b.String()
}

// withOutput calls write with the named file, or with stdout when path is
// empty.
func withOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/docguard/pkg/cli"
	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/pipeline"
)

var runFlags struct {
	all             bool
	policySet       string
	externalSharing bool
	parallel        int
	format          string
	noRecover       bool
}

var runCmd = &cobra.Command{
	Use:   "run [document...]",
	Short: "Review documents",
	Long: `Start a review run for each document and drive it until it completes,
fails or suspends for a human decision.

Document IDs are paths relative to documents.directory. Runs left behind by
a crashed worker are recovered first unless --no-recover is given.

Examples:
  # Review two documents
  docguard run contracts/nda.md contracts/msa.pdf

  # Review every document with the strict policy set
  docguard run --all --policy-set strict

  # Review a document that will be shared outside the organization
  docguard run offer.md --external-sharing

  # Emit the resulting runs as JSON
  docguard run --all --format json`,
	RunE: runDocuments,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runFlags.all, "all", false, "review every document in documents.directory")
	runCmd.Flags().StringVar(&runFlags.policySet, "policy-set", "", "policy set id (default: policy.default_set_id)")
	runCmd.Flags().BoolVar(&runFlags.externalSharing, "external-sharing", false, "documents will be shared externally")
	runCmd.Flags().IntVar(&runFlags.parallel, "parallel", 0, "max concurrent runs (default: pipeline.max_parallel_runs)")
	runCmd.Flags().StringVar(&runFlags.format, "format", "text", "output format: text, json, csv")
	runCmd.Flags().BoolVar(&runFlags.noRecover, "no-recover", false, "skip recovery of interrupted runs")
}

func runDocuments(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !runFlags.all {
		return cli.NewConfigError("documents", "name at least one document or pass --all")
	}
	formatter, err := outputFormatter(runFlags.format)
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	if !runFlags.noRecover {
		if _, err := a.service.Recover(ctx); err != nil {
			a.logger.Warn("run recovery incomplete", "error", err)
		}
	}

	docs := args
	if runFlags.all {
		if docs, err = a.documents.List(ctx); err != nil {
			return cli.NewCommandError("run", err)
		}
	}

	opts := batchOptions{
		PolicySetID:     runFlags.policySet,
		ExternalSharing: runFlags.externalSharing || a.cfg.Pipeline.ExternalSharing,
		Parallel:        runFlags.parallel,
		Actor:           currentActor(),
	}
	if opts.PolicySetID == "" {
		opts.PolicySetID = a.cfg.Policy.DefaultSetID
	}
	if opts.Parallel <= 0 {
		opts.Parallel = a.cfg.Pipeline.MaxParallelRuns
	}

	runs, summary, err := startBatch(ctx, a.service, docs, opts, os.Stderr)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	if err := formatter.FormatTo(cmd.OutOrStdout(), cli.RunList(runs)); err != nil {
		return err
	}
	if n := summary.Failed + summary.Errors; n > 0 {
		return cli.NewCommandError("run", fmt.Errorf("%d of %d runs failed", n, summary.Total))
	}
	return nil
}

type batchOptions struct {
	PolicySetID     string
	ExternalSharing bool
	Parallel        int
	Actor           string
}

// startBatch starts one run per document with bounded concurrency. Per-run
// failures are reported through the summary; only cancellation aborts the
// batch. Runs are returned in document order, omitting runs that could not
// be created.
func startBatch(ctx context.Context, svc *pipeline.Service, docs []string, opts batchOptions, progressOut io.Writer) ([]*model.Run, cli.Summary, error) {
	progress := cli.NewProgressReporter(progressOut)
	progress.Start(len(docs))

	results := make([]*model.Run, len(docs))
	failures := make([]error, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Parallel, 1))

	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			run, err := svc.StartRun(gctx, pipeline.StartRequest{
				DocumentID:      doc,
				PolicySetID:     opts.PolicySetID,
				ExternalSharing: opts.ExternalSharing,
				Actor:           opts.Actor,
			})
			progress.Done(run, err)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			results[i], failures[i] = run, err
			return nil
		})
	}

	err := g.Wait()
	summary := progress.Finish()
	for i, ferr := range failures {
		if ferr != nil {
			fmt.Fprintf(progressOut, "✗ %s: %v\n", docs[i], ferr)
		}
	}

	runs := make([]*model.Run, 0, len(results))
	for _, r := range results {
		if r != nil {
			runs = append(runs, r)
		}
	}
	return runs, summary, err
}

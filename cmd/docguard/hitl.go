package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"mercator-hq/docguard/pkg/cli"
	"mercator-hq/docguard/pkg/model"
)

var hitlFlags struct {
	format     string
	approve    []string
	reject     []string
	modify     map[string]string
	approveAll bool
	rationale  string
	file       string
}

var hitlCmd = &cobra.Command{
	Use:   "hitl",
	Short: "Review pending human decisions",
	Long: `Inspect and decide the human-in-the-loop queue.

A run suspends with one batch of items whenever a stage requires a human
decision. Every item of a batch must be decided in a single response; the
run then resumes from the next stage.

Subcommands:
  list     - List pending items, oldest batch first
  show     - Show one batch
  respond  - Decide every item of a batch and resume its run`,
}

var hitlListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending items",
	Long: `List every pending item, grouped by batch, oldest batch first.

Examples:
  docguard hitl list
  docguard hitl list --format csv > queue.csv`,
	Args: cobra.NoArgs,
	RunE: listHITL,
}

var hitlShowCmd = &cobra.Command{
	Use:   "show <hitl-id>",
	Short: "Show one batch",
	Args:  cobra.ExactArgs(1),
	RunE:  showHITL,
}

var hitlRespondCmd = &cobra.Command{
	Use:   "respond <hitl-id>",
	Short: "Decide a batch and resume its run",
	Long: `Decide every item of a batch and resume the run.

Decisions are given with flags or read from a JSON file holding an array of
{"item_id", "action", "rationale", "modification"} objects. A rationale is
required for every decision. A batch can be decided only once.

Examples:
  # Approve everything
  docguard hitl respond 3d2c... --approve-all --rationale "reviewed with legal"

  # Reject one clause, approve the rest
  docguard hitl respond 3d2c... --reject i002 --approve-all --rationale "advice not permitted"

  # Replace a clause body
  docguard hitl respond 3d2c... --modify i001="Payment of up to \$100,000." --rationale "capped"

  # Decide from a file
  docguard hitl respond 3d2c... --file decisions.json`,
	Args: cobra.ExactArgs(1),
	RunE: respondHITL,
}

func init() {
	rootCmd.AddCommand(hitlCmd)
	hitlCmd.AddCommand(hitlListCmd, hitlShowCmd, hitlRespondCmd)

	for _, c := range []*cobra.Command{hitlListCmd, hitlShowCmd, hitlRespondCmd} {
		c.Flags().StringVar(&hitlFlags.format, "format", "text", "output format: text, json, csv")
	}

	hitlRespondCmd.Flags().StringSliceVar(&hitlFlags.approve, "approve", nil, "item ids to approve")
	hitlRespondCmd.Flags().StringSliceVar(&hitlFlags.reject, "reject", nil, "item ids to reject")
	hitlRespondCmd.Flags().StringToStringVar(&hitlFlags.modify, "modify", nil, "item id to replacement text")
	hitlRespondCmd.Flags().BoolVar(&hitlFlags.approveAll, "approve-all", false, "approve every item not otherwise decided")
	hitlRespondCmd.Flags().StringVar(&hitlFlags.rationale, "rationale", "", "rationale recorded with every flag decision")
	hitlRespondCmd.Flags().StringVar(&hitlFlags.file, "file", "", "JSON file of decisions")
}

func listHITL(cmd *cobra.Command, args []string) error {
	formatter, err := outputFormatter(hitlFlags.format)
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.service.HITLQueue(cmd.Context())
	if err != nil {
		return cli.NewCommandError("hitl list", err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), cli.ItemList(items))
}

func showHITL(cmd *cobra.Command, args []string) error {
	formatter, err := outputFormatter(hitlFlags.format)
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	batch, err := a.service.HITLBatch(cmd.Context(), args[0])
	if err != nil {
		return cli.NewCommandError("hitl show", err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), cli.BatchDetail{HITLBatch: batch})
}

func respondHITL(cmd *cobra.Command, args []string) error {
	formatter, err := outputFormatter(hitlFlags.format)
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

	var decisions []model.Decision
	if hitlFlags.file != "" {
		if decisions, err = readDecisions(hitlFlags.file); err != nil {
			return err
		}
	} else {
		batch, err := a.service.HITLBatch(ctx, args[0])
		if err != nil {
			return cli.NewCommandError("hitl respond", err)
		}
		decisions = flagDecisions(batch, decisionFlags{
			Approve:    hitlFlags.approve,
			Reject:     hitlFlags.reject,
			Modify:     hitlFlags.modify,
			ApproveAll: hitlFlags.approveAll,
			Rationale:  hitlFlags.rationale,
		})
	}

	run, err := a.service.HITLRespond(ctx, args[0], decisions, currentActor())
	if run != nil {
		if ferr := formatter.FormatTo(cmd.OutOrStdout(), cli.RunDetail{Run: run}); ferr != nil {
			return ferr
		}
	}
	if err != nil {
		return cli.NewCommandError("hitl respond", err)
	}
	return nil
}

type decisionFlags struct {
	Approve    []string
	Reject     []string
	Modify     map[string]string
	ApproveAll bool
	Rationale  string
}

// flagDecisions turns respond flags into decisions. An item named by more
// than one flag yields one decision per flag so the gate reports the
// duplicate. Validation is left to the gate.
func flagDecisions(batch *model.HITLBatch, f decisionFlags) []model.Decision {
	var decisions []model.Decision
	named := make(map[string]bool)
	add := func(itemID string, action model.DecisionAction, modification string) {
		named[itemID] = true
		decisions = append(decisions, model.Decision{
			ItemID:       itemID,
			Action:       action,
			Rationale:    f.Rationale,
			Modification: modification,
		})
	}

	for _, id := range f.Approve {
		add(id, model.ActionApprove, "")
	}
	for _, id := range f.Reject {
		add(id, model.ActionReject, "")
	}
	modified := make([]string, 0, len(f.Modify))
	for id := range f.Modify {
		modified = append(modified, id)
	}
	sort.Strings(modified)
	for _, id := range modified {
		add(id, model.ActionModify, f.Modify[id])
	}

	if f.ApproveAll {
		for _, it := range batch.Items {
			if !named[it.ItemID] {
				add(it.ItemID, model.ActionApprove, "")
			}
		}
	}
	return decisions
}

func readDecisions(path string) ([]model.Decision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cli.NewConfigError("file", fmt.Sprintf("failed to read decisions: %v", err))
	}
	var decisions []model.Decision
	if err := json.Unmarshal(data, &decisions); err != nil {
		return nil, cli.NewConfigError("file", fmt.Sprintf("invalid decisions file %s: %v", path, err))
	}
	return decisions, nil
}

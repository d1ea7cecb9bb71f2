package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/docguard/pkg/audit"
	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/store"
	"mercator-hq/docguard/pkg/telemetry/logging"
	"mercator-hq/docguard/pkg/telemetry/metrics"
)

// Gate accepts human decisions for suspended runs.
type Gate struct {
	store        store.Store
	ledger       *audit.Ledger
	orchestrator *Orchestrator
	metrics      *metrics.Collector
	logger       *slog.Logger
	now          func() time.Time
}

// NewGate creates a gate resuming runs through orch.
func NewGate(orch *Orchestrator) *Gate {
	return &Gate{
		store:        orch.store,
		ledger:       orch.ledger,
		orchestrator: orch,
		metrics:      orch.metrics,
		logger:       orch.logger.With("component", "pipeline.gate"),
		now:          orch.now,
	}
}

// Respond records decisions for every item of batch hitlID and resumes the
// run. Invalid decisions are rejected before anything is written. A batch
// that was already decided yields a ConflictError together with the run as
// it stands.
func (g *Gate) Respond(ctx context.Context, hitlID string, decisions []model.Decision, actor string) (*model.Run, error) {
	if len(decisions) == 0 {
		return nil, model.NewValidationError("decisions", "at least one decision is required")
	}
	seen := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if seen[d.ItemID] {
			return nil, model.NewValidationError("item_id", fmt.Sprintf("duplicate decision for item %s", d.ItemID))
		}
		seen[d.ItemID] = true
	}

	batch, err := g.store.GetBatch(ctx, hitlID)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithHITLID(logging.WithRunID(ctx, batch.RunID), hitlID)

	run, err := g.store.GetRun(ctx, batch.RunID)
	if err != nil {
		return nil, err
	}
	if !batch.AllPending() {
		return run, model.NewConflictError("hitl_batch", hitlID, "batch already decided")
	}
	if run.Status != model.StatusAwaitingHITL || run.PendingHITLID != hitlID {
		return run, model.NewConflictError("hitl_batch", hitlID,
			fmt.Sprintf("run %s is %s and not waiting on this batch", run.RunID, run.Status))
	}

	index := make(map[string]int, len(batch.Items))
	for i, it := range batch.Items {
		index[it.ItemID] = i
	}
	for _, d := range decisions {
		if _, ok := index[d.ItemID]; !ok {
			return nil, model.NewValidationError("item_id", fmt.Sprintf("batch %s has no item %s", hitlID, d.ItemID))
		}
	}
	for _, it := range batch.Items {
		if !seen[it.ItemID] {
			return nil, model.NewValidationError("decisions", fmt.Sprintf("missing decision for item %s", it.ItemID))
		}
	}

	now := g.now()
	for i := range decisions {
		d := &decisions[i]
		if d.DecidedBy == "" {
			d.DecidedBy = actor
		}
		item := &batch.Items[index[d.ItemID]]
		item.Status, _ = d.Action.Status()
		item.DecidedBy = d.DecidedBy
		item.DecidedAt = &now
		item.Rationale = d.Rationale
		if d.Action == model.ActionModify {
			item.Modification = d.Modification
		}
	}
	batch.ResolvedAt = &now

	if err := g.store.UpdateBatch(ctx, batch); err != nil {
		if model.IsConflict(err) {
			current, gerr := g.store.GetRun(ctx, batch.RunID)
			if gerr != nil {
				return nil, gerr
			}
			return current, err
		}
		return nil, fmt.Errorf("persist decisions: %w", err)
	}

	for _, d := range decisions {
		g.ledger.Record(ctx, batch.RunID, model.AuditHITLDecision, d.DecidedBy, model.HITLDecisionDetails{
			HITLID:   hitlID,
			Item:     batch.Items[index[d.ItemID]],
			Decision: d,
		})
		g.metrics.RecordHITLDecision(string(d.Action))
	}
	g.logger.InfoContext(ctx, "hitl batch decided",
		"stage", batch.Stage,
		"items", len(batch.Items),
		"actor", actor,
	)

	return g.orchestrator.Resume(ctx, batch.RunID, actor)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/docguard/pkg/audit"
	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/store"
	"mercator-hq/docguard/pkg/telemetry/logging"
	"mercator-hq/docguard/pkg/telemetry/metrics"
)

// Export kinds.
const (
	ExportRedline = "redline"
	ExportFinal   = "final"
)

// Export is a document produced from a run.
type Export struct {
	RunID       string
	Kind        string
	Content     string
	ContentHash string
}

// Service is the inbound API of the pipeline.
type Service struct {
	orchestrator *Orchestrator
	gate         *Gate
	store        store.Store
	ledger       *audit.Ledger
	metrics      *metrics.Collector
	logger       *slog.Logger
}

// NewService creates a service over orch.
func NewService(orch *Orchestrator) *Service {
	return &Service{
		orchestrator: orch,
		gate:         NewGate(orch),
		store:        orch.store,
		ledger:       orch.ledger,
		metrics:      orch.metrics,
		logger:       orch.logger.With("component", "pipeline.service"),
	}
}

// StartRun creates and advances a run. See Orchestrator.StartRun.
func (s *Service) StartRun(ctx context.Context, req StartRequest) (*model.Run, error) {
	return s.orchestrator.StartRun(ctx, req)
}

// GetRun returns the current state of a run.
func (s *Service) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	return s.store.GetRun(ctx, runID)
}

// ListRuns returns runs matching filter.
func (s *Service) ListRuns(ctx context.Context, filter store.RunFilter) ([]*model.Run, error) {
	return s.store.ListRuns(ctx, filter)
}

// HITLQueue returns every pending item, oldest batch first.
func (s *Service) HITLQueue(ctx context.Context) ([]model.HITLItem, error) {
	batches, err := s.store.ListPendingBatches(ctx)
	if err != nil {
		return nil, err
	}
	items := []model.HITLItem{}
	for _, b := range batches {
		for _, it := range b.Items {
			if it.Status == model.HITLPending {
				items = append(items, it)
			}
		}
	}
	return items, nil
}

// HITLBatch returns one batch.
func (s *Service) HITLBatch(ctx context.Context, hitlID string) (*model.HITLBatch, error) {
	return s.store.GetBatch(ctx, hitlID)
}

// HITLRespond decides a batch and resumes its run. See Gate.Respond.
func (s *Service) HITLRespond(ctx context.Context, hitlID string, decisions []model.Decision, actor string) (*model.Run, error) {
	return s.gate.Respond(ctx, hitlID, decisions, actor)
}

// ExportRedline returns the tracked-changes document of any run that has a
// draft. Personal data appears on the removed side only as its type token.
func (s *Service) ExportRedline(ctx context.Context, runID, actor string) (*Export, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := run.Output(model.StageDraft)
	if out == nil || out.Draft == nil {
		return nil, model.NewConflictError("run", runID, fmt.Sprintf("run is %s and has no draft", run.Status))
	}
	return s.export(ctx, run, ExportRedline, out.Draft.RedlineDocument, actor), nil
}

// ExportFinal returns the final document. Only completed runs may be
// exported.
func (s *Service) ExportFinal(ctx context.Context, runID, actor string) (*Export, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != model.StatusCompleted || run.FinalOutput == nil {
		return nil, model.NewConflictError("run", runID, fmt.Sprintf("run is %s, final export requires completed", run.Status))
	}
	return s.export(ctx, run, ExportFinal, run.FinalOutput.Document, actor), nil
}

func (s *Service) export(ctx context.Context, run *model.Run, kind, content, actor string) *Export {
	exp := &Export{
		RunID:       run.RunID,
		Kind:        kind,
		Content:     content,
		ContentHash: audit.HashContent([]byte(content)),
	}
	s.ledger.Record(ctx, run.RunID, model.AuditExport, actor, model.ExportDetails{
		Kind:        kind,
		ContentHash: exp.ContentHash,
		Bytes:       len(content),
	})
	s.metrics.RecordExport(kind, len(content))
	s.logger.InfoContext(logging.WithRunID(ctx, run.RunID), "document exported",
		"kind", kind,
		"bytes", len(content),
	)
	return exp
}

// AuditTrail returns the run's ledger entries in sequence order.
func (s *Service) AuditTrail(ctx context.Context, runID string) ([]*model.AuditEntry, error) {
	return s.ledger.Query(ctx, runID)
}

// History verifies the run's ledger and rebuilds its history from it.
func (s *Service) History(ctx context.Context, runID string) (*audit.History, error) {
	entries, err := s.ledger.Query(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("audit trail for run %s: %w", runID, model.ErrNotFound)
	}
	return audit.Replay(entries)
}

// Recover picks up runs left behind by crashed workers: running runs whose
// lease has expired are advanced, and suspended runs whose batch was decided
// are resumed. Runs leased by other live workers are skipped. Call it before
// this worker starts driving runs. It returns the number of runs it moved.
func (s *Service) Recover(ctx context.Context) (int, error) {
	var errs []error
	moved := 0

	running, err := s.store.ListRuns(ctx, store.RunFilter{Status: model.StatusRunning})
	if err != nil {
		return 0, err
	}
	pending, err := s.store.ListRuns(ctx, store.RunFilter{Status: model.StatusPending})
	if err != nil {
		return 0, err
	}
	for _, run := range append(pending, running...) {
		advanced, err := s.orchestrator.Advance(ctx, run.RunID, "")
		if s.settled(ctx, advanced, err, &errs) {
			moved++
		}
	}

	waiting, err := s.store.ListRuns(ctx, store.RunFilter{Status: model.StatusAwaitingHITL})
	if err != nil {
		return moved, errors.Join(append(errs, err)...)
	}
	for _, run := range waiting {
		batch, err := s.store.GetBatch(ctx, run.PendingHITLID)
		if err != nil || batch.AnyPending() {
			continue
		}
		resumed, err := s.orchestrator.Resume(ctx, run.RunID, "")
		if s.settled(ctx, resumed, err, &errs) {
			moved++
		}
	}

	if moved > 0 {
		s.logger.InfoContext(ctx, "recovered runs", "count", moved)
	}
	return moved, errors.Join(errs...)
}

// settled reports whether a recovery attempt moved the run. Runs that failed
// while being driven count as moved; their error is only logged.
func (s *Service) settled(ctx context.Context, run *model.Run, err error, errs *[]error) bool {
	switch {
	case err == nil:
		return true
	case model.IsConflict(err):
		return false
	case run != nil:
		s.logger.WarnContext(logging.WithRunID(ctx, run.RunID), "recovered run failed", "error", err)
		return true
	default:
		*errs = append(*errs, err)
		return false
	}
}

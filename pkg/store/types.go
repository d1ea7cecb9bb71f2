package store

import (
	"context"

	"mercator-hq/docguard/pkg/model"
)

// RunStore persists runs keyed by run id.
type RunStore interface {
	// CreateRun stores a new run at version 1. A run with the same id
	// yields a ConflictError.
	CreateRun(ctx context.Context, run *model.Run) error

	// GetRun returns a copy of the run, or an error wrapping
	// model.ErrNotFound.
	GetRun(ctx context.Context, runID string) (*model.Run, error)

	// UpdateRun replaces the run if run.Version matches the stored version,
	// then increments run.Version. A mismatch yields a ConflictError.
	UpdateRun(ctx context.Context, run *model.Run) error

	// ListRuns returns runs ordered by creation time.
	ListRuns(ctx context.Context, filter RunFilter) ([]*model.Run, error)
}

// HITLStore persists HITL batches keyed by hitl id.
type HITLStore interface {
	CreateBatch(ctx context.Context, batch *model.HITLBatch) error
	GetBatch(ctx context.Context, hitlID string) (*model.HITLBatch, error)
	// UpdateBatch follows the same version rules as UpdateRun.
	UpdateBatch(ctx context.Context, batch *model.HITLBatch) error
	// ListPendingBatches returns unresolved batches, oldest first.
	ListPendingBatches(ctx context.Context) ([]*model.HITLBatch, error)
}

// Store is a backend holding both runs and batches.
type Store interface {
	RunStore
	HITLStore
	Close() error
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Status     model.RunStatus
	DocumentID string
	Limit      int
}

func (f RunFilter) matches(r *model.Run) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.DocumentID != "" && r.DocumentID != f.DocumentID {
		return false
	}
	return true
}

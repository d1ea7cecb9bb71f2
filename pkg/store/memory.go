package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"mercator-hq/docguard/pkg/model"
)

// MemoryStore is an in-memory Store. Records are copied on the way in and
// out so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]*model.Run
	batches map[string]*model.HITLBatch
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:    make(map[string]*model.Run),
		batches: make(map[string]*model.HITLBatch),
	}
}

// CreateRun implements RunStore.
func (m *MemoryStore) CreateRun(_ context.Context, run *model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.RunID]; exists {
		return model.NewConflictError("run", run.RunID, "already exists")
	}
	run.Version = 1
	m.runs[run.RunID] = run.Clone()
	return nil
}

// GetRun implements RunStore.
func (m *MemoryStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, runNotFound(runID)
	}
	return run.Clone(), nil
}

// UpdateRun implements RunStore.
func (m *MemoryStore) UpdateRun(_ context.Context, run *model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.runs[run.RunID]
	if !ok {
		return runNotFound(run.RunID)
	}
	if stored.Version != run.Version {
		return staleVersion("run", run.RunID, run.Version, stored.Version)
	}
	run.Version++
	m.runs[run.RunID] = run.Clone()
	return nil
}

// ListRuns implements RunStore.
func (m *MemoryStore) ListRuns(_ context.Context, filter RunFilter) ([]*model.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Run
	for _, r := range m.runs {
		if filter.matches(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CreateBatch implements HITLStore.
func (m *MemoryStore) CreateBatch(_ context.Context, batch *model.HITLBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.batches[batch.HITLID]; exists {
		return model.NewConflictError("hitl_batch", batch.HITLID, "already exists")
	}
	batch.Version = 1
	cp, err := cloneBatch(batch)
	if err != nil {
		return NewStorageError("memory", "create_batch", err)
	}
	m.batches[batch.HITLID] = cp
	return nil
}

// GetBatch implements HITLStore.
func (m *MemoryStore) GetBatch(_ context.Context, hitlID string) (*model.HITLBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.batches[hitlID]
	if !ok {
		return nil, batchNotFound(hitlID)
	}
	cp, err := cloneBatch(b)
	if err != nil {
		return nil, NewStorageError("memory", "get_batch", err)
	}
	return cp, nil
}

// UpdateBatch implements HITLStore.
func (m *MemoryStore) UpdateBatch(_ context.Context, batch *model.HITLBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.batches[batch.HITLID]
	if !ok {
		return batchNotFound(batch.HITLID)
	}
	if stored.Version != batch.Version {
		return staleVersion("hitl_batch", batch.HITLID, batch.Version, stored.Version)
	}
	batch.Version++
	cp, err := cloneBatch(batch)
	if err != nil {
		batch.Version--
		return NewStorageError("memory", "update_batch", err)
	}
	m.batches[batch.HITLID] = cp
	return nil
}

// ListPendingBatches implements HITLStore.
func (m *MemoryStore) ListPendingBatches(_ context.Context) ([]*model.HITLBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.HITLBatch
	for _, b := range m.batches {
		if b.ResolvedAt != nil {
			continue
		}
		cp, err := cloneBatch(b)
		if err != nil {
			return nil, NewStorageError("memory", "list_pending", err)
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].HITLID < out[j].HITLID
	})
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}

func cloneBatch(b *model.HITLBatch) (*model.HITLBatch, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal batch %s: %w", b.HITLID, err)
	}
	var out model.HITLBatch
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal batch %s: %w", b.HITLID, err)
	}
	return &out, nil
}

package storage

import (
	"context"
	"sort"
	"sync"

	"mercator-hq/docguard/pkg/audit"
	"mercator-hq/docguard/pkg/model"
)

// MemorySink implements audit.Sink with per-run slices.
type MemorySink struct {
	mu   sync.RWMutex
	runs map[string][]*model.AuditEntry
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{runs: make(map[string][]*model.AuditEntry)}
}

// Append seals the entry against the run's last entry and stores a copy.
func (s *MemorySink) Append(ctx context.Context, entry *model.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return audit.NewStorageError("memory", "append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.runs[entry.RunID]
	var prev *model.AuditEntry
	if len(chain) > 0 {
		prev = chain[len(chain)-1]
	}
	audit.Seal(entry, prev)

	stored := copyEntry(entry)
	s.runs[entry.RunID] = append(chain, stored)
	return nil
}

// Query returns copies of the matching entries.
func (s *MemorySink) Query(ctx context.Context, filter audit.Filter) ([]*model.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*model.AuditEntry
	collect := func(chain []*model.AuditEntry) {
		for _, e := range chain {
			if filter.Matches(e) {
				results = append(results, copyEntry(e))
			}
		}
	}

	if filter.RunID != "" {
		collect(s.runs[filter.RunID])
	} else {
		for _, chain := range s.runs {
			collect(chain)
		}
		sort.SliceStable(results, func(i, j int) bool {
			a, b := results[i], results[j]
			if !a.Timestamp.Equal(b.Timestamp) {
				return a.Timestamp.Before(b.Timestamp)
			}
			if a.RunID != b.RunID {
				return a.RunID < b.RunID
			}
			return a.Sequence < b.Sequence
		})
	}

	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	if results == nil {
		results = []*model.AuditEntry{}
	}
	return results, nil
}

// Close is a no-op.
func (s *MemorySink) Close() error {
	return nil
}

func copyEntry(e *model.AuditEntry) *model.AuditEntry {
	c := *e
	c.Details = append([]byte(nil), e.Details...)
	return &c
}

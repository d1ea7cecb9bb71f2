package audit

import (
	"context"
	"time"

	"mercator-hq/docguard/pkg/model"
)

// Sink is append-only storage for audit entries.
type Sink interface {
	// Append assigns the entry's Sequence, PrevHash and Hash from the last
	// entry of the same run and stores it. Assignment and storage are
	// atomic per run.
	Append(ctx context.Context, entry *model.AuditEntry) error

	// Query returns matching entries. With a RunID the entries are in
	// sequence order; otherwise they are ordered by timestamp.
	Query(ctx context.Context, filter Filter) ([]*model.AuditEntry, error)

	Close() error
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	RunID   string
	Actions []model.AuditAction
	Since   time.Time
	Until   time.Time
	Limit   int
}

// Matches reports whether e satisfies the filter.
func (f Filter) Matches(e *model.AuditEntry) bool {
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if e.Action == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

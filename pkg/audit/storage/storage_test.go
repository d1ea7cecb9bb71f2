package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mercator-hq/docguard/pkg/audit"
	"mercator-hq/docguard/pkg/model"
)

func newEntry(runID string, action model.AuditAction, at time.Time) *model.AuditEntry {
	return &model.AuditEntry{
		EntryID:   runID + "-" + at.Format(time.RFC3339Nano),
		RunID:     runID,
		Timestamp: at,
		Action:    action,
		Actor:     "system",
		Details:   json.RawMessage(`{"k":"v"}`),
	}
}

func sinks(t *testing.T) map[string]audit.Sink {
	t.Helper()
	sq, err := NewSQLiteSink(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "audit.db")}, nil)
	if err != nil {
		t.Fatalf("NewSQLiteSink() error = %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]audit.Sink{
		"memory": NewMemorySink(),
		"sqlite": sq,
	}
}

func TestSink_AppendAssignsChain(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	for name, sink := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				if err := sink.Append(ctx, newEntry("run-1", model.AuditTransition, base.Add(time.Duration(i)*time.Second))); err != nil {
					t.Fatalf("Append() error = %v", err)
				}
			}
			if err := sink.Append(ctx, newEntry("run-2", model.AuditExport, base)); err != nil {
				t.Fatal(err)
			}

			entries, err := sink.Query(ctx, audit.Filter{RunID: "run-1"})
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(entries) != 3 {
				t.Fatalf("got %d entries, want 3", len(entries))
			}
			if err := audit.Verify(entries); err != nil {
				t.Errorf("Verify() error = %v", err)
			}
			if !entries[0].Timestamp.Equal(base) {
				t.Errorf("timestamp = %v, want %v", entries[0].Timestamp, base)
			}

			other, err := sink.Query(ctx, audit.Filter{RunID: "run-2"})
			if err != nil {
				t.Fatal(err)
			}
			if len(other) != 1 || other[0].Sequence != 1 {
				t.Errorf("run-2 entries = %+v", other)
			}
		})
	}
}

func TestSink_QueryFilters(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for name, sink := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sink.Append(ctx, newEntry("a", model.AuditRunCreated, base))
			sink.Append(ctx, newEntry("b", model.AuditRunCreated, base.Add(time.Minute)))
			sink.Append(ctx, newEntry("a", model.AuditExport, base.Add(2*time.Minute)))

			all, err := sink.Query(ctx, audit.Filter{})
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 3 || all[0].RunID != "a" || all[1].RunID != "b" {
				t.Errorf("unfiltered order wrong: %v", runIDs(all))
			}

			exports, _ := sink.Query(ctx, audit.Filter{Actions: []model.AuditAction{model.AuditExport}})
			if len(exports) != 1 || exports[0].Sequence != 2 {
				t.Errorf("exports = %+v", exports)
			}

			windowed, _ := sink.Query(ctx, audit.Filter{Since: base.Add(30 * time.Second), Until: base.Add(90 * time.Second)})
			if len(windowed) != 1 || windowed[0].RunID != "b" {
				t.Errorf("windowed = %v", runIDs(windowed))
			}

			limited, _ := sink.Query(ctx, audit.Filter{Limit: 2})
			if len(limited) != 2 {
				t.Errorf("limited = %d entries", len(limited))
			}

			none, _ := sink.Query(ctx, audit.Filter{RunID: "missing"})
			if none == nil || len(none) != 0 {
				t.Errorf("missing run = %v, want empty slice", none)
			}
		})
	}
}

func TestSink_ConcurrentAppend(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for name, sink := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if err := sink.Append(ctx, newEntry("run-x", model.AuditHITLDecision, base.Add(time.Duration(i)))); err != nil {
						t.Errorf("Append() error = %v", err)
					}
				}(i)
			}
			wg.Wait()

			entries, err := sink.Query(ctx, audit.Filter{RunID: "run-x"})
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 16 {
				t.Fatalf("got %d entries, want 16", len(entries))
			}
			if err := audit.Verify(entries); err != nil {
				t.Errorf("Verify() error = %v", err)
			}
		})
	}
}

func TestSQLiteSink_AppendOnly(t *testing.T) {
	sq, err := NewSQLiteSink(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "audit.db")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sq.Close()

	ctx := context.Background()
	if err := sq.Append(ctx, newEntry("run-1", model.AuditRunCreated, time.Now().UTC())); err != nil {
		t.Fatal(err)
	}

	if _, err := sq.db.ExecContext(ctx, `UPDATE audit_entries SET actor = 'mallory'`); err == nil {
		t.Error("UPDATE succeeded, want trigger rejection")
	}
	if _, err := sq.db.ExecContext(ctx, `DELETE FROM audit_entries`); err == nil {
		t.Error("DELETE succeeded, want trigger rejection")
	}
}

func TestSQLiteSink_SharedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	first, err := NewSQLiteSink(&SQLiteConfig{Path: path}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	second, err := NewSQLiteSink(&SQLiteConfig{Path: path}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	for i := 0; i < 4; i++ {
		s := first
		if i%2 == 1 {
			s = second
		}
		if err := s.Append(ctx, newEntry("run-s", model.AuditTransition, now.Add(time.Duration(i)))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	entries, err := first.Query(ctx, audit.Filter{RunID: "run-s"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	if err := audit.Verify(entries); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func runIDs(entries []*model.AuditEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.RunID
	}
	return ids
}

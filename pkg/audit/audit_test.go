package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"mercator-hq/docguard/pkg/audit"
	"mercator-hq/docguard/pkg/audit/storage"
	"mercator-hq/docguard/pkg/model"
)

func recordRun(t *testing.T, l *audit.Ledger, runID string) {
	t.Helper()
	ctx := context.Background()
	l.Record(ctx, runID, model.AuditRunCreated, "tester", model.RunCreatedDetails{DocumentID: "doc-1", PolicySetID: "default"})
	l.Record(ctx, runID, model.AuditTransition, "", model.TransitionDetails{From: model.StatusPending, To: model.StatusRunning, Stage: model.StageClassify})
	l.Record(ctx, runID, model.AuditStageCompleted, "", model.StageCompletedDetails{
		Stage:  model.StageClassify,
		Output: &model.StageOutput{Stage: model.StageClassify, Classification: &model.Classification{DocType: "nda", SensitivityLevel: model.RiskLow}},
	})
	l.Record(ctx, runID, model.AuditTransition, "", model.TransitionDetails{From: model.StatusRunning, To: model.StatusCompleted})
}

func TestLedger_SequenceAndChain(t *testing.T) {
	l := audit.NewLedger(storage.NewMemorySink(), nil, nil)
	defer l.Close()

	recordRun(t, l, "run-a")
	recordRun(t, l, "run-b")

	for _, runID := range []string{"run-a", "run-b"} {
		entries, err := l.Query(context.Background(), runID)
		if err != nil {
			t.Fatalf("Query(%s) error = %v", runID, err)
		}
		if len(entries) != 4 {
			t.Fatalf("Query(%s) returned %d entries, want 4", runID, len(entries))
		}
		for i, e := range entries {
			if e.Sequence != int64(i+1) {
				t.Errorf("entry %d sequence = %d", i, e.Sequence)
			}
			if e.RunID != runID {
				t.Errorf("entry %d run = %s", i, e.RunID)
			}
		}
		if entries[0].PrevHash != "" {
			t.Errorf("first entry prev_hash = %q, want empty", entries[0].PrevHash)
		}
		if entries[0].Actor != "tester" || entries[1].Actor != "system" {
			t.Errorf("actors = %q, %q", entries[0].Actor, entries[1].Actor)
		}
		if err := audit.Verify(entries); err != nil {
			t.Errorf("Verify(%s) error = %v", runID, err)
		}
	}
}

func TestLedger_RecordAfterClose(t *testing.T) {
	sink := storage.NewMemorySink()
	l := audit.NewLedger(sink, nil, nil)
	l.Record(context.Background(), "run-1", model.AuditRunCreated, "", model.RunCreatedDetails{DocumentID: "d"})
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	l.Record(context.Background(), "run-1", model.AuditExport, "", model.ExportDetails{Kind: "final"})

	entries, err := sink.Query(context.Background(), audit.Filter{RunID: "run-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[1].Action != model.AuditExport {
		t.Errorf("second action = %s", entries[1].Action)
	}
}

func TestLedger_ConcurrentRecord(t *testing.T) {
	l := audit.NewLedger(storage.NewMemorySink(), &audit.Config{AsyncBuffer: 4}, nil)
	defer l.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(context.Background(), "run-c", model.AuditExport, "", model.ExportDetails{Kind: "redline"})
		}()
	}
	wg.Wait()

	entries, err := l.Query(context.Background(), "run-c")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 20 {
		t.Fatalf("got %d entries, want 20", len(entries))
	}
	if err := audit.Verify(entries); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	l := audit.NewLedger(storage.NewMemorySink(), nil, nil)
	defer l.Close()
	recordRun(t, l, "run-t")

	fresh := func() []*model.AuditEntry {
		entries, err := l.Query(context.Background(), "run-t")
		if err != nil {
			t.Fatal(err)
		}
		return entries
	}

	tests := []struct {
		name   string
		mutate func([]*model.AuditEntry) []*model.AuditEntry
	}{
		{"altered details", func(e []*model.AuditEntry) []*model.AuditEntry {
			e[1].Details = json.RawMessage(`{"from":"pending","to":"completed"}`)
			return e
		}},
		{"altered actor", func(e []*model.AuditEntry) []*model.AuditEntry {
			e[2].Actor = "mallory"
			return e
		}},
		{"gap", func(e []*model.AuditEntry) []*model.AuditEntry {
			return append(e[:1], e[2:]...)
		}},
		{"reordered", func(e []*model.AuditEntry) []*model.AuditEntry {
			e[1], e[2] = e[2], e[1]
			return e
		}},
		{"broken link", func(e []*model.AuditEntry) []*model.AuditEntry {
			e[3].PrevHash = e[1].Hash
			return e
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := audit.Verify(tt.mutate(fresh()))
			var ie *audit.IntegrityError
			if !errors.As(err, &ie) {
				t.Fatalf("Verify() error = %v, want IntegrityError", err)
			}
		})
	}
}

func TestReplay(t *testing.T) {
	l := audit.NewLedger(storage.NewMemorySink(), nil, nil)
	defer l.Close()
	recordRun(t, l, "run-r")

	entries, err := l.Query(context.Background(), "run-r")
	if err != nil {
		t.Fatal(err)
	}
	h, err := audit.Replay(entries)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if h.Status != model.StatusCompleted {
		t.Errorf("Status = %s, want completed", h.Status)
	}
	if h.DocumentID != "doc-1" || h.PolicySetID != "default" {
		t.Errorf("document/policy = %s/%s", h.DocumentID, h.PolicySetID)
	}
	if len(h.Transitions) != 2 {
		t.Errorf("Transitions = %d, want 2", len(h.Transitions))
	}
	out := h.StageOutputs[model.StageClassify]
	if out == nil || out.Classification == nil || out.Classification.DocType != "nda" {
		t.Errorf("classifier output not replayed: %+v", out)
	}
}

func TestReplay_DuplicateStage(t *testing.T) {
	l := audit.NewLedger(storage.NewMemorySink(), nil, nil)
	defer l.Close()
	ctx := context.Background()
	d := model.StageCompletedDetails{Stage: model.StageExtract, Output: &model.StageOutput{Stage: model.StageExtract}}
	l.Record(ctx, "run-d", model.AuditStageCompleted, "", d)
	l.Record(ctx, "run-d", model.AuditStageCompleted, "", d)

	entries, err := l.Query(ctx, "run-d")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := audit.Replay(entries); err == nil {
		t.Fatal("Replay() expected error for duplicate stage completion")
	}
}

func TestFilter_Matches(t *testing.T) {
	e := &model.AuditEntry{RunID: "r", Action: model.AuditExport}
	tests := []struct {
		name   string
		filter audit.Filter
		want   bool
	}{
		{"empty", audit.Filter{}, true},
		{"run match", audit.Filter{RunID: "r"}, true},
		{"run mismatch", audit.Filter{RunID: "x"}, false},
		{"action match", audit.Filter{Actions: []model.AuditAction{model.AuditTransition, model.AuditExport}}, true},
		{"action mismatch", audit.Filter{Actions: []model.AuditAction{model.AuditTransition}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(e); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

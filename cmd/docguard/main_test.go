package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/docguard/pkg/cli"
	"mercator-hq/docguard/pkg/config"
	"mercator-hq/docguard/pkg/model"
)

func newTestApp(t *testing.T, docs map[string]string) *app {
	t.Helper()

	dir := t.TempDir()
	for name, content := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	cfg.Audit.Backend = "memory"
	cfg.Documents.Directory = dir

	a, err := newApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	if !strings.HasPrefix(out.String(), "Docguard "+Version) {
		t.Errorf("version output = %q, want prefix %q", out.String(), "Docguard "+Version)
	}
	if !strings.Contains(out.String(), "Go Version: ") {
		t.Errorf("version output missing Go version: %q", out.String())
	}
}

func TestFlagDecisions(t *testing.T) {
	batch := &model.HITLBatch{
		HITLID: "h1",
		Items: []model.HITLItem{
			{ItemID: "i001"},
			{ItemID: "i002"},
			{ItemID: "i003"},
		},
	}

	tests := []struct {
		name  string
		flags decisionFlags
		want  []model.Decision
	}{
		{
			name:  "approve all",
			flags: decisionFlags{ApproveAll: true, Rationale: "ok"},
			want: []model.Decision{
				{ItemID: "i001", Action: model.ActionApprove, Rationale: "ok"},
				{ItemID: "i002", Action: model.ActionApprove, Rationale: "ok"},
				{ItemID: "i003", Action: model.ActionApprove, Rationale: "ok"},
			},
		},
		{
			name: "reject one approve rest",
			flags: decisionFlags{
				Reject:     []string{"i002"},
				ApproveAll: true,
				Rationale:  "advice",
			},
			want: []model.Decision{
				{ItemID: "i002", Action: model.ActionReject, Rationale: "advice"},
				{ItemID: "i001", Action: model.ActionApprove, Rationale: "advice"},
				{ItemID: "i003", Action: model.ActionApprove, Rationale: "advice"},
			},
		},
		{
			name: "modifications sorted by item",
			flags: decisionFlags{
				Modify:    map[string]string{"i003": "c", "i001": "a"},
				Rationale: "edit",
			},
			want: []model.Decision{
				{ItemID: "i001", Action: model.ActionModify, Rationale: "edit", Modification: "a"},
				{ItemID: "i003", Action: model.ActionModify, Rationale: "edit", Modification: "c"},
			},
		},
		{
			name: "duplicate kept for the gate",
			flags: decisionFlags{
				Approve:   []string{"i001"},
				Reject:    []string{"i001"},
				Rationale: "x",
			},
			want: []model.Decision{
				{ItemID: "i001", Action: model.ActionApprove, Rationale: "x"},
				{ItemID: "i001", Action: model.ActionReject, Rationale: "x"},
			},
		},
		{
			name:  "nothing",
			flags: decisionFlags{},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := flagDecisions(batch, tt.flags)
			if len(got) != len(tt.want) {
				t.Fatalf("flagDecisions() returned %d decisions, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("decision %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestReadDecisions(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	os.WriteFile(valid, []byte(`[{"item_id":"i001","action":"approve","rationale":"fine"}]`), 0o644)

	decisions, err := readDecisions(valid)
	if err != nil {
		t.Fatalf("readDecisions() error = %v", err)
	}
	if len(decisions) != 1 || decisions[0].ItemID != "i001" || decisions[0].Action != model.ActionApprove {
		t.Errorf("readDecisions() = %+v", decisions)
	}

	invalid := filepath.Join(dir, "invalid.json")
	os.WriteFile(invalid, []byte(`{"item_id":`), 0o644)

	for _, path := range []string{invalid, filepath.Join(dir, "missing.json")} {
		_, err := readDecisions(path)
		var cfgErr *cli.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("readDecisions(%s) error = %v, want ConfigError", filepath.Base(path), err)
		}
	}
}

func TestStartBatch(t *testing.T) {
	a := newTestApp(t, map[string]string{
		"ssn.md":   "SSN: 123-45-6789\n",
		"empty.md": "",
	})
	ctx := context.Background()

	docs := []string{"ssn.md", "missing.md", "empty.md"}
	var progress bytes.Buffer
	runs, summary, err := startBatch(ctx, a.service, docs, batchOptions{
		PolicySetID: "default",
		Parallel:    2,
		Actor:       "tester",
	}, &progress)
	if err != nil {
		t.Fatalf("startBatch() error = %v", err)
	}

	if summary.Total != 3 || summary.Awaiting != 1 || summary.Completed != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 awaiting, 1 completed, 1 failed", summary)
	}
	if len(runs) != 3 {
		t.Fatalf("startBatch() returned %d runs, want 3", len(runs))
	}

	want := []model.RunStatus{model.StatusAwaitingHITL, model.StatusFailed, model.StatusCompleted}
	for i, run := range runs {
		if run.DocumentID != docs[i] {
			t.Errorf("run %d document = %s, want %s", i, run.DocumentID, docs[i])
		}
		if run.Status != want[i] {
			t.Errorf("run %s status = %s, want %s", run.DocumentID, run.Status, want[i])
		}
	}
	if !strings.Contains(progress.String(), "✗ missing.md") {
		t.Errorf("progress output missing failure line: %q", progress.String())
	}

	t.Run("verify chains", func(t *testing.T) {
		ids := make([]string, 0, len(runs))
		for _, r := range runs {
			ids = append(ids, r.RunID)
		}
		var out bytes.Buffer
		if failed := verifyRuns(ctx, a.ledger, ids, &out); failed != 0 {
			t.Errorf("verifyRuns() = %d failures, output:\n%s", failed, out.String())
		}
		if failed := verifyRuns(ctx, a.ledger, []string{"no-such-run"}, &out); failed != 1 {
			t.Errorf("verifyRuns(unknown) = %d failures, want 1", failed)
		}
	})

	t.Run("write entries", func(t *testing.T) {
		entries, err := a.service.AuditTrail(ctx, runs[2].RunID)
		if err != nil {
			t.Fatalf("AuditTrail() error = %v", err)
		}

		tests := []struct {
			format string
			prefix string
		}{
			{"json", "["},
			{"csv", "entry_id,run_id,sequence"},
			{"text", ""},
		}
		for _, tt := range tests {
			var buf bytes.Buffer
			if err := writeEntries(ctx, &buf, entries, tt.format); err != nil {
				t.Errorf("writeEntries(%s) error = %v", tt.format, err)
				continue
			}
			if !strings.HasPrefix(buf.String(), tt.prefix) {
				t.Errorf("writeEntries(%s) = %q, want prefix %q", tt.format, buf.String(), tt.prefix)
			}
		}

		var cfgErr *cli.ConfigError
		if err := writeEntries(ctx, io.Discard, entries, "xml"); !errors.As(err, &cfgErr) {
			t.Errorf("writeEntries(xml) error = %v, want ConfigError", err)
		}
	})
}

func TestStartBatchUnknownPolicySet(t *testing.T) {
	a := newTestApp(t, map[string]string{"empty.md": ""})

	runs, summary, err := startBatch(context.Background(), a.service, []string{"empty.md"}, batchOptions{
		PolicySetID: "no-such-set",
		Parallel:    1,
	}, io.Discard)
	if err != nil {
		t.Fatalf("startBatch() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("startBatch() returned %d runs, want none", len(runs))
	}
	if summary.Errors != 1 {
		t.Errorf("summary.Errors = %d, want 1", summary.Errors)
	}
}

func TestAuditFilter(t *testing.T) {
	defer func() { auditFlags.since, auditFlags.until, auditFlags.actions = "", "", nil }()

	auditFlags.actions = []string{"transition", " hitl_decision"}
	auditFlags.since = "2026-03-01T00:00:00Z"
	filter, err := auditFilter([]string{"run-1"})
	if err != nil {
		t.Fatalf("auditFilter() error = %v", err)
	}
	if filter.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", filter.RunID)
	}
	if len(filter.Actions) != 2 || filter.Actions[1] != model.AuditAction("hitl_decision") {
		t.Errorf("Actions = %v", filter.Actions)
	}
	if filter.Since.IsZero() || filter.Since.Month() != 3 {
		t.Errorf("Since = %v", filter.Since)
	}

	auditFlags.until = "yesterday"
	_, err = auditFilter(nil)
	var cfgErr *cli.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "until" {
		t.Errorf("auditFilter() error = %v, want ConfigError on until", err)
	}
}

func TestValidatePolicyFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		content   string
		wantValid bool
		wantError string
	}{
		{
			name:      "strict.yaml",
			content:   "id: strict\nfinancial_threshold: 5000\nconfidence_floor: 0.9\n",
			wantValid: true,
		},
		{
			name:      "floor.yaml",
			content:   "id: floor\nconfidence_floor: 1.5\n",
			wantValid: false,
			wantError: "confidence_floor",
		},
		{
			name:      "unknown.yaml",
			content:   "id: unknown\nno_such_field: true\n",
			wantValid: false,
			wantError: "no_such_field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			result := validatePolicyFile(path)
			if result.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (errors: %v)", result.Valid, tt.wantValid, result.Errors)
			}
			if tt.wantError != "" && !strings.Contains(strings.Join(result.Errors, "\n"), tt.wantError) {
				t.Errorf("Errors = %v, want mention of %s", result.Errors, tt.wantError)
			}
		})
	}
}

func TestAppHealth(t *testing.T) {
	a := newTestApp(t, nil)

	report := a.health.Readiness(context.Background())
	if report.Status != "ready" {
		t.Errorf("Readiness() = %+v, want ready", report)
	}
	for _, name := range []string{"run_store", "audit_ledger", "policy"} {
		if _, ok := report.Checks[name]; !ok {
			t.Errorf("missing %s check", name)
		}
	}
}

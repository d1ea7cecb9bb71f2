package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"mercator-hq/docguard/pkg/config"
	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/policy"
	"mercator-hq/docguard/pkg/store"
	"mercator-hq/docguard/pkg/telemetry/metrics"
)

func TestHITLID_Deterministic(t *testing.T) {
	a := HITLID("run-1", model.StageReview)
	require.Equal(t, a, HITLID("run-1", model.StageReview))
	require.NotEqual(t, a, HITLID("run-1", model.StageDraft))
	require.NotEqual(t, a, HITLID("run-2", model.StageReview))
}

func runWithClassification(level model.RiskLevel) *model.Run {
	run := model.NewRun("run-1", "doc", policy.DefaultSetID, time.Now())
	_ = run.AddStageOutput(&model.StageOutput{
		Stage:          model.StageClassify,
		Classification: &model.Classification{DocType: "nda", SensitivityLevel: level, Confidence: 0.9},
	})
	return run
}

func TestNewBatch(t *testing.T) {
	strict := policy.Default()
	strict.AlwaysHITLSensitivity = []model.RiskLevel{model.RiskHigh}

	tests := []struct {
		name      string
		run       *model.Run
		out       *model.StageOutput
		set       *policy.PolicySet
		wantTypes []string
		wantRefs  []string
	}{
		{
			name: "confident high-risk entities only",
			run:  runWithClassification(model.RiskMedium),
			out: &model.StageOutput{Stage: model.StageExtract, Extraction: &model.ExtractionResult{
				PIIEntities: []model.PIIEntity{
					{EntityID: "e1", Type: "ssn", RawValue: "123-45-6789", RiskLevel: model.RiskHigh, Confidence: 0.95, ClauseID: "c001"},
					{EntityID: "e2", Type: "ssn", RawValue: "987-65-4321", RiskLevel: model.RiskHigh, Confidence: 0.5, ClauseID: "c002"},
					{EntityID: "e3", Type: "email", RawValue: "a@b.co", RiskLevel: model.RiskMedium, Confidence: 0.99, ClauseID: "c002"},
				},
				RequiresHITL: true,
			}},
			set:       policy.Default(),
			wantTypes: []string{model.ItemPIIEntity},
			wantRefs:  []string{"c001"},
		},
		{
			name:      "always-hitl sensitivity",
			run:       runWithClassification(model.RiskHigh),
			out:       &model.StageOutput{Stage: model.StageExtract, Extraction: &model.ExtractionResult{RequiresHITL: true}},
			set:       strict,
			wantTypes: []string{model.ItemSensitivityReview},
			wantRefs:  []string{""},
		},
		{
			name: "review items without duplicates",
			run:  runWithClassification(model.RiskLow),
			out: &model.StageOutput{Stage: model.StageReview, Review: &model.ReviewResult{
				OverallRisk: model.RiskHigh,
				ClauseAssessments: []model.ClauseAssessment{
					{ClauseID: "c001", RiskLevel: model.RiskHigh, Reasons: []string{"financial_threshold"}},
					{ClauseID: "c002", RiskLevel: model.RiskHigh, Reasons: []string{"pii:ssn (high)"}},
					{ClauseID: "c003", RiskLevel: model.RiskLow},
				},
				PolicyViolations: []model.PolicyViolation{
					{ViolationID: "v001", Type: model.ViolationFinancialThreshold, Severity: model.RiskHigh, ClauseID: "c001"},
					{ViolationID: "v002", Type: model.ViolationMissingDisclaimer, Severity: model.RiskHigh, Description: "required disclaimer x is missing"},
					{ViolationID: "v003", Type: model.ViolationUnauthorizedSharing, Severity: model.RiskMedium, ClauseID: "c003"},
				},
				HighRiskItems: []model.HighRiskItem{
					{ItemType: model.HighRiskFinancialAmount, ClauseID: "c001", Amount: 150000, Threshold: 100000},
				},
				RequiresHITL: true,
			}},
			set:       policy.Default(),
			wantTypes: []string{model.ItemFinancialAmount, model.ItemPolicyViolation, model.ItemClauseRisk},
			wantRefs:  []string{"c001", "", "c002"},
		},
		{
			name: "overall risk fallback",
			run:  runWithClassification(model.RiskLow),
			out: &model.StageOutput{Stage: model.StageReview, Review: &model.ReviewResult{
				OverallRisk:  model.RiskHigh,
				RequiresHITL: true,
			}},
			set:       policy.Default(),
			wantTypes: []string{model.ItemClauseRisk},
			wantRefs:  []string{""},
		},
		{
			name:      "final sign-off",
			run:       runWithClassification(model.RiskLow),
			out:       &model.StageOutput{Stage: model.StageDraft, Draft: &model.DraftResult{RequiresFinalHITL: true}},
			set:       policy.Default(),
			wantTypes: []string{model.ItemFinalSignoff},
			wantRefs:  []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBatch(tt.run, tt.out, tt.set, time.Now())
			require.Equal(t, HITLID(tt.run.RunID, tt.out.Stage), b.HITLID)
			require.Equal(t, tt.out.Stage, b.Stage)
			require.True(t, b.AllPending())

			var types, refs []string
			for i, it := range b.Items {
				require.Equal(t, b.HITLID, it.HITLID)
				require.Equal(t, tt.run.RunID, it.RunID)
				require.Equal(t, model.HITLPending, it.Status)
				require.NotEmpty(t, it.ItemID)
				if i > 0 {
					require.NotEqual(t, b.Items[i-1].ItemID, it.ItemID)
				}
				types = append(types, it.ItemType)
				refs = append(refs, it.Payload.ClauseID)
			}
			require.Equal(t, tt.wantTypes, types)
			require.Equal(t, tt.wantRefs, refs)
		})
	}
}

func TestNewBatch_MasksEntityValue(t *testing.T) {
	out := &model.StageOutput{Stage: model.StageExtract, Extraction: &model.ExtractionResult{
		PIIEntities: []model.PIIEntity{
			{EntityID: "e1", Type: "credit_card", RawValue: "4111 1111 1111 1111", RiskLevel: model.RiskHigh, Confidence: 0.9, ClauseID: "c001"},
		},
	}}
	b := newBatch(runWithClassification(model.RiskLow), out, policy.Default(), time.Now())
	require.Len(t, b.Items, 1)
	require.Contains(t, b.Items[0].Payload.Description, "**** **** **** 1111")
}

func TestMonitor_Sweep(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, stage := range []model.StageName{model.StageExtract, model.StageReview} {
		run := runWithClassification(model.RiskLow)
		run.RunID = []string{"run-a", "run-b"}[i]
		b := newBatch(run, &model.StageOutput{Stage: model.StageDraft, Draft: &model.DraftResult{RequiresFinalHITL: true}}, policy.Default(),
			created.Add(time.Duration(i)*time.Hour))
		b.Stage = stage
		require.NoError(t, st.CreateBatch(ctx, b))
	}

	cfg := &config.MetricsConfig{Enabled: true, Namespace: "docguard", Subsystem: "pipeline"}
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(cfg, registry)

	m := NewMonitor(st, collector, MonitorConfig{OverdueAfter: 90 * time.Minute}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.now = func() time.Time { return created.Add(2 * time.Hour) }

	stats, err := m.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Batches)
	require.Equal(t, 2, stats.Pending)
	require.Equal(t, 2*time.Hour, stats.Oldest)
	require.Len(t, stats.Overdue, 1)
	require.Equal(t, "run-a", stats.Overdue[0].RunID)

	expected := `
# HELP docguard_pipeline_hitl_overdue_items Number of pending HITL items older than the overdue threshold
# TYPE docguard_pipeline_hitl_overdue_items gauge
docguard_pipeline_hitl_overdue_items 1
# HELP docguard_pipeline_hitl_pending_items Number of HITL items awaiting a decision
# TYPE docguard_pipeline_hitl_pending_items gauge
docguard_pipeline_hitl_pending_items 2
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"docguard_pipeline_hitl_overdue_items", "docguard_pipeline_hitl_pending_items"))
}

func TestMonitor_StartStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	m := NewMonitor(store.NewMemoryStore(), nil, MonitorConfig{}, logger)
	require.NoError(t, m.Start(context.Background()))
	require.Nil(t, m.NextRun(), "empty schedule is not scheduled")

	m = NewMonitor(store.NewMemoryStore(), nil, MonitorConfig{Schedule: "not a schedule"}, logger)
	require.Error(t, m.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m = NewMonitor(store.NewMemoryStore(), nil, MonitorConfig{Schedule: "*/5 * * * *"}, logger)
	require.NoError(t, m.Start(ctx))
	require.Error(t, m.Start(ctx), "second start")
	require.NotNil(t, m.NextRun())
	m.Stop()
	m.Stop()
}

package model

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMaxRisk(t *testing.T) {
	tests := []struct {
		name   string
		levels []RiskLevel
		want   RiskLevel
	}{
		{"empty", nil, RiskLow},
		{"single medium", []RiskLevel{RiskMedium}, RiskMedium},
		{"high wins", []RiskLevel{RiskLow, RiskHigh, RiskMedium}, RiskHigh},
		{"unknown ignored", []RiskLevel{"bogus", RiskLow}, RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxRisk(tt.levels...); got != tt.want {
				t.Errorf("MaxRisk() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStageName_Next(t *testing.T) {
	next, ok := StageClassify.Next()
	if !ok || next != StageExtract {
		t.Errorf("StageClassify.Next() = %s, %v; want extract, true", next, ok)
	}
	if _, ok := StageDraft.Next(); ok {
		t.Error("StageDraft.Next() should report no next stage")
	}
}

func TestRun_AddStageOutputNeverOverwrites(t *testing.T) {
	run := NewRun("run-1", "doc-1", "default", time.Now())

	first := &StageOutput{Stage: StageClassify, Classification: &Classification{DocType: "nda"}}
	if err := run.AddStageOutput(first); err != nil {
		t.Fatalf("AddStageOutput() failed: %v", err)
	}

	second := &StageOutput{Stage: StageClassify, Classification: &Classification{DocType: "lease"}}
	if err := run.AddStageOutput(second); err == nil {
		t.Fatal("expected error when overwriting a stage output")
	}

	if got := run.Output(StageClassify).Classification.DocType; got != "nda" {
		t.Errorf("stage output was overwritten: doc_type = %s", got)
	}

	next, ok := run.NextStage()
	if !ok || next != StageExtract {
		t.Errorf("NextStage() = %s, %v; want extract, true", next, ok)
	}
}

func TestRun_Clone(t *testing.T) {
	run := NewRun("run-1", "doc-1", "default", time.Now().UTC())
	_ = run.AddStageOutput(&StageOutput{Stage: StageClassify, Classification: &Classification{DocType: "nda"}})

	clone := run.Clone()
	clone.StageOutputs[StageClassify].Classification.DocType = "changed"

	if run.Output(StageClassify).Classification.DocType != "nda" {
		t.Error("Clone() shares stage outputs with the original")
	}
}

func TestRun_LeaseHeld(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	tests := []struct {
		name    string
		holder  string
		token   string
		expires *time.Time
		caller  string
		want    bool
	}{
		{"no lease", "", "", nil, "", false},
		{"live lease", "w1", "t1", &future, "", true},
		{"live lease other token", "w1", "t1", &future, "t2", true},
		{"own token", "w1", "t1", &future, "t1", false},
		{"expired lease", "w2", "t2", &past, "", false},
		{"lease without expiry", "w2", "t2", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &Run{LeaseHolder: tt.holder, LeaseToken: tt.token, LeaseExpiresAt: tt.expires}
			if got := run.LeaseHeld(tt.caller, now); got != tt.want {
				t.Errorf("LeaseHeld() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecision_Validate(t *testing.T) {
	tests := []struct {
		name    string
		d       Decision
		wantErr string
	}{
		{"valid approve", Decision{ItemID: "i1", Action: ActionApprove, Rationale: "ok"}, ""},
		{"missing rationale", Decision{ItemID: "i1", Action: ActionReject}, "rationale"},
		{"unknown action", Decision{ItemID: "i1", Action: "escalate", Rationale: "x"}, "action"},
		{"modify without text", Decision{ItemID: "i1", Action: ActionModify, Rationale: "x"}, "modification"},
		{"missing item", Decision{Action: ActionApprove, Rationale: "x"}, "item_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if ve.Field != tt.wantErr {
				t.Errorf("ValidationError.Field = %s, want %s", ve.Field, tt.wantErr)
			}
		})
	}
}

func TestNewDecisionContext(t *testing.T) {
	batch := &HITLBatch{
		HITLID: "h1",
		Items: []HITLItem{
			{ItemID: "a", HITLID: "h1", Status: HITLApproved, Payload: ItemPayload{ClauseID: "c001"}},
			{ItemID: "b", HITLID: "h1", Status: HITLRejected, Payload: ItemPayload{ClauseID: "c002"}},
			{ItemID: "c", HITLID: "h1", Status: HITLModified, Modification: "Jane Roe", Payload: ItemPayload{ClauseID: "c003", EntityID: "e1"}},
			{ItemID: "d", HITLID: "h1", Status: HITLModified, Modification: "New body.", Payload: ItemPayload{ClauseID: "c004"}},
		},
	}

	dc := NewDecisionContext([]*HITLBatch{batch})

	if dc.ClauseRejected("c001") {
		t.Error("approved clause should not be rejected")
	}
	if !dc.ClauseRejected("c002") {
		t.Error("rejected clause should be recorded")
	}
	if got := dc.RejectedClauses["c002"]; got != "hitl:h1/b" {
		t.Errorf("rejection ref = %s, want hitl:h1/b", got)
	}
	if got := dc.EntityEdits["e1"].Text; got != "Jane Roe" {
		t.Errorf("entity edit = %q, want %q", got, "Jane Roe")
	}
	if _, ok := dc.ClauseEdits["c003"]; ok {
		t.Error("entity modification must not be treated as a clause edit")
	}
	if got := dc.ClauseEdits["c004"].Text; got != "New body." {
		t.Errorf("clause edit = %q, want %q", got, "New body.")
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("threshold missing")
	err := fmt.Errorf("advance: %w", NewStageError(StageReview, cause))

	var se *StageError
	if !errors.As(err, &se) {
		t.Fatal("expected StageError in chain")
	}
	if se.Stage != StageReview {
		t.Errorf("Stage = %s, want review", se.Stage)
	}
	if !errors.Is(err, cause) {
		t.Error("StageError should unwrap to its cause")
	}

	if !IsConflict(fmt.Errorf("wrap: %w", NewConflictError("run", "r1", "leased"))) {
		t.Error("IsConflict() should see wrapped ConflictError")
	}
}

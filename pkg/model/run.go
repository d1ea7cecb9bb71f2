package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Failure kinds recorded on failed runs.
const (
	FailureInput    = "input"
	FailureStage    = "stage"
	FailureRejected = "hitl_rejected"
)

// Failure describes why a run ended in StatusFailed.
type Failure struct {
	Kind    string    `json:"kind"`
	Stage   StageName `json:"stage,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// FinalOutput is stored on completed runs; it is the export source.
type FinalOutput struct {
	Document        string    `json:"document"`
	RedactionsCount int       `json:"redactions_count"`
	OverallRisk     RiskLevel `json:"overall_risk"`
}

// Run is the mutable unit of work for one document.
type Run struct {
	RunID           string                     `json:"run_id"`
	DocumentID      string                     `json:"document_id"`
	DocumentHash    string                     `json:"document_hash,omitempty"`
	Status          RunStatus                  `json:"status"`
	CurrentStage    StageName                  `json:"current_stage,omitempty"`
	StageOutputs    map[StageName]*StageOutput `json:"stage_outputs"`
	PolicySetID     string                     `json:"policy_set_id"`
	PolicyVersion   string                     `json:"policy_version,omitempty"`
	PolicyHash      string                     `json:"policy_hash,omitempty"`
	PolicySnapshot  json.RawMessage            `json:"policy_snapshot,omitempty"`
	ExternalSharing bool                       `json:"external_sharing"`
	PendingHITLID   string                     `json:"pending_hitl_id,omitempty"`
	Resolutions     []*HITLBatch               `json:"resolutions,omitempty"`
	FinalOutput     *FinalOutput               `json:"final_output,omitempty"`
	Failure         *Failure                   `json:"failure,omitempty"`
	LeaseHolder     string                     `json:"lease_holder,omitempty"`
	LeaseToken      string                     `json:"lease_token,omitempty"`
	LeaseExpiresAt  *time.Time                 `json:"lease_expires_at,omitempty"`
	Version         int64                      `json:"version"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// NewRun creates a pending run.
func NewRun(runID, documentID, policySetID string, now time.Time) *Run {
	return &Run{
		RunID:        runID,
		DocumentID:   documentID,
		Status:       StatusPending,
		StageOutputs: make(map[StageName]*StageOutput),
		PolicySetID:  policySetID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Output returns the stored output of a stage, or nil.
func (r *Run) Output(stage StageName) *StageOutput {
	if r.StageOutputs == nil {
		return nil
	}
	return r.StageOutputs[stage]
}

// AddStageOutput appends a stage output. Outputs are never overwritten.
func (r *Run) AddStageOutput(out *StageOutput) error {
	if out == nil || !out.Stage.Valid() {
		return fmt.Errorf("invalid stage output")
	}
	if r.StageOutputs == nil {
		r.StageOutputs = make(map[StageName]*StageOutput)
	}
	if _, exists := r.StageOutputs[out.Stage]; exists {
		return fmt.Errorf("stage %s output already recorded for run %s", out.Stage, r.RunID)
	}
	r.StageOutputs[out.Stage] = out
	return nil
}

// NextStage returns the first stage, in pipeline order, without an output.
func (r *Run) NextStage() (StageName, bool) {
	for _, st := range StageOrder {
		if r.Output(st) == nil {
			return st, true
		}
	}
	return "", false
}

// Decisions folds the run's resolved HITL batches into a DecisionContext.
func (r *Run) Decisions() *DecisionContext {
	return NewDecisionContext(r.Resolutions)
}

// LeaseHeld reports whether a live lease exists at now that token does not
// own. The holder's worker id plays no part: two drives in one process
// exclude each other as well.
func (r *Run) LeaseHeld(token string, now time.Time) bool {
	if r.LeaseHolder == "" {
		return false
	}
	if token != "" && token == r.LeaseToken {
		return false
	}
	return r.LeaseExpiresAt == nil || now.Before(*r.LeaseExpiresAt)
}

// Clone returns a deep copy of the run.
func (r *Run) Clone() *Run {
	data, err := json.Marshal(r)
	if err != nil {
		panic(fmt.Sprintf("model: marshal run %s: %v", r.RunID, err))
	}
	var out Run
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("model: unmarshal run %s: %v", r.RunID, err))
	}
	return &out
}

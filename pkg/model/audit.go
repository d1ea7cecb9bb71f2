package model

import (
	"encoding/json"
	"time"
)

// AuditAction names the kind of event recorded in the ledger.
type AuditAction string

const (
	AuditRunCreated     AuditAction = "run_created"
	AuditTransition     AuditAction = "transition"
	AuditStageCompleted AuditAction = "stage_completed"
	AuditHITLEnqueued   AuditAction = "hitl_enqueued"
	AuditHITLDecision   AuditAction = "hitl_decision"
	AuditExport         AuditAction = "export"
)

// AuditEntry is an append-only ledger record. Sequence is dense per run,
// starting at 1; Hash chains each entry to its predecessor.
type AuditEntry struct {
	EntryID   string          `json:"entry_id"`
	RunID     string          `json:"run_id"`
	Sequence  int64           `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
	Action    AuditAction     `json:"action"`
	Actor     string          `json:"actor"`
	Details   json.RawMessage `json:"details"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

// TransitionDetails is the payload of AuditTransition entries.
type TransitionDetails struct {
	From    RunStatus `json:"from"`
	To      RunStatus `json:"to"`
	Stage   StageName `json:"stage,omitempty"`
	HITLID  string    `json:"hitl_id,omitempty"`
	Failure *Failure  `json:"failure,omitempty"`
}

// StageCompletedDetails is the payload of AuditStageCompleted entries. It
// carries the full output so the history can be replayed from the ledger.
type StageCompletedDetails struct {
	Stage      StageName    `json:"stage"`
	DurationMS int64        `json:"duration_ms"`
	Output     *StageOutput `json:"output"`
}

// HITLEnqueuedDetails is the payload of AuditHITLEnqueued entries.
type HITLEnqueuedDetails struct {
	HITLID string     `json:"hitl_id"`
	Stage  StageName  `json:"stage"`
	Items  []HITLItem `json:"items"`
}

// HITLDecisionDetails is the payload of AuditHITLDecision entries.
type HITLDecisionDetails struct {
	HITLID   string   `json:"hitl_id"`
	Item     HITLItem `json:"item"`
	Decision Decision `json:"decision"`
}

// RunCreatedDetails is the payload of AuditRunCreated entries.
type RunCreatedDetails struct {
	DocumentID      string `json:"document_id"`
	PolicySetID     string `json:"policy_set_id"`
	PolicyVersion   string `json:"policy_version,omitempty"`
	PolicyHash      string `json:"policy_hash,omitempty"`
	ExternalSharing bool   `json:"external_sharing"`
}

// ExportDetails is the payload of AuditExport entries.
type ExportDetails struct {
	Kind        string `json:"kind"`
	ContentHash string `json:"content_hash"`
	Bytes       int    `json:"bytes"`
}

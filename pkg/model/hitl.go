package model

import (
	"fmt"
	"time"
)

// HITLStatus is the state of a single human-decision item.
type HITLStatus string

const (
	HITLPending  HITLStatus = "pending"
	HITLApproved HITLStatus = "approved"
	HITLRejected HITLStatus = "rejected"
	HITLModified HITLStatus = "modified"
)

// HITL item types.
const (
	ItemPIIEntity         = "pii_entity"
	ItemSensitivityReview = "sensitivity_review"
	ItemFinancialAmount   = "financial_amount"
	ItemForbiddenContent  = "forbidden_content"
	ItemPolicyViolation   = "policy_violation"
	ItemClauseRisk        = "clause_risk"
	ItemFinalSignoff      = "final_signoff"
)

// ItemPayload is the context a reviewer needs to decide on an item.
// ClauseID is empty for document-level items.
type ItemPayload struct {
	ClauseID    string    `json:"clause_id,omitempty"`
	EntityID    string    `json:"entity_id,omitempty"`
	EntityType  string    `json:"entity_type,omitempty"`
	RiskLevel   RiskLevel `json:"risk_level,omitempty"`
	Confidence  float64   `json:"confidence,omitempty"`
	Amount      float64   `json:"amount,omitempty"`
	Threshold   float64   `json:"threshold,omitempty"`
	ViolationID string    `json:"violation_id,omitempty"`
	Description string    `json:"description"`
}

// HITLItem is one pending or decided human decision.
type HITLItem struct {
	ItemID       string      `json:"item_id"`
	HITLID       string      `json:"hitl_id"`
	RunID        string      `json:"run_id"`
	Stage        StageName   `json:"stage_that_raised_it"`
	ItemType     string      `json:"item_type"`
	Payload      ItemPayload `json:"payload"`
	Status       HITLStatus  `json:"status"`
	DecidedBy    string      `json:"decided_by,omitempty"`
	DecidedAt    *time.Time  `json:"decided_at,omitempty"`
	Rationale    string      `json:"rationale,omitempty"`
	Modification string      `json:"modification,omitempty"`
}

// Ref is the rationale reference used in redlines and audit details.
func (i HITLItem) Ref() string {
	return fmt.Sprintf("hitl:%s/%s", i.HITLID, i.ItemID)
}

// HITLBatch groups the items raised at one interrupt point. HITLID is the
// identifier returned by enqueue.
type HITLBatch struct {
	HITLID     string     `json:"hitl_id"`
	RunID      string     `json:"run_id"`
	Stage      StageName  `json:"stage"`
	Items      []HITLItem `json:"items"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Version    int64      `json:"version"`
}

// AllPending reports whether every item in the batch is still pending.
func (b *HITLBatch) AllPending() bool {
	for _, it := range b.Items {
		if it.Status != HITLPending {
			return false
		}
	}
	return len(b.Items) > 0
}

// AnyPending reports whether at least one item is still pending.
func (b *HITLBatch) AnyPending() bool {
	for _, it := range b.Items {
		if it.Status == HITLPending {
			return true
		}
	}
	return false
}

// DecisionAction is the verdict a human gives on an item.
type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
	ActionModify  DecisionAction = "modify"
)

// Status maps the action onto the resulting item status.
func (a DecisionAction) Status() (HITLStatus, bool) {
	switch a {
	case ActionApprove:
		return HITLApproved, true
	case ActionReject:
		return HITLRejected, true
	case ActionModify:
		return HITLModified, true
	}
	return "", false
}

// Decision is a human verdict on one item of a batch.
type Decision struct {
	ItemID       string         `json:"item_id"`
	Action       DecisionAction `json:"action"`
	Rationale    string         `json:"rationale"`
	DecidedBy    string         `json:"decided_by"`
	Modification string         `json:"modification,omitempty"`
}

// Validate checks the decision at the boundary; invalid decisions are never
// persisted.
func (d Decision) Validate() error {
	if d.ItemID == "" {
		return NewValidationError("item_id", "item id is required")
	}
	if _, ok := d.Action.Status(); !ok {
		return NewValidationError("action", fmt.Sprintf("unknown action %q", d.Action))
	}
	if d.Rationale == "" {
		return NewValidationError("rationale", fmt.Sprintf("rationale is required for item %s", d.ItemID))
	}
	if d.Action == ActionModify && d.Modification == "" {
		return NewValidationError("modification", fmt.Sprintf("modify decision for item %s has no modification", d.ItemID))
	}
	return nil
}

// Edit is a human-supplied replacement together with its audit reference.
type Edit struct {
	Text string
	Ref  string
}

// DecisionContext summarizes resolved human decisions for later stages.
type DecisionContext struct {
	// RejectedClauses maps clause id to the reference of the rejecting item.
	RejectedClauses map[string]string
	// ClauseEdits maps clause id to a replacement clause body.
	ClauseEdits map[string]Edit
	// EntityEdits maps entity id to a replacement value.
	EntityEdits map[string]Edit
	// RejectedDocument holds the reference of a rejected document-level
	// item, if any.
	RejectedDocument string
}

// NewDecisionContext folds decided batches into a DecisionContext. Later
// batches take precedence over earlier ones.
func NewDecisionContext(batches []*HITLBatch) *DecisionContext {
	dc := &DecisionContext{
		RejectedClauses: make(map[string]string),
		ClauseEdits:     make(map[string]Edit),
		EntityEdits:     make(map[string]Edit),
	}
	for _, b := range batches {
		for _, it := range b.Items {
			switch it.Status {
			case HITLRejected:
				if it.Payload.ClauseID == "" {
					dc.RejectedDocument = it.Ref()
					continue
				}
				dc.RejectedClauses[it.Payload.ClauseID] = it.Ref()
			case HITLModified:
				switch {
				case it.Payload.EntityID != "":
					dc.EntityEdits[it.Payload.EntityID] = Edit{Text: it.Modification, Ref: it.Ref()}
				case it.Payload.ClauseID != "":
					dc.ClauseEdits[it.Payload.ClauseID] = Edit{Text: it.Modification, Ref: it.Ref()}
				}
			}
		}
	}
	return dc
}

// ClauseRejected reports whether a human dropped the clause.
func (dc *DecisionContext) ClauseRejected(clauseID string) bool {
	if dc == nil {
		return false
	}
	_, ok := dc.RejectedClauses[clauseID]
	return ok
}

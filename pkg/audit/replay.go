package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"mercator-hq/docguard/pkg/model"
)

// StatusChange is one transition in a replayed history.
type StatusChange struct {
	Sequence int64
	At       time.Time
	model.TransitionDetails
}

// History is a run reconstructed from its audit entries.
type History struct {
	RunID        string
	DocumentID   string
	PolicySetID  string
	Status       model.RunStatus
	StageOutputs map[model.StageName]*model.StageOutput
	Transitions  []StatusChange
	Enqueued     []model.HITLEnqueuedDetails
	Decisions    []model.HITLDecisionDetails
	Exports      []model.ExportDetails
}

// Replay rebuilds a run's history from its entries in sequence order. The
// entries are verified first.
func Replay(entries []*model.AuditEntry) (*History, error) {
	if err := Verify(entries); err != nil {
		return nil, err
	}

	h := &History{StageOutputs: make(map[model.StageName]*model.StageOutput)}
	for _, e := range entries {
		h.RunID = e.RunID
		switch e.Action {
		case model.AuditRunCreated:
			var d model.RunCreatedDetails
			if err := decode(e, &d); err != nil {
				return nil, err
			}
			h.DocumentID = d.DocumentID
			h.PolicySetID = d.PolicySetID
			h.Status = model.StatusPending

		case model.AuditTransition:
			var d model.TransitionDetails
			if err := decode(e, &d); err != nil {
				return nil, err
			}
			h.Transitions = append(h.Transitions, StatusChange{Sequence: e.Sequence, At: e.Timestamp, TransitionDetails: d})
			h.Status = d.To

		case model.AuditStageCompleted:
			var d model.StageCompletedDetails
			if err := decode(e, &d); err != nil {
				return nil, err
			}
			if _, dup := h.StageOutputs[d.Stage]; dup {
				return nil, &IntegrityError{RunID: e.RunID, Sequence: e.Sequence, Reason: fmt.Sprintf("stage %s completed twice", d.Stage)}
			}
			h.StageOutputs[d.Stage] = d.Output

		case model.AuditHITLEnqueued:
			var d model.HITLEnqueuedDetails
			if err := decode(e, &d); err != nil {
				return nil, err
			}
			h.Enqueued = append(h.Enqueued, d)

		case model.AuditHITLDecision:
			var d model.HITLDecisionDetails
			if err := decode(e, &d); err != nil {
				return nil, err
			}
			h.Decisions = append(h.Decisions, d)

		case model.AuditExport:
			var d model.ExportDetails
			if err := decode(e, &d); err != nil {
				return nil, err
			}
			h.Exports = append(h.Exports, d)
		}
	}
	return h, nil
}

func decode(e *model.AuditEntry, v any) error {
	if err := json.Unmarshal(e.Details, v); err != nil {
		return &IntegrityError{RunID: e.RunID, Sequence: e.Sequence, Reason: fmt.Sprintf("undecodable %s details: %v", e.Action, err)}
	}
	return nil
}

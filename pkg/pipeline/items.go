package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"mercator-hq/docguard/pkg/detect"
	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/policy"
	"mercator-hq/docguard/pkg/stages/extractor"
)

// hitlNamespace seeds deterministic batch ids so that re-enqueueing the same
// interrupt after a crash finds the existing batch.
var hitlNamespace = uuid.MustParse("0b7c52e4-3f7e-4c55-8c1d-59e2a4d1a6f3")

// HITLID returns the batch id for the interrupt raised by stage in run.
func HITLID(runID string, stage model.StageName) string {
	return uuid.NewSHA1(hitlNamespace, []byte(runID+"/"+string(stage))).String()
}

// newBatch builds the HITL batch for a stage output that requires a human.
// The batch always holds at least one item.
func newBatch(run *model.Run, out *model.StageOutput, set *policy.PolicySet, now time.Time) *model.HITLBatch {
	b := &itemBuilder{
		batch: &model.HITLBatch{
			HITLID:    HITLID(run.RunID, out.Stage),
			RunID:     run.RunID,
			Stage:     out.Stage,
			Items:     []model.HITLItem{},
			CreatedAt: now,
		},
		covered: make(map[string]bool),
	}

	switch out.Stage {
	case model.StageExtract:
		b.extraction(run, out.Extraction, set)
	case model.StageReview:
		b.review(out.Review)
	case model.StageDraft:
		b.add(model.ItemFinalSignoff, model.ItemPayload{
			RiskLevel:   draftRisk(run),
			Description: "final sign-off before the document is released",
		})
	}
	return b.batch
}

type itemBuilder struct {
	batch   *model.HITLBatch
	covered map[string]bool
}

func (b *itemBuilder) add(itemType string, payload model.ItemPayload) {
	b.batch.Items = append(b.batch.Items, model.HITLItem{
		ItemID:   fmt.Sprintf("i%03d", len(b.batch.Items)+1),
		HITLID:   b.batch.HITLID,
		RunID:    b.batch.RunID,
		Stage:    b.batch.Stage,
		ItemType: itemType,
		Payload:  payload,
		Status:   model.HITLPending,
	})
	if payload.ClauseID != "" {
		b.covered[payload.ClauseID] = true
	}
}

func (b *itemBuilder) extraction(run *model.Run, ext *model.ExtractionResult, set *policy.PolicySet) {
	for _, ent := range ext.PIIEntities {
		if ent.RiskLevel != model.RiskHigh || ent.Confidence < extractor.HITLConfidence {
			continue
		}
		b.add(model.ItemPIIEntity, model.ItemPayload{
			ClauseID:    ent.ClauseID,
			EntityID:    ent.EntityID,
			EntityType:  ent.Type,
			RiskLevel:   ent.RiskLevel,
			Confidence:  ent.Confidence,
			Description: fmt.Sprintf("%s %s detected: %s", ent.RiskLevel, ent.Type, detect.Mask(ent.RawValue, 0, 4)),
		})
	}

	if cls := run.Output(model.StageClassify); cls != nil && cls.Classification != nil {
		level := cls.Classification.SensitivityLevel
		if set.AlwaysHITL(level) || len(b.batch.Items) == 0 {
			b.add(model.ItemSensitivityReview, model.ItemPayload{
				RiskLevel:   level,
				Confidence:  cls.Classification.Confidence,
				Description: fmt.Sprintf("%s document classified as %s sensitivity", cls.Classification.DocType, level),
			})
		}
	}
}

func (b *itemBuilder) review(rev *model.ReviewResult) {
	for _, hr := range rev.HighRiskItems {
		b.add(hr.ItemType, model.ItemPayload{
			ClauseID:    hr.ClauseID,
			RiskLevel:   model.RiskHigh,
			Amount:      hr.Amount,
			Threshold:   hr.Threshold,
			Description: hr.Description,
		})
	}

	// Threshold and forbidden-advice violations are already raised above as
	// high-risk items.
	for _, v := range rev.PolicyViolations {
		if v.Severity != model.RiskHigh {
			continue
		}
		if v.Type == model.ViolationFinancialThreshold || v.Type == model.ViolationForbiddenAdvice {
			continue
		}
		b.add(model.ItemPolicyViolation, model.ItemPayload{
			ClauseID:    v.ClauseID,
			ViolationID: v.ViolationID,
			RiskLevel:   v.Severity,
			Description: v.Description,
		})
	}

	for _, ca := range rev.ClauseAssessments {
		if ca.RiskLevel != model.RiskHigh || b.covered[ca.ClauseID] {
			continue
		}
		b.add(model.ItemClauseRisk, model.ItemPayload{
			ClauseID:    ca.ClauseID,
			RiskLevel:   ca.RiskLevel,
			Description: clauseRiskDescription(ca),
		})
	}

	if len(b.batch.Items) == 0 {
		b.add(model.ItemClauseRisk, model.ItemPayload{
			RiskLevel:   rev.OverallRisk,
			Description: fmt.Sprintf("overall document risk is %s", rev.OverallRisk),
		})
	}
}

func clauseRiskDescription(ca model.ClauseAssessment) string {
	if len(ca.Reasons) == 0 {
		return fmt.Sprintf("clause %s assessed as %s risk", ca.ClauseID, ca.RiskLevel)
	}
	return fmt.Sprintf("clause %s assessed as %s risk: %s", ca.ClauseID, ca.RiskLevel, ca.Reasons[0])
}

func draftRisk(run *model.Run) model.RiskLevel {
	if rev := run.Output(model.StageReview); rev != nil && rev.Review != nil {
		return rev.Review.OverallRisk
	}
	return model.RiskLow
}

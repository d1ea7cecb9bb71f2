// Package reviewer evaluates extracted clauses and entities against a policy
// set, producing per-clause assessments, policy violations, hard high-risk
// items and the overall risk of the document.
//
// Every check runs on every clause; nothing short-circuits, so the violation
// list is always complete. Overall risk is the worst severity found.
package reviewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mercator-hq/docguard/pkg/detect"
	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/policy"
)

// ErrMissingThreshold is returned when the policy set has no financial
// threshold.
var ErrMissingThreshold = errors.New("policy set has no financial threshold")

// Input is everything the reviewer reads.
type Input struct {
	Document       *model.Document
	Classification *model.Classification
	Extraction     *model.ExtractionResult
	Policy         *policy.PolicySet
	Decisions      *model.DecisionContext
}

// Reviewer produces a ReviewResult.
type Reviewer struct {
	logger *slog.Logger
}

// New creates a reviewer.
func New(logger *slog.Logger) *Reviewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reviewer{logger: logger.With("component", "reviewer")}
}

type review struct {
	in        *Input
	threshold float64
	result    *model.ReviewResult
}

// Review assesses every clause not rejected by a human. Clauses a human
// replaced are assessed using the replacement text.
func (r *Reviewer) Review(ctx context.Context, in *Input) (*model.ReviewResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	threshold, ok := in.Policy.Threshold()
	if !ok {
		return nil, fmt.Errorf("policy set %q: %w", in.Policy.ID, ErrMissingThreshold)
	}

	rv := &review{
		in:        in,
		threshold: threshold,
		result: &model.ReviewResult{
			ClauseAssessments: []model.ClauseAssessment{},
			PolicyViolations:  []model.PolicyViolation{},
			HighRiskItems:     []model.HighRiskItem{},
			Recommendations:   []string{},
		},
	}

	for _, c := range in.Extraction.Clauses {
		if in.Decisions.ClauseRejected(c.ClauseID) {
			continue
		}
		rv.assessClause(c)
	}
	if len(in.Extraction.Clauses) > 0 {
		rv.checkDisclaimers()
	}
	rv.annotateEntities()
	rv.finish()

	r.logger.DebugContext(ctx, "review complete",
		"document_id", in.Document.ID,
		"overall_risk", rv.result.OverallRisk,
		"violations", len(rv.result.PolicyViolations),
		"high_risk_items", len(rv.result.HighRiskItems),
	)
	return rv.result, nil
}

func (rv *review) clauseText(c model.Clause) string {
	if rv.in.Decisions == nil {
		return c.Text
	}
	if edit, ok := rv.in.Decisions.ClauseEdits[c.ClauseID]; ok {
		return edit.Text
	}
	return c.Text
}

func (rv *review) assessClause(c model.Clause) {
	text := rv.clauseText(c)
	lower := strings.ToLower(text)
	a := model.ClauseAssessment{ClauseID: c.ClauseID, RiskLevel: model.RiskLow, Reasons: []string{}}

	for _, ent := range rv.in.Extraction.EntitiesIn(c.ClauseID) {
		if ent.RiskLevel == model.RiskLow {
			continue
		}
		a.RiskLevel = model.MaxRisk(a.RiskLevel, ent.RiskLevel)
		a.Reasons = append(a.Reasons, fmt.Sprintf("pii:%s (%s)", ent.Type, ent.RiskLevel))
	}

	for _, rule := range rv.in.Policy.ForbiddenContent {
		phrase, found := firstPhrase(lower, rule.Phrases)
		if !found {
			continue
		}
		rv.addViolation(model.ViolationForbiddenAdvice, rule.Severity, c.ClauseID,
			fmt.Sprintf("clause %s contains %s language %q", c.ClauseID, rule.Category, phrase), rule.ID)
		a.RiskLevel = model.MaxRisk(a.RiskLevel, rule.Severity)
		a.Reasons = append(a.Reasons, "forbidden:"+rule.Category)
		if rule.Severity == model.RiskHigh {
			rv.result.HighRiskItems = append(rv.result.HighRiskItems, model.HighRiskItem{
				ItemType:    model.HighRiskForbiddenContent,
				ClauseID:    c.ClauseID,
				Description: fmt.Sprintf("%s language %q", rule.Category, phrase),
			})
		}
	}

	for _, rule := range rv.in.Policy.SharingRules {
		phrase, found := firstPhrase(lower, rule.Phrases)
		if !found {
			continue
		}
		rv.addViolation(model.ViolationUnauthorizedSharing, rule.Severity, c.ClauseID,
			fmt.Sprintf("clause %s permits %s sharing: %q", c.ClauseID, rule.Category, phrase), rule.ID)
		a.RiskLevel = model.MaxRisk(a.RiskLevel, rule.Severity)
		a.Reasons = append(a.Reasons, "sharing:"+rule.Category)
	}

	for _, amt := range detect.FindAmounts(text) {
		a.Amounts = append(a.Amounts, amt.Value)
		if amt.Value <= rv.threshold {
			continue
		}
		rv.result.HighRiskItems = append(rv.result.HighRiskItems, model.HighRiskItem{
			ItemType:    model.HighRiskFinancialAmount,
			ClauseID:    c.ClauseID,
			Amount:      amt.Value,
			Threshold:   rv.threshold,
			Description: fmt.Sprintf("amount %s exceeds threshold %.2f %s", amt.Text, rv.threshold, rv.in.Policy.Currency),
		})
		rv.addViolation(model.ViolationFinancialThreshold, model.RiskHigh, c.ClauseID,
			fmt.Sprintf("clause %s commits %s, above the %.2f threshold", c.ClauseID, amt.Text, rv.threshold), "financial_threshold")
		a.RiskLevel = model.RiskHigh
		a.Reasons = append(a.Reasons, "financial_threshold")
	}

	rv.result.ClauseAssessments = append(rv.result.ClauseAssessments, a)
}

func (rv *review) checkDisclaimers() {
	docType := ""
	if rv.in.Classification != nil {
		docType = rv.in.Classification.DocType
	}
	lower := strings.ToLower(rv.keptText())

	for _, d := range rv.in.Policy.RequiredDisclaimers {
		if !d.Applies(docType) {
			continue
		}
		if _, found := firstPhrase(lower, append([]string{d.Text}, d.Match...)); found {
			continue
		}
		rv.addViolation(model.ViolationMissingDisclaimer, d.Severity, "",
			fmt.Sprintf("required disclaimer %s is missing", d.ID), d.ID)
	}
}

// keptText joins the text of the clauses that will reach the draft, with
// human edits applied.
func (rv *review) keptText() string {
	var b strings.Builder
	for _, c := range rv.in.Extraction.Clauses {
		if rv.in.Decisions.ClauseRejected(c.ClauseID) {
			continue
		}
		b.WriteString(rv.clauseText(c))
		b.WriteByte('\n')
	}
	return b.String()
}

// annotateEntities raises medium entities to high in high-sensitivity
// documents. Extracted entities keep their original risk.
func (rv *review) annotateEntities() {
	if rv.in.Classification == nil || rv.in.Classification.SensitivityLevel != model.RiskHigh {
		return
	}
	for _, ent := range rv.in.Extraction.PIIEntities {
		if ent.RiskLevel != model.RiskMedium || rv.in.Decisions.ClauseRejected(ent.ClauseID) {
			continue
		}
		rv.result.EntityAnnotations = append(rv.result.EntityAnnotations, model.RiskAnnotation{
			EntityID:     ent.EntityID,
			OriginalRisk: ent.RiskLevel,
			AdjustedRisk: model.RiskHigh,
			Reason:       "high-sensitivity document",
		})
	}
}

func (rv *review) finish() {
	res := rv.result
	levels := make([]model.RiskLevel, 0, len(res.ClauseAssessments)+len(res.PolicyViolations))
	highViolation := false
	for _, a := range res.ClauseAssessments {
		levels = append(levels, a.RiskLevel)
	}
	for _, v := range res.PolicyViolations {
		levels = append(levels, v.Severity)
		if v.Severity == model.RiskHigh {
			highViolation = true
		}
	}
	res.OverallRisk = model.MaxRisk(levels...)
	res.RequiresHITL = res.OverallRisk == model.RiskHigh || len(res.HighRiskItems) > 0 || highViolation
	res.Recommendations = recommendations(res)
}

func (rv *review) addViolation(typ string, severity model.RiskLevel, clauseID, description, ruleID string) {
	rv.result.PolicyViolations = append(rv.result.PolicyViolations, model.PolicyViolation{
		ViolationID: fmt.Sprintf("v%03d", len(rv.result.PolicyViolations)+1),
		Type:        typ,
		Severity:    severity,
		ClauseID:    clauseID,
		Description: description,
		PolicyRef:   rv.in.Policy.Ref(ruleID),
	})
}

func recommendations(res *model.ReviewResult) []string {
	out := []string{}
	for _, item := range res.HighRiskItems {
		switch item.ItemType {
		case model.HighRiskFinancialAmount:
			out = append(out, fmt.Sprintf("Obtain approval for the amount in clause %s before release.", item.ClauseID))
		case model.HighRiskForbiddenContent:
			out = append(out, fmt.Sprintf("Remove or rephrase %s in clause %s.", item.Description, item.ClauseID))
		}
	}
	for _, v := range res.PolicyViolations {
		switch v.Type {
		case model.ViolationMissingDisclaimer:
			out = append(out, fmt.Sprintf("Insert the disclaimer required by %s.", v.PolicyRef))
		case model.ViolationUnauthorizedSharing:
			out = append(out, fmt.Sprintf("Restrict third-party sharing language in clause %s.", v.ClauseID))
		}
	}
	if len(res.EntityAnnotations) > 0 {
		out = append(out, fmt.Sprintf("Review %d personal data entities in a high-sensitivity document.", len(res.EntityAnnotations)))
	}
	if len(out) == 0 {
		out = append(out, "No policy issues found.")
	}
	return out
}

func firstPhrase(lower string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}

package model

import "time"

// Document is the immutable input of a run. It is owned by the document
// provider; the pipeline only reads it.
type Document struct {
	ID         string    `json:"id"`
	RawContent string    `json:"raw_content"`
	Format     string    `json:"format"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Clause is a structural section of a document. Start and End are byte
// offsets into the document content; Text is exactly content[Start:End].
type Clause struct {
	ClauseID   string `json:"clause_id"`
	Heading    string `json:"heading"`
	Text       string `json:"text"`
	OrderIndex int    `json:"order_index"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// PIIEntity is a sensitive value found by the pattern registry.
type PIIEntity struct {
	EntityID       string        `json:"entity_id"`
	Type           string        `json:"type"`
	RawValue       string        `json:"raw_value"`
	ContextSnippet string        `json:"context_snippet"`
	Confidence     float64       `json:"confidence"`
	RiskLevel      RiskLevel     `json:"risk_level"`
	RedactionMode  RedactionMode `json:"redaction_mode"`
	ClauseID       string        `json:"clause_id,omitempty"`
	Start          int           `json:"start"`
	End            int           `json:"end"`
}

// KeyTerm is a notable term pulled out of a clause (amounts, dates,
// durations, defined terms).
type KeyTerm struct {
	Term     string `json:"term"`
	Category string `json:"category"`
	ClauseID string `json:"clause_id,omitempty"`
}

// Classification is the classifier stage output.
type Classification struct {
	DocType          string    `json:"doc_type"`
	SensitivityLevel RiskLevel `json:"sensitivity_level"`
	RiskFactors      []string  `json:"risk_factors"`
	Confidence       float64   `json:"confidence"`
}

// ExtractionResult is the extractor stage output.
type ExtractionResult struct {
	Clauses      []Clause    `json:"clauses"`
	PIIEntities  []PIIEntity `json:"pii_entities"`
	KeyTerms     []KeyTerm   `json:"key_terms"`
	RequiresHITL bool        `json:"requires_hitl"`
}

// Clause returns the clause with the given id.
func (e *ExtractionResult) Clause(id string) (Clause, bool) {
	for _, c := range e.Clauses {
		if c.ClauseID == id {
			return c, true
		}
	}
	return Clause{}, false
}

// EntitiesIn returns the entities mapped to the given clause, in document order.
func (e *ExtractionResult) EntitiesIn(clauseID string) []PIIEntity {
	var out []PIIEntity
	for _, ent := range e.PIIEntities {
		if ent.ClauseID == clauseID {
			out = append(out, ent)
		}
	}
	return out
}

// Violation types produced by the reviewer.
const (
	ViolationForbiddenAdvice     = "forbidden_advice"
	ViolationMissingDisclaimer   = "missing_disclaimer"
	ViolationUnauthorizedSharing = "unauthorized_sharing"
	ViolationFinancialThreshold  = "financial_threshold"
)

// PolicyViolation is a rule breach found by the reviewer. ClauseID is empty
// for document-level violations such as a missing disclaimer.
type PolicyViolation struct {
	ViolationID string    `json:"violation_id"`
	Type        string    `json:"type"`
	Severity    RiskLevel `json:"severity"`
	ClauseID    string    `json:"clause_id,omitempty"`
	Description string    `json:"description"`
	PolicyRef   string    `json:"policy_ref"`
}

// ClauseAssessment is the reviewer's verdict for one clause.
type ClauseAssessment struct {
	ClauseID  string    `json:"clause_id"`
	RiskLevel RiskLevel `json:"risk_level"`
	Reasons   []string  `json:"reasons"`
	Amounts   []float64 `json:"amounts,omitempty"`
}

// High-risk item types.
const (
	HighRiskFinancialAmount  = "financial_amount"
	HighRiskForbiddenContent = "forbidden_content"
)

// HighRiskItem is a hard HITL trigger raised by the reviewer.
type HighRiskItem struct {
	ItemType    string  `json:"item_type"`
	ClauseID    string  `json:"clause_id"`
	Amount      float64 `json:"amount,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
	Description string  `json:"description"`
}

// RiskAnnotation adjusts the risk of an extracted entity without changing
// the entity itself.
type RiskAnnotation struct {
	EntityID     string    `json:"entity_id"`
	OriginalRisk RiskLevel `json:"original_risk"`
	AdjustedRisk RiskLevel `json:"adjusted_risk"`
	Reason       string    `json:"reason"`
}

// ReviewResult is the reviewer stage output.
type ReviewResult struct {
	OverallRisk       RiskLevel          `json:"overall_risk"`
	ClauseAssessments []ClauseAssessment `json:"clause_assessments"`
	PolicyViolations  []PolicyViolation  `json:"policy_violations"`
	HighRiskItems     []HighRiskItem     `json:"high_risk_items"`
	EntityAnnotations []RiskAnnotation   `json:"entity_annotations,omitempty"`
	RequiresHITL      bool               `json:"requires_hitl"`
	Recommendations   []string           `json:"recommendations"`
}

// Change kinds recorded by the drafter.
const (
	ChangeRedaction = "redaction"
	ChangeRemoval   = "removal"
	ChangeEdit      = "edit"
	ChangeInsertion = "insertion"
)

// Change is one tracked edit in the redline.
type Change struct {
	ChangeID  string `json:"change_id"`
	Kind      string `json:"kind"`
	ClauseID  string `json:"clause_id,omitempty"`
	Before    string `json:"before"`
	After     string `json:"after"`
	Rationale string `json:"rationale"`
}

// DraftResult is the drafter stage output.
type DraftResult struct {
	FinalDocument     string   `json:"final_document"`
	RedlineDocument   string   `json:"redline_document"`
	RedactionsCount   int      `json:"redactions_count"`
	EditsCount        int      `json:"edits_count"`
	DisclaimersAdded  []string `json:"disclaimers_added"`
	ProposedChanges   []Change `json:"proposed_changes"`
	RequiresFinalHITL bool     `json:"requires_final_hitl"`
}

// StageOutput holds the result of exactly one stage. Only the field matching
// Stage is set.
type StageOutput struct {
	Stage          StageName         `json:"stage"`
	CompletedAt    time.Time         `json:"completed_at"`
	Classification *Classification   `json:"classification,omitempty"`
	Extraction     *ExtractionResult `json:"extraction,omitempty"`
	Review         *ReviewResult     `json:"review,omitempty"`
	Draft          *DraftResult      `json:"draft,omitempty"`
}

// RequiresHITL reports whether the stage output demands a human decision
// before the pipeline may continue.
func (o *StageOutput) RequiresHITL() bool {
	switch o.Stage {
	case StageExtract:
		return o.Extraction != nil && o.Extraction.RequiresHITL
	case StageReview:
		return o.Review != nil && o.Review.RequiresHITL
	case StageDraft:
		return o.Draft != nil && o.Draft.RequiresFinalHITL
	}
	return false
}

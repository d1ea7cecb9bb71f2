package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"mercator-hq/docguard/pkg/detect"
	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/policy"
)

// HITLConfidence is the minimum confidence at which a high-risk entity
// requires human review.
const HITLConfidence = 0.7

// entityNamespace seeds deterministic entity ids.
var entityNamespace = uuid.MustParse("6f1d3c1e-8a4b-4f0e-9a57-2d0c4f7b9e11")

// Extractor produces an ExtractionResult for a document.
type Extractor struct {
	registry *detect.Registry
	logger   *slog.Logger
}

// New creates an extractor over registry. A nil registry uses the default
// rule table.
func New(registry *detect.Registry, logger *slog.Logger) *Extractor {
	if registry == nil {
		registry = detect.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{registry: registry, logger: logger.With("component", "extractor")}
}

// Extract splits the document into clauses and detects entities. Empty or
// whitespace-only content is a valid document with nothing in it. Content
// that is not valid UTF-8 is an InputError.
func (e *Extractor) Extract(ctx context.Context, doc *model.Document, cls *model.Classification, set *policy.PolicySet) (*model.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.ValidString(doc.RawContent) {
		return nil, model.NewInputError(doc.ID, "content is not valid UTF-8", nil)
	}

	result := &model.ExtractionResult{
		Clauses:     []model.Clause{},
		PIIEntities: []model.PIIEntity{},
		KeyTerms:    []model.KeyTerm{},
	}
	if strings.TrimSpace(doc.RawContent) == "" {
		return result, nil
	}

	registry, err := e.registry.WithFloor(set.Floor())
	if err != nil {
		return nil, err
	}

	clauses := SplitClauses(doc.RawContent)
	result.Clauses = clauses

	for _, ent := range registry.Detect(doc.RawContent) {
		ent.EntityID = EntityID(doc.ID, ent.Type, ent.Start)
		ent.ClauseID = clauseAt(clauses, ent.Start)
		ent.RedactionMode = set.ModeFor(ent.Type)
		result.PIIEntities = append(result.PIIEntities, ent)
	}

	if terms := keyTerms(clauses); terms != nil {
		result.KeyTerms = terms
	}

	result.RequiresHITL = requiresHITL(result.PIIEntities, cls, set)

	e.logger.DebugContext(ctx, "extraction complete",
		"document_id", doc.ID,
		"clauses", len(result.Clauses),
		"entities", len(result.PIIEntities),
		"requires_hitl", result.RequiresHITL,
	)
	return result, nil
}

// EntityID derives a stable entity id from the document, type and offset.
func EntityID(documentID, entityType string, start int) string {
	return uuid.NewSHA1(entityNamespace, []byte(fmt.Sprintf("%s:%s:%d", documentID, entityType, start))).String()
}

func requiresHITL(entities []model.PIIEntity, cls *model.Classification, set *policy.PolicySet) bool {
	for _, ent := range entities {
		if ent.RiskLevel == model.RiskHigh && ent.Confidence >= HITLConfidence {
			return true
		}
	}
	return cls != nil && set.AlwaysHITL(cls.SensitivityLevel)
}

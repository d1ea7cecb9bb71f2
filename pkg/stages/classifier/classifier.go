// Package classifier infers a document's type and sensitivity tier from
// keyword and structure heuristics.
package classifier

import (
	"context"
	"math"
	"sort"
	"strings"

	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/policy"
)

// DocTypeUnknown is reported when no document type keyword matches.
const DocTypeUnknown = "unknown"

// Risk factor categories.
const (
	FactorFinancial       = "financial"
	FactorHealth          = "health"
	FactorPersonal        = "personal_identifiers"
	FactorConfidentiality = "confidentiality"
)

var docTypeKeywords = map[string][]string{
	"nda":                  {"non-disclosure", "nondisclosure", "confidentiality agreement", "confidential information", "disclosing party", "receiving party"},
	"service_agreement":    {"services agreement", "service agreement", "statement of work", "service provider", "deliverables", "service levels"},
	"employment_agreement": {"employment agreement", "employee", "employer", "salary", "termination of employment", "at-will"},
	"lease":                {"lease agreement", "landlord", "tenant", "premises", "rent"},
	"loan_agreement":       {"loan agreement", "borrower", "lender", "principal amount", "interest rate", "repayment"},
}

var factorKeywords = map[string][]string{
	FactorFinancial:       {"payment", "invoice", "bank", "account number", "credit card", "salary", "loan", "$", "usd", "fee"},
	FactorHealth:          {"medical", "health", "diagnosis", "patient", "hipaa", "prescription", "treatment"},
	FactorPersonal:        {"social security", "ssn", "date of birth", "passport", "driver's license", "home address"},
	FactorConfidentiality: {"confidential", "proprietary", "trade secret"},
}

// Classifier assigns a Classification to a document.
type Classifier struct{}

// New creates a classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify never fails: documents without recognizable keywords are
// classified as DocTypeUnknown with low sensitivity.
func (c *Classifier) Classify(_ context.Context, doc *model.Document, set *policy.PolicySet) *model.Classification {
	text := strings.ToLower(doc.RawContent)

	docType, conf := bestDocType(text, mergeKeywords(set))

	var factors []string
	for factor, kws := range factorKeywords {
		if countHits(text, kws) > 0 {
			factors = append(factors, factor)
		}
	}
	sort.Strings(factors)

	return &model.Classification{
		DocType:          docType,
		SensitivityLevel: sensitivity(factors),
		RiskFactors:      factors,
		Confidence:       conf,
	}
}

func mergeKeywords(set *policy.PolicySet) map[string][]string {
	merged := make(map[string][]string, len(docTypeKeywords))
	for k, v := range docTypeKeywords {
		merged[k] = v
	}
	if set == nil {
		return merged
	}
	for k, v := range set.DocTypeKeywords {
		lowered := make([]string, len(v))
		for i, kw := range v {
			lowered[i] = strings.ToLower(kw)
		}
		merged[k] = append(append([]string(nil), merged[k]...), lowered...)
	}
	return merged
}

// bestDocType picks the type with the most keyword hits. Ties go to the
// alphabetically first type. Confidence is the winner's share of all hits,
// discounted when there is little evidence.
func bestDocType(text string, keywords map[string][]string) (string, float64) {
	types := make([]string, 0, len(keywords))
	for t := range keywords {
		types = append(types, t)
	}
	sort.Strings(types)

	best, bestHits, total := DocTypeUnknown, 0, 0
	for _, t := range types {
		hits := countHits(text, keywords[t])
		total += hits
		if hits > bestHits {
			best, bestHits = t, hits
		}
	}
	if bestHits == 0 {
		return DocTypeUnknown, 0
	}

	share := float64(bestHits) / float64(total)
	evidence := math.Min(1, float64(bestHits)/3)
	return best, math.Round(share*evidence*100) / 100
}

func sensitivity(factors []string) model.RiskLevel {
	for _, f := range factors {
		if f == FactorHealth {
			return model.RiskHigh
		}
	}
	switch {
	case len(factors) >= 2:
		return model.RiskHigh
	case len(factors) == 1:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

func countHits(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

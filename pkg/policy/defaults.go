package policy

import "mercator-hq/docguard/pkg/model"

// DefaultSetID is the id of the built-in policy set.
const DefaultSetID = "default"

// DefaultFinancialThreshold is the built-in financial threshold.
const DefaultFinancialThreshold = 100000.0

// Default returns the built-in policy set.
func Default() *PolicySet {
	threshold := DefaultFinancialThreshold
	return &PolicySet{
		ID:                 DefaultSetID,
		Name:               "Default review policy",
		Version:            "1",
		FinancialThreshold: &threshold,
		Currency:           "USD",
		Redaction: RedactionPolicy{
			DefaultMode: model.ModeMask,
			ByType: map[string]model.RedactionMode{
				"ip_address": model.ModeGeneralize,
			},
		},
		RequiredDisclaimers: []Disclaimer{
			{
				ID:        "confidentiality-notice",
				Text:      "This document contains confidential information and may not be disclosed without written authorization.",
				Match:     []string{"confidential information"},
				AppliesTo: []string{"nda"},
				Severity:  model.RiskMedium,
			},
			{
				ID:        "no-legal-advice",
				Text:      "Nothing in this document constitutes legal, tax or investment advice.",
				Match:     []string{"does not constitute legal advice", "not legal advice", "constitutes legal, tax or investment advice"},
				AppliesTo: []string{"service_agreement", "loan_agreement"},
				Severity:  model.RiskMedium,
			},
		},
		ForbiddenContent: []PhraseRule{
			{
				ID:       "investment-advice",
				Category: "investment_advice",
				Phrases:  []string{"guaranteed return", "guaranteed returns", "you should invest", "risk-free investment"},
				Severity: model.RiskHigh,
			},
			{
				ID:       "tax-evasion",
				Category: "tax_advice",
				Phrases:  []string{"avoid paying taxes", "hide income from"},
				Severity: model.RiskHigh,
			},
			{
				ID:       "legal-advice",
				Category: "legal_advice",
				Phrases:  []string{"this constitutes legal advice", "you do not need a lawyer"},
				Severity: model.RiskMedium,
			},
		},
		SharingRules: []PhraseRule{
			{
				ID:       "third-party-sharing",
				Category: "third_party",
				Phrases:  []string{"may share personal", "may disclose personal", "sell personal data", "share with third parties", "share with any third party"},
				Severity: model.RiskMedium,
			},
		},
	}
}

package detect

import (
	"regexp"

	"mercator-hq/docguard/pkg/model"
)

// ContextRule adjusts a match's confidence from the text around it.
type ContextRule struct {
	// Window is the number of bytes inspected on each side of the match.
	Window int
	// Boost lists lowercase keywords that corroborate the match.
	Boost []string
	// BoostBy is added when any Boost keyword appears in the window.
	BoostBy float64
	// SuppressBy is subtracted when the match sits on a heading-like line.
	SuppressBy float64
}

// Rule is one declarative detection entry.
type Rule struct {
	EntityType     string
	Pattern        *regexp.Regexp
	Context        ContextRule
	DefaultRisk    model.RiskLevel
	BaseConfidence float64
	// Specificity breaks ties between overlapping matches of equal length.
	Specificity int
	// Token replaces the value in generalize mode.
	Token string
	// MaskKeepPrefix and MaskKeepSuffix count alphanumeric characters left
	// visible in mask mode.
	MaskKeepPrefix int
	MaskKeepSuffix int
}

// DefaultRules returns the built-in rule table.
func DefaultRules() []Rule {
	return []Rule{
		{
			EntityType: "ssn",
			Pattern:    regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			Context: ContextRule{
				Window:     40,
				Boost:      []string{"ssn", "social security", "taxpayer"},
				BoostBy:    0.2,
				SuppressBy: 0.4,
			},
			DefaultRisk:    model.RiskHigh,
			BaseConfidence: 0.75,
			Specificity:    90,
			Token:          "[SSN]",
			MaskKeepSuffix: 4,
		},
		{
			EntityType: "credit_card",
			Pattern:    regexp.MustCompile(`\b\d{4}[ -]?\d{4}[ -]?\d{4}[ -]?\d{4}\b`),
			Context: ContextRule{
				Window:     40,
				Boost:      []string{"card", "visa", "mastercard", "amex", "credit"},
				BoostBy:    0.2,
				SuppressBy: 0.4,
			},
			DefaultRisk:    model.RiskHigh,
			BaseConfidence: 0.7,
			Specificity:    80,
			Token:          "[CREDIT_CARD]",
			MaskKeepSuffix: 4,
		},
		{
			EntityType: "email",
			Pattern:    regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
			Context: ContextRule{
				Window:     40,
				Boost:      []string{"email", "e-mail", "contact", "notice"},
				BoostBy:    0.1,
				SuppressBy: 0.3,
			},
			DefaultRisk:    model.RiskMedium,
			BaseConfidence: 0.85,
			Specificity:    70,
			Token:          "[EMAIL]",
			MaskKeepPrefix: 1,
		},
		{
			EntityType: "phone",
			Pattern:    regexp.MustCompile(`(?:\+?1[-.\s]?)?(?:\(\d{3}\)|\b\d{3})[-.\s]?\d{3}[-.\s]\d{4}\b`),
			Context: ContextRule{
				Window:     40,
				Boost:      []string{"phone", "tel", "mobile", "call", "contact", "fax"},
				BoostBy:    0.25,
				SuppressBy: 0.3,
			},
			DefaultRisk:    model.RiskMedium,
			BaseConfidence: 0.6,
			Specificity:    60,
			Token:          "[PHONE]",
			MaskKeepSuffix: 4,
		},
		{
			EntityType: "bank_account",
			Pattern:    regexp.MustCompile(`\b\d{8,17}\b`),
			Context: ContextRule{
				Window:     40,
				Boost:      []string{"account", "iban", "routing", "bank"},
				BoostBy:    0.5,
				SuppressBy: 0.3,
			},
			DefaultRisk:    model.RiskHigh,
			BaseConfidence: 0.25,
			Specificity:    50,
			Token:          "[BANK_ACCOUNT]",
			MaskKeepSuffix: 4,
		},
		{
			EntityType: "ip_address",
			Pattern:    regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`),
			Context: ContextRule{
				Window:     40,
				Boost:      []string{"ip", "server", "host", "address"},
				BoostBy:    0.2,
				SuppressBy: 0.3,
			},
			DefaultRisk:    model.RiskLow,
			BaseConfidence: 0.6,
			Specificity:    40,
			Token:          "[IP_ADDRESS]",
		},
	}
}

package policy

import (
	"fmt"

	"mercator-hq/docguard/pkg/model"
)

// Validate checks the set and returns a *ValidationError listing every
// problem, or nil. A missing financial threshold is allowed here; the
// reviewer rejects it at run time.
func (p *PolicySet) Validate() error {
	var errs []*model.ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, model.NewValidationError(field, fmt.Sprintf(format, args...)))
	}

	if p.ID == "" {
		add("id", "policy set id is required")
	}
	if p.FinancialThreshold != nil && *p.FinancialThreshold < 0 {
		add("financial_threshold", "must not be negative, got %v", *p.FinancialThreshold)
	}
	if p.ConfidenceFloor != nil && (*p.ConfidenceFloor < 0 || *p.ConfidenceFloor > 1) {
		add("confidence_floor", "must be within [0,1], got %v", *p.ConfidenceFloor)
	}

	if p.Redaction.DefaultMode != "" && !p.Redaction.DefaultMode.Valid() {
		add("redaction.default_mode", "unknown mode %q", p.Redaction.DefaultMode)
	}
	for typ, m := range p.Redaction.ByType {
		if !m.Valid() {
			add("redaction.by_type."+typ, "unknown mode %q", m)
		}
	}

	for i, lvl := range p.AlwaysHITLSensitivity {
		if !lvl.Valid() {
			add(fmt.Sprintf("always_hitl_sensitivity[%d]", i), "unknown level %q", lvl)
		}
	}

	seen := make(map[string]bool)
	for i, d := range p.RequiredDisclaimers {
		field := fmt.Sprintf("required_disclaimers[%d]", i)
		if d.ID == "" {
			add(field+".id", "disclaimer id is required")
		} else if seen[d.ID] {
			add(field+".id", "duplicate rule id %q", d.ID)
		}
		seen[d.ID] = true
		if d.Text == "" {
			add(field+".text", "disclaimer text is required")
		}
		if !d.Severity.Valid() {
			add(field+".severity", "unknown severity %q", d.Severity)
		}
	}

	validatePhraseRules := func(name string, rules []PhraseRule) {
		for i, r := range rules {
			field := fmt.Sprintf("%s[%d]", name, i)
			if r.ID == "" {
				add(field+".id", "rule id is required")
			} else if seen[r.ID] {
				add(field+".id", "duplicate rule id %q", r.ID)
			}
			seen[r.ID] = true
			if len(r.Phrases) == 0 {
				add(field+".phrases", "at least one phrase is required")
			}
			for j, ph := range r.Phrases {
				if ph == "" {
					add(fmt.Sprintf("%s.phrases[%d]", field, j), "phrase must not be empty")
				}
			}
			if !r.Severity.Valid() {
				add(field+".severity", "unknown severity %q", r.Severity)
			}
		}
	}
	validatePhraseRules("forbidden_content", p.ForbiddenContent)
	validatePhraseRules("sharing_rules", p.SharingRules)

	if len(errs) > 0 {
		return &ValidationError{SetID: p.ID, Errors: errs}
	}
	return nil
}

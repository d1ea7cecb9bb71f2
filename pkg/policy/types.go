package policy

import (
	"encoding/json"
	"fmt"
	"slices"

	"mercator-hq/docguard/pkg/detect"
	"mercator-hq/docguard/pkg/model"
)

// PolicySet is the rule bundle applied to a run.
type PolicySet struct {
	ID          string `yaml:"id" toml:"id" json:"id"`
	Name        string `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
	Version     string `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty"`
	Description string `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`

	// FinancialThreshold is the amount above which a clause is a hard HITL
	// trigger. The reviewer refuses to run without it.
	FinancialThreshold *float64 `yaml:"financial_threshold,omitempty" toml:"financial_threshold,omitempty" json:"financial_threshold,omitempty"`
	Currency           string   `yaml:"currency,omitempty" toml:"currency,omitempty" json:"currency,omitempty"`

	// ConfidenceFloor overrides detect.DefaultConfidenceFloor.
	ConfidenceFloor *float64 `yaml:"confidence_floor,omitempty" toml:"confidence_floor,omitempty" json:"confidence_floor,omitempty"`

	Redaction RedactionPolicy `yaml:"redaction" toml:"redaction" json:"redaction"`

	// AlwaysHITLSensitivity lists sensitivity tiers that always interrupt
	// after extraction.
	AlwaysHITLSensitivity []model.RiskLevel `yaml:"always_hitl_sensitivity,omitempty" toml:"always_hitl_sensitivity,omitempty" json:"always_hitl_sensitivity,omitempty"`

	// ExternalSharing marks every draft under this set as leaving the
	// organization, which forces final sign-off.
	ExternalSharing bool `yaml:"external_sharing,omitempty" toml:"external_sharing,omitempty" json:"external_sharing,omitempty"`

	RequiredDisclaimers []Disclaimer `yaml:"required_disclaimers,omitempty" toml:"required_disclaimers,omitempty" json:"required_disclaimers,omitempty"`
	ForbiddenContent    []PhraseRule `yaml:"forbidden_content,omitempty" toml:"forbidden_content,omitempty" json:"forbidden_content,omitempty"`
	SharingRules        []PhraseRule `yaml:"sharing_rules,omitempty" toml:"sharing_rules,omitempty" json:"sharing_rules,omitempty"`

	// DocTypeKeywords adds classifier keywords per document type.
	DocTypeKeywords map[string][]string `yaml:"doc_type_keywords,omitempty" toml:"doc_type_keywords,omitempty" json:"doc_type_keywords,omitempty"`
}

// RedactionPolicy assigns redaction modes to entity types.
type RedactionPolicy struct {
	DefaultMode model.RedactionMode            `yaml:"default_mode,omitempty" toml:"default_mode,omitempty" json:"default_mode,omitempty"`
	ByType      map[string]model.RedactionMode `yaml:"by_type,omitempty" toml:"by_type,omitempty" json:"by_type,omitempty"`
}

// Disclaimer is text that must appear in matching documents. The document
// is considered to carry it when any Match phrase (or Text itself) occurs.
type Disclaimer struct {
	ID        string          `yaml:"id" toml:"id" json:"id"`
	Text      string          `yaml:"text" toml:"text" json:"text"`
	Match     []string        `yaml:"match,omitempty" toml:"match,omitempty" json:"match,omitempty"`
	AppliesTo []string        `yaml:"applies_to,omitempty" toml:"applies_to,omitempty" json:"applies_to,omitempty"`
	Severity  model.RiskLevel `yaml:"severity" toml:"severity" json:"severity"`
}

// Applies reports whether the disclaimer is required for docType. An empty
// AppliesTo list means every document type.
func (d Disclaimer) Applies(docType string) bool {
	return len(d.AppliesTo) == 0 || slices.Contains(d.AppliesTo, docType)
}

// PhraseRule flags clauses containing any of its phrases.
type PhraseRule struct {
	ID       string          `yaml:"id" toml:"id" json:"id"`
	Category string          `yaml:"category" toml:"category" json:"category"`
	Phrases  []string        `yaml:"phrases" toml:"phrases" json:"phrases"`
	Severity model.RiskLevel `yaml:"severity" toml:"severity" json:"severity"`
}

// Threshold returns the financial threshold and whether it is set.
func (p *PolicySet) Threshold() (float64, bool) {
	if p.FinancialThreshold == nil {
		return 0, false
	}
	return *p.FinancialThreshold, true
}

// Floor returns the confidence floor for entity detection.
func (p *PolicySet) Floor() float64 {
	if p.ConfidenceFloor == nil {
		return detect.DefaultConfidenceFloor
	}
	return *p.ConfidenceFloor
}

// ModeFor returns the redaction mode assigned to an entity type: the
// per-type override, then the set default, then mask.
func (p *PolicySet) ModeFor(entityType string) model.RedactionMode {
	if m, ok := p.Redaction.ByType[entityType]; ok && m != "" {
		return m
	}
	if p.Redaction.DefaultMode != "" {
		return p.Redaction.DefaultMode
	}
	return model.ModeMask
}

// AlwaysHITL reports whether the sensitivity tier always needs human review.
func (p *PolicySet) AlwaysHITL(level model.RiskLevel) bool {
	return slices.Contains(p.AlwaysHITLSensitivity, level)
}

// Ref returns the reference used in violations and redline rationales.
func (p *PolicySet) Ref(ruleID string) string {
	return fmt.Sprintf("policy:%s/%s", p.ID, ruleID)
}

// Clone returns a deep copy of the set.
func (p *PolicySet) Clone() *PolicySet {
	data, err := json.Marshal(p)
	if err != nil {
		panic(fmt.Sprintf("policy: marshal set %s: %v", p.ID, err))
	}
	var out PolicySet
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("policy: unmarshal set %s: %v", p.ID, err))
	}
	return &out
}

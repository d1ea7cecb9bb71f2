package detect

import (
	"regexp"
	"strings"
	"testing"

	"mercator-hq/docguard/pkg/model"
)

func TestRegistry_Detect(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		name     string
		content  string
		wantType string
		wantRaw  string
		wantRisk model.RiskLevel
		wantConf float64
	}{
		{"ssn with label", "SSN: 123-45-6789", "ssn", "123-45-6789", model.RiskHigh, 0.95},
		{"email in body", "Write to jane@example.com today.", "email", "jane@example.com", model.RiskMedium, 0.85},
		{"phone near call", "Call me at (555) 123-4567 please.", "phone", "(555) 123-4567", model.RiskMedium, 0.85},
		{"card with label", "Card: 4111 1111 1111 1111", "credit_card", "4111 1111 1111 1111", model.RiskHigh, 0.9},
		{"account with label", "Account number 12345678901", "bank_account", "12345678901", model.RiskHigh, 0.75},
		{"server ip", "Server 10.0.0.1 hosts data", "ip_address", "10.0.0.1", model.RiskLow, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ents := reg.Detect(tt.content)
			if len(ents) != 1 {
				t.Fatalf("Detect() returned %d entities, want 1: %+v", len(ents), ents)
			}
			e := ents[0]
			if e.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", e.Type, tt.wantType)
			}
			if e.RawValue != tt.wantRaw {
				t.Errorf("RawValue = %q, want %q", e.RawValue, tt.wantRaw)
			}
			if e.RiskLevel != tt.wantRisk {
				t.Errorf("RiskLevel = %s, want %s", e.RiskLevel, tt.wantRisk)
			}
			if e.Confidence != tt.wantConf {
				t.Errorf("Confidence = %v, want %v", e.Confidence, tt.wantConf)
			}
			if tt.content[e.Start:e.End] != e.RawValue {
				t.Errorf("span [%d:%d] does not match raw value", e.Start, e.End)
			}
		})
	}
}

func TestRegistry_DetectNoImplicitCatchAll(t *testing.T) {
	reg := DefaultRegistry()
	inputs := []string{
		"",
		"The quick brown fox jumps over the lazy dog.",
		"Reference 12345678901 is an internal ticket.",
	}
	for _, in := range inputs {
		if ents := reg.Detect(in); len(ents) != 0 {
			t.Errorf("Detect(%q) = %+v, want none", in, ents)
		}
	}
}

func TestRegistry_HeadingSuppression(t *testing.T) {
	reg := DefaultRegistry()

	heading := reg.Detect("# Contact jane@example.com\n")
	body := reg.Detect("Contact jane@example.com\n")
	if len(heading) != 1 || len(body) != 1 {
		t.Fatalf("expected one entity each, got %d and %d", len(heading), len(body))
	}
	if heading[0].Confidence >= body[0].Confidence {
		t.Errorf("heading confidence %v should be below body confidence %v", heading[0].Confidence, body[0].Confidence)
	}
}

func TestRegistry_Floor(t *testing.T) {
	strict, err := DefaultRegistry().WithFloor(0.9)
	if err != nil {
		t.Fatalf("WithFloor() failed: %v", err)
	}
	if ents := strict.Detect("Write to jane@example.com today."); len(ents) != 0 {
		t.Errorf("expected email below floor to be dropped, got %+v", ents)
	}
	if ents := strict.Detect("SSN: 123-45-6789"); len(ents) != 1 {
		t.Errorf("expected ssn above floor to be kept, got %+v", ents)
	}

	if _, err := DefaultRegistry().WithFloor(1.5); err == nil {
		t.Error("expected error for floor outside [0,1]")
	}
}

func TestRegistry_OverlapPrefersLongerMatch(t *testing.T) {
	ents := DefaultRegistry().Detect("Reach john.123-45-6789@example.com")
	if len(ents) != 1 {
		t.Fatalf("Detect() returned %d entities, want 1: %+v", len(ents), ents)
	}
	if ents[0].Type != "email" {
		t.Errorf("Type = %s, want email", ents[0].Type)
	}
}

func TestRegistry_SpecificityBreaksTies(t *testing.T) {
	rules := []Rule{
		{EntityType: "generic", Pattern: regexp.MustCompile(`\d{4}`), DefaultRisk: model.RiskLow, BaseConfidence: 0.5, Specificity: 1},
		{EntityType: "pin", Pattern: regexp.MustCompile(`\d{4}`), DefaultRisk: model.RiskHigh, BaseConfidence: 0.5, Specificity: 10},
	}
	reg, err := NewRegistry(rules)
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}
	ents := reg.Detect("code 1234")
	if len(ents) != 1 || ents[0].Type != "pin" {
		t.Errorf("Detect() = %+v, want single pin entity", ents)
	}
}

func TestRegistry_DocumentOrder(t *testing.T) {
	ents := DefaultRegistry().Detect("Email jane@example.com.\nSSN: 123-45-6789\nCall (555) 123-4567")
	if len(ents) != 3 {
		t.Fatalf("Detect() returned %d entities, want 3", len(ents))
	}
	for i := 1; i < len(ents); i++ {
		if ents[i].Start < ents[i-1].End {
			t.Errorf("entities out of order or overlapping: %+v", ents)
		}
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	pat := regexp.MustCompile(`x`)
	tests := []struct {
		name  string
		rules []Rule
	}{
		{"missing type", []Rule{{Pattern: pat, DefaultRisk: model.RiskLow}}},
		{"missing pattern", []Rule{{EntityType: "a", DefaultRisk: model.RiskLow}}},
		{"bad risk", []Rule{{EntityType: "a", Pattern: pat, DefaultRisk: "extreme"}}},
		{"duplicate", []Rule{
			{EntityType: "a", Pattern: pat, DefaultRisk: model.RiskLow},
			{EntityType: "a", Pattern: pat, DefaultRisk: model.RiskLow},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.rules); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegistry_Generalize(t *testing.T) {
	got := DefaultRegistry().Generalize("SSN: 123-45-6789, mail jane@example.com")
	want := "SSN: [SSN], mail [EMAIL]"
	if got != want {
		t.Errorf("Generalize() = %q, want %q", got, want)
	}
	if strings.Contains(got, "6789") {
		t.Error("generalized text leaks raw value")
	}
}

func TestIsHeadingLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"# Payment", true},
		{"## 2. Fees", true},
		{"Section 4 - Confidentiality", true},
		{"2. Payment Terms", true},
		{"1.1 Scope", true},
		{"CONFIDENTIAL INFORMATION", true},
		{"SSN: 123-45-6789", false},
		{"1. The Client shall pay $150,000 within 30 days.", false},
		{"The parties agree as follows.", false},
		{"NOTE", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsHeadingLine(tt.line); got != tt.want {
			t.Errorf("IsHeadingLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

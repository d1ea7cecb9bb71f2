package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/policy"
)

const sampleContract = `SERVICES AGREEMENT

This agreement (the "Agreement") is made on 2024-03-01.

1. Payment Terms
The Client shall pay $150,000 within 30 days of invoice.

2. Contact
Send notices to jane@example.com.
SSN: 123-45-6789
`

func TestSplitClauses_Headings(t *testing.T) {
	clauses := SplitClauses(sampleContract)

	wantHeadings := []string{"SERVICES AGREEMENT", "1. Payment Terms", "2. Contact"}
	if len(clauses) != len(wantHeadings) {
		t.Fatalf("SplitClauses() returned %d clauses, want %d: %+v", len(clauses), len(wantHeadings), clauses)
	}
	for i, c := range clauses {
		if c.Heading != wantHeadings[i] {
			t.Errorf("clause %d heading = %q, want %q", i, c.Heading, wantHeadings[i])
		}
		if c.OrderIndex != i {
			t.Errorf("clause %d order index = %d", i, c.OrderIndex)
		}
	}

	assertTiles(t, sampleContract, clauses)
}

func TestSplitClauses_PreambleAndParagraphs(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantCount int
		wantFirst string
	}{
		{"preamble before heading", "Intro text.\n# Terms\nBody.\n", 2, ""},
		{"leading blank lines fold into first clause", "\n\n# Terms\nBody.\n", 1, "Terms"},
		{"paragraphs without headings", "First paragraph.\nstill first.\n\nSecond paragraph.\n", 2, ""},
		{"single line", "Just one line", 1, ""},
		{"whitespace only", " \n\t\n", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clauses := SplitClauses(tt.content)
			if len(clauses) != tt.wantCount {
				t.Fatalf("SplitClauses() returned %d clauses, want %d", len(clauses), tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}
			if clauses[0].Heading != tt.wantFirst {
				t.Errorf("first heading = %q, want %q", clauses[0].Heading, tt.wantFirst)
			}
			assertTiles(t, tt.content, clauses)
		})
	}
}

func TestSplitClauses_Idempotent(t *testing.T) {
	a := SplitClauses(sampleContract)
	b := SplitClauses(sampleContract)
	if len(a) != len(b) {
		t.Fatal("clause count differs between runs")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("clause %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestExtractor_Extract(t *testing.T) {
	ex := New(nil, nil)
	doc := &model.Document{ID: "doc-1", RawContent: sampleContract}

	res, err := ex.Extract(context.Background(), doc, &model.Classification{SensitivityLevel: model.RiskMedium}, policy.Default())
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}

	if len(res.PIIEntities) != 2 {
		t.Fatalf("found %d entities, want 2: %+v", len(res.PIIEntities), res.PIIEntities)
	}

	var ssn *model.PIIEntity
	for i := range res.PIIEntities {
		if res.PIIEntities[i].Type == "ssn" {
			ssn = &res.PIIEntities[i]
		}
	}
	if ssn == nil {
		t.Fatal("ssn not detected")
	}
	if ssn.ClauseID != "c003" {
		t.Errorf("ssn clause = %s, want c003", ssn.ClauseID)
	}
	if ssn.RedactionMode != model.ModeMask {
		t.Errorf("ssn redaction mode = %s, want mask", ssn.RedactionMode)
	}
	if ssn.RiskLevel != model.RiskHigh {
		t.Errorf("ssn risk = %s, want high", ssn.RiskLevel)
	}
	if ssn.EntityID != EntityID("doc-1", "ssn", ssn.Start) {
		t.Error("entity id is not deterministic")
	}
	if !res.RequiresHITL {
		t.Error("high-risk confident entity should require HITL")
	}

	categories := make(map[string]bool)
	for _, kt := range res.KeyTerms {
		categories[kt.Category] = true
	}
	for _, want := range []string{TermAmount, TermDate, TermDuration, TermDefinedTerm} {
		if !categories[want] {
			t.Errorf("missing key term category %s in %+v", want, res.KeyTerms)
		}
	}
}

func TestExtractor_EmptyDocument(t *testing.T) {
	for _, content := range []string{"", "   \n\n"} {
		res, err := New(nil, nil).Extract(context.Background(), &model.Document{ID: "d", RawContent: content}, nil, policy.Default())
		if err != nil {
			t.Fatalf("Extract(%q) failed: %v", content, err)
		}
		if len(res.Clauses) != 0 || len(res.PIIEntities) != 0 || res.RequiresHITL {
			t.Errorf("Extract(%q) = %+v, want empty result without HITL", content, res)
		}
		if res.Clauses == nil || res.PIIEntities == nil {
			t.Error("empty result should carry empty, non-nil lists")
		}
	}
}

func TestExtractor_InvalidUTF8(t *testing.T) {
	_, err := New(nil, nil).Extract(context.Background(), &model.Document{ID: "d", RawContent: "bad \xff bytes"}, nil, policy.Default())
	var ie *model.InputError
	if !errors.As(err, &ie) {
		t.Errorf("Extract() error = %v, want InputError", err)
	}
}

func TestExtractor_PolicyDrivesModesAndHITL(t *testing.T) {
	set := policy.Default()
	set.Redaction.ByType = map[string]model.RedactionMode{"email": model.ModeRefuse}
	set.AlwaysHITLSensitivity = []model.RiskLevel{model.RiskHigh}

	doc := &model.Document{ID: "d", RawContent: "Write to jane@example.com today."}

	res, err := New(nil, nil).Extract(context.Background(), doc, &model.Classification{SensitivityLevel: model.RiskHigh}, set)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if len(res.PIIEntities) != 1 || res.PIIEntities[0].RedactionMode != model.ModeRefuse {
		t.Errorf("entities = %+v, want one email with refuse mode", res.PIIEntities)
	}
	if !res.RequiresHITL {
		t.Error("always-HITL sensitivity tier should require HITL")
	}

	res, err = New(nil, nil).Extract(context.Background(), doc, &model.Classification{SensitivityLevel: model.RiskLow}, set)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if res.RequiresHITL {
		t.Error("medium-risk email in low sensitivity document should not require HITL")
	}
}

func assertTiles(t *testing.T, content string, clauses []model.Clause) {
	t.Helper()
	var b strings.Builder
	prevEnd := 0
	for _, c := range clauses {
		if c.Start != prevEnd {
			t.Errorf("clause %s starts at %d, previous ended at %d", c.ClauseID, c.Start, prevEnd)
		}
		if content[c.Start:c.End] != c.Text {
			t.Errorf("clause %s text does not match its span", c.ClauseID)
		}
		b.WriteString(c.Text)
		prevEnd = c.End
	}
	if b.String() != content {
		t.Error("clauses do not reconstruct the content")
	}
}

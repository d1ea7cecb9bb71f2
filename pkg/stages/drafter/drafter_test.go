package drafter

import (
	"context"
	"strings"
	"testing"

	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/policy"
	"mercator-hq/docguard/pkg/stages/classifier"
	"mercator-hq/docguard/pkg/stages/extractor"
	"mercator-hq/docguard/pkg/stages/reviewer"
)

func prepare(t *testing.T, content string, set *policy.PolicySet, dc *model.DecisionContext) *Input {
	t.Helper()
	ctx := context.Background()
	doc := &model.Document{ID: "doc", RawContent: content}
	cls := classifier.New().Classify(ctx, doc, set)
	ext, err := extractor.New(nil, nil).Extract(ctx, doc, cls, set)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	rev, err := reviewer.New(nil).Review(ctx, &reviewer.Input{
		Document: doc, Classification: cls, Extraction: ext, Policy: set, Decisions: dc,
	})
	if err != nil {
		t.Fatalf("Review() failed: %v", err)
	}
	return &Input{Document: doc, Classification: cls, Extraction: ext, Review: rev, Policy: set, Decisions: dc}
}

func TestDrafter_MaskSSN(t *testing.T) {
	in := prepare(t, "SSN: 123-45-6789\n", policy.Default(), nil)

	res, err := New(nil, nil).Draft(context.Background(), in)
	if err != nil {
		t.Fatalf("Draft() failed: %v", err)
	}
	if res.FinalDocument != "SSN: ***-**-6789\n" {
		t.Errorf("FinalDocument = %q", res.FinalDocument)
	}
	if res.RedactionsCount != 1 || res.EditsCount != 0 {
		t.Errorf("counts = %d redactions, %d edits; want 1, 0", res.RedactionsCount, res.EditsCount)
	}
	if !strings.Contains(res.RedlineDocument, "{-[SSN]-}{+***-**-6789+}[^1]") {
		t.Errorf("redline missing change markup: %q", res.RedlineDocument)
	}
	if !strings.Contains(res.RedlineDocument, "[^1]: redaction in c001 (pii:ssn)") {
		t.Errorf("redline missing footnote: %q", res.RedlineDocument)
	}
	if !res.RequiresFinalHITL {
		t.Error("high overall risk should require final sign-off")
	}
}

func TestDrafter_RejectedClauseIsDropped(t *testing.T) {
	content := "# Keep\nKeep this clause.\n# Fees\nPay $900,000 now.\n"
	dc := &model.DecisionContext{RejectedClauses: map[string]string{"c002": "hitl:h1/i2"}}
	in := prepare(t, content, policy.Default(), dc)

	res, err := New(nil, nil).Draft(context.Background(), in)
	if err != nil {
		t.Fatalf("Draft() failed: %v", err)
	}
	if strings.Contains(res.FinalDocument, "$900,000") || strings.Contains(res.FinalDocument, "# Fees") {
		t.Errorf("rejected clause still present: %q", res.FinalDocument)
	}
	if res.FinalDocument != "# Keep\nKeep this clause.\n" {
		t.Errorf("FinalDocument = %q", res.FinalDocument)
	}
	if len(res.ProposedChanges) != 1 || res.ProposedChanges[0].Kind != model.ChangeRemoval {
		t.Fatalf("ProposedChanges = %+v, want one removal", res.ProposedChanges)
	}
	if res.ProposedChanges[0].Rationale != "hitl:h1/i2" {
		t.Errorf("removal rationale = %s", res.ProposedChanges[0].Rationale)
	}
	if res.EditsCount != 1 {
		t.Errorf("EditsCount = %d, want 1", res.EditsCount)
	}
}

func TestDrafter_HumanEdits(t *testing.T) {
	set := policy.Default()
	content := "# Contact\nReach jane@example.com for notices.\n# Term\nThe term is one year.\n"
	base := prepare(t, content, set, nil)
	email := base.Extraction.PIIEntities[0]

	dc := &model.DecisionContext{
		EntityEdits: map[string]model.Edit{email.EntityID: {Text: "the notices desk", Ref: "hitl:h1/a"}},
		ClauseEdits: map[string]model.Edit{"c002": {Text: "# Term\nThe term is two years. SSN 123-45-6789\n", Ref: "hitl:h1/b"}},
	}
	in := prepare(t, content, set, dc)

	res, err := New(nil, nil).Draft(context.Background(), in)
	if err != nil {
		t.Fatalf("Draft() failed: %v", err)
	}
	want := "# Contact\nReach the notices desk for notices.\n# Term\nThe term is two years. SSN ***-**-6789\n"
	if res.FinalDocument != want {
		t.Errorf("FinalDocument = %q, want %q", res.FinalDocument, want)
	}
	if res.EditsCount != 2 || res.RedactionsCount != 0 {
		t.Errorf("counts = %d edits, %d redactions; want 2, 0", res.EditsCount, res.RedactionsCount)
	}
}

func TestDrafter_RedlineHidesRawValues(t *testing.T) {
	set := policy.Default()
	content := "# Contact\nReach jane@example.com for notices.\n# Parties\nSSN: 123-45-6789\n"
	base := prepare(t, content, set, nil)
	email := base.Extraction.PIIEntities[0]

	dc := &model.DecisionContext{
		EntityEdits:     map[string]model.Edit{email.EntityID: {Text: "the notices desk", Ref: "hitl:h1/a"}},
		RejectedClauses: map[string]string{"c002": "hitl:h1/b"},
	}
	in := prepare(t, content, set, dc)

	res, err := New(nil, nil).Draft(context.Background(), in)
	if err != nil {
		t.Fatalf("Draft() failed: %v", err)
	}
	for _, raw := range []string{"jane@example.com", "123-45-6789"} {
		if strings.Contains(res.RedlineDocument, raw) {
			t.Errorf("redline exposes %q: %q", raw, res.RedlineDocument)
		}
		for _, ch := range res.ProposedChanges {
			if strings.Contains(ch.Before, raw) {
				t.Errorf("change %s exposes %q", ch.ChangeID, raw)
			}
		}
	}
	for _, markup := range []string{"{-[EMAIL]-}{+the notices desk+}", "{-# Parties\nSSN: [SSN]\n-}"} {
		if !strings.Contains(res.RedlineDocument, markup) {
			t.Errorf("redline missing %q: %q", markup, res.RedlineDocument)
		}
	}
}

func TestDrafter_InsertsMissingDisclaimer(t *testing.T) {
	content := "# Services\nThe Service Provider delivers the deliverables under this services agreement.\n"
	in := prepare(t, content, policy.Default(), nil)

	res, err := New(nil, nil).Draft(context.Background(), in)
	if err != nil {
		t.Fatalf("Draft() failed: %v", err)
	}
	if len(res.DisclaimersAdded) != 1 || res.DisclaimersAdded[0] != "no-legal-advice" {
		t.Fatalf("DisclaimersAdded = %v", res.DisclaimersAdded)
	}
	if !strings.HasSuffix(res.FinalDocument, "\nNothing in this document constitutes legal, tax or investment advice.\n") {
		t.Errorf("disclaimer not appended: %q", res.FinalDocument)
	}
	if !strings.Contains(res.RedlineDocument, "{+Nothing in this document") {
		t.Errorf("redline missing insertion: %q", res.RedlineDocument)
	}
	if res.EditsCount != 1 {
		t.Errorf("EditsCount = %d, want 1", res.EditsCount)
	}
}

func TestDrafter_Idempotent(t *testing.T) {
	content := "# Parties\nJane Roe, SSN: 123-45-6789, jane@example.com\n\n# Fees\n$150,000 payment due.\n"
	in := prepare(t, content, policy.Default(), nil)

	a, err := New(nil, nil).Draft(context.Background(), in)
	if err != nil {
		t.Fatalf("Draft() failed: %v", err)
	}
	b, err := New(nil, nil).Draft(context.Background(), in)
	if err != nil {
		t.Fatalf("Draft() failed: %v", err)
	}
	if a.FinalDocument != b.FinalDocument || a.RedlineDocument != b.RedlineDocument {
		t.Error("drafting the same inputs twice produced different output")
	}
}

func TestDrafter_ExternalSharing(t *testing.T) {
	in := prepare(t, "# Notes\nNothing sensitive here.\n", policy.Default(), nil)
	in.ExternalSharing = true

	res, err := New(nil, nil).Draft(context.Background(), in)
	if err != nil {
		t.Fatalf("Draft() failed: %v", err)
	}
	if !res.RequiresFinalHITL {
		t.Error("external sharing should require final sign-off")
	}

	in.ExternalSharing = false
	res, err = New(nil, nil).Draft(context.Background(), in)
	if err != nil {
		t.Fatalf("Draft() failed: %v", err)
	}
	if res.RequiresFinalHITL {
		t.Error("low-risk internal draft should not require final sign-off")
	}
}

func TestDrafter_AllOrNothing(t *testing.T) {
	in := prepare(t, "SSN: 123-45-6789\n", policy.Default(), nil)
	in.Extraction.PIIEntities[0].RedactionMode = ""

	res, err := New(nil, nil).Draft(context.Background(), in)
	if err == nil {
		t.Fatal("expected error for an entity without an assigned mode")
	}
	if res != nil {
		t.Error("failed draft must not return partial output")
	}
}

func TestDrafter_EmptyDocument(t *testing.T) {
	in := prepare(t, "", policy.Default(), nil)

	res, err := New(nil, nil).Draft(context.Background(), in)
	if err != nil {
		t.Fatalf("Draft() failed: %v", err)
	}
	if res.FinalDocument != "" || len(res.ProposedChanges) != 0 || res.RequiresFinalHITL {
		t.Errorf("empty draft = %+v", res)
	}
}

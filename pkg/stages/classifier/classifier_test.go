package classifier

import (
	"context"
	"testing"

	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/policy"
)

func TestClassifier_Classify(t *testing.T) {
	c := New()
	set := policy.Default()

	tests := []struct {
		name            string
		content         string
		wantType        string
		wantSensitivity model.RiskLevel
	}{
		{
			name:            "nda",
			content:         "Mutual Non-Disclosure Agreement. The Receiving Party shall protect Confidential Information of the Disclosing Party.",
			wantType:        "nda",
			wantSensitivity: model.RiskMedium,
		},
		{
			name:            "loan with health data",
			content:         "Loan Agreement between Borrower and Lender. Principal amount and interest rate. Borrower medical history attached.",
			wantType:        "loan_agreement",
			wantSensitivity: model.RiskHigh,
		},
		{
			name:            "unknown",
			content:         "The quick brown fox jumps over the lazy dog.",
			wantType:        DocTypeUnknown,
			wantSensitivity: model.RiskLow,
		},
		{
			name:            "empty",
			content:         "",
			wantType:        DocTypeUnknown,
			wantSensitivity: model.RiskLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(context.Background(), &model.Document{ID: "d", RawContent: tt.content}, set)
			if got.DocType != tt.wantType {
				t.Errorf("DocType = %s, want %s", got.DocType, tt.wantType)
			}
			if got.SensitivityLevel != tt.wantSensitivity {
				t.Errorf("SensitivityLevel = %s, want %s (factors %v)", got.SensitivityLevel, tt.wantSensitivity, got.RiskFactors)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("Confidence %v outside [0,1]", got.Confidence)
			}
		})
	}
}

func TestClassifier_PolicyKeywords(t *testing.T) {
	set := policy.Default()
	set.DocTypeKeywords = map[string][]string{"purchase_order": {"Purchase Order", "PO Number"}}

	got := New().Classify(context.Background(), &model.Document{RawContent: "Purchase Order 17, PO number 4411"}, set)
	if got.DocType != "purchase_order" {
		t.Errorf("DocType = %s, want purchase_order", got.DocType)
	}
}

func TestClassifier_Deterministic(t *testing.T) {
	doc := &model.Document{RawContent: "Lease agreement: the Tenant pays rent to the Landlord. Employee salary."}
	a := New().Classify(context.Background(), doc, nil)
	b := New().Classify(context.Background(), doc, nil)
	if a.DocType != b.DocType || a.Confidence != b.Confidence || len(a.RiskFactors) != len(b.RiskFactors) {
		t.Errorf("classification differs between runs: %+v vs %+v", a, b)
	}
}

package detect

import "testing"

func TestFindAmounts(t *testing.T) {
	tests := []struct {
		text string
		want []float64
	}{
		{"$150,000 payment due", []float64{150000}},
		{"a fee of USD 2,500.50 and $99", []float64{2500.50, 99}},
		{"up to $1.2 million in damages", []float64{1200000}},
		{"pay 40,000 dollars on signing", []float64{40000}},
		{"a budget of $5k", []float64{5000}},
		{"within 30 days of 2024-01-01", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := FindAmounts(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("FindAmounts() = %+v, want values %v", got, tt.want)
			}
			for i, a := range got {
				if a.Value != tt.want[i] {
					t.Errorf("amount[%d] = %v, want %v", i, a.Value, tt.want[i])
				}
				if tt.text[a.Start:a.End] != a.Text {
					t.Errorf("amount[%d] span does not match text %q", i, a.Text)
				}
			}
		})
	}
}

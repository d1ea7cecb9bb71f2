package extractor

import (
	"regexp"

	"mercator-hq/docguard/pkg/detect"
	"mercator-hq/docguard/pkg/model"
)

// Key term categories.
const (
	TermAmount      = "amount"
	TermDate        = "date"
	TermDuration    = "duration"
	TermDefinedTerm = "defined_term"
)

var (
	datePattern     = regexp.MustCompile(`\b(?:\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s*\d{4})\b`)
	durationPattern = regexp.MustCompile(`(?i)\b\d+\s+(?:business\s+|calendar\s+)?(?:days?|weeks?|months?|years?)\b`)
	definedPattern  = regexp.MustCompile(`\(\s*(?:the\s+)?["“]([^"”]+)["”]\s*\)|["“]([A-Z][^"”]{1,60})["”]\s+(?:means|shall mean)`)
)

// keyTerms collects amounts, dates, durations and defined terms per clause,
// in clause order. Duplicates within a clause are reported once.
func keyTerms(clauses []model.Clause) []model.KeyTerm {
	var out []model.KeyTerm
	for _, c := range clauses {
		seen := make(map[string]bool)
		add := func(term, category string) {
			key := category + "\x00" + term
			if term == "" || seen[key] {
				return
			}
			seen[key] = true
			out = append(out, model.KeyTerm{Term: term, Category: category, ClauseID: c.ClauseID})
		}

		for _, a := range detect.FindAmounts(c.Text) {
			add(a.Text, TermAmount)
		}
		for _, m := range datePattern.FindAllString(c.Text, -1) {
			add(m, TermDate)
		}
		for _, m := range durationPattern.FindAllString(c.Text, -1) {
			add(m, TermDuration)
		}
		for _, m := range definedPattern.FindAllStringSubmatch(c.Text, -1) {
			if m[1] != "" {
				add(m[1], TermDefinedTerm)
			} else {
				add(m[2], TermDefinedTerm)
			}
		}
	}
	return out
}

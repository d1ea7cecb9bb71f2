package detect

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	numberedHeading = regexp.MustCompile(`^\d+(\.\d+)*\.?\s+[A-Z][A-Za-z'&/-]*(\s+[A-Za-z'&/-]+)*\s*:?$`)
	headingPrefixes = []string{"section ", "article ", "clause ", "schedule ", "exhibit ", "annex "}
)

// Lines longer than these bounds are treated as prose.
const (
	maxHeadingLen   = 80
	maxHeadingWords = 7
)

// IsHeadingLine reports whether a line looks like a section heading:
// a markdown heading, a "Section 4"-style label, a numbered title such as
// "2. Payment Terms", or an all-caps title of at least two words.
func IsHeadingLine(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" || len(s) > maxHeadingLen {
		return false
	}
	if strings.HasPrefix(s, "#") {
		return true
	}

	lower := strings.ToLower(s)
	for _, p := range headingPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}

	if numberedHeading.MatchString(s) && len(strings.Fields(s)) <= maxHeadingWords {
		return true
	}

	return isAllCapsTitle(s)
}

// HeadingText strips markdown markers and trailing colons from a heading line.
func HeadingText(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "#")
	s = strings.TrimSpace(s)
	return strings.TrimSuffix(s, ":")
}

func isAllCapsTitle(s string) bool {
	words := 0
	for _, w := range strings.Fields(s) {
		hasLetter := false
		for _, r := range w {
			switch {
			case unicode.IsDigit(r):
				return false
			case unicode.IsLower(r):
				return false
			case unicode.IsLetter(r):
				hasLetter = true
			}
		}
		if hasLetter {
			words++
		}
	}
	return words >= 2
}

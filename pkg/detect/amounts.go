package detect

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	currencyPrefixed = regexp.MustCompile(`(?i)(?:\$|usd\s*|€|£)\s?(\d{1,3}(?:,\d{3})+|\d+)(\.\d+)?(?:\s*(million|thousand|k)\b)?`)
	currencySuffixed = regexp.MustCompile(`(?i)\b(\d{1,3}(?:,\d{3})+|\d+)(\.\d+)?\s*(million|thousand)?\s*(?:dollars|usd|euros|eur)\b`)
)

// Amount is a monetary value found in text.
type Amount struct {
	Text  string
	Value float64
	Start int
	End   int
}

// FindAmounts returns monetary amounts in text in order of appearance.
// "$150,000", "USD 2,500.50", "$1.2 million" and "40,000 dollars" are all
// recognized; bare numbers are not.
func FindAmounts(text string) []Amount {
	var out []Amount
	for _, re := range []*regexp.Regexp{currencyPrefixed, currencySuffixed} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			a, ok := parseAmount(text, m)
			if !ok || overlapsAmount(out, a) {
				continue
			}
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func parseAmount(text string, m []int) (Amount, bool) {
	num := strings.ReplaceAll(text[m[2]:m[3]], ",", "")
	if m[4] >= 0 {
		num += text[m[4]:m[5]]
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Amount{}, false
	}
	if m[6] >= 0 {
		switch strings.ToLower(text[m[6]:m[7]]) {
		case "million":
			v *= 1_000_000
		case "thousand", "k":
			v *= 1_000
		}
	}
	return Amount{Text: text[m[0]:m[1]], Value: v, Start: m[0], End: m[1]}, true
}

func overlapsAmount(found []Amount, a Amount) bool {
	for _, f := range found {
		if a.Start < f.End && f.Start < a.End {
			return true
		}
	}
	return false
}

package extractor

import (
	"fmt"
	"strings"

	"mercator-hq/docguard/pkg/detect"
	"mercator-hq/docguard/pkg/model"
)

type line struct {
	start, end int // end excludes the newline
	text       string
}

func splitLines(content string) []line {
	var lines []line
	for pos := 0; pos < len(content); {
		nl := strings.IndexByte(content[pos:], '\n')
		if nl < 0 {
			lines = append(lines, line{start: pos, end: len(content), text: content[pos:]})
			break
		}
		lines = append(lines, line{start: pos, end: pos + nl, text: content[pos : pos+nl]})
		pos += nl + 1
	}
	return lines
}

// SplitClauses divides content into clauses. Whitespace-only content
// yields no clauses.
func SplitClauses(content string) []model.Clause {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := splitLines(content)

	var starts []int
	var headings []string
	for _, l := range lines {
		if detect.IsHeadingLine(l.text) {
			starts = append(starts, l.start)
			headings = append(headings, detect.HeadingText(l.text))
		}
	}

	if len(starts) == 0 {
		starts = paragraphStarts(lines)
		headings = make([]string, len(starts))
	}

	// Text before the first boundary becomes a preamble clause, or is folded
	// into the first clause when it is only whitespace.
	if starts[0] > 0 {
		if strings.TrimSpace(content[:starts[0]]) == "" {
			starts[0] = 0
		} else {
			starts = append([]int{0}, starts...)
			headings = append([]string{""}, headings...)
		}
	}

	clauses := make([]model.Clause, len(starts))
	for i, s := range starts {
		end := len(content)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		clauses[i] = model.Clause{
			ClauseID:   fmt.Sprintf("c%03d", i+1),
			Heading:    headings[i],
			Text:       content[s:end],
			OrderIndex: i,
			Start:      s,
			End:        end,
		}
	}
	return clauses
}

// paragraphStarts returns the offset of every non-blank line that follows
// a blank line (or starts the document).
func paragraphStarts(lines []line) []int {
	var starts []int
	prevBlank := true
	for _, l := range lines {
		blank := strings.TrimSpace(l.text) == ""
		if !blank && prevBlank {
			starts = append(starts, l.start)
		}
		prevBlank = blank
	}
	return starts
}

// clauseAt returns the id of the clause containing offset pos.
func clauseAt(clauses []model.Clause, pos int) string {
	for _, c := range clauses {
		if pos >= c.Start && pos < c.End {
			return c.ClauseID
		}
	}
	return ""
}

package detect

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"mercator-hq/docguard/pkg/model"
)

// DefaultConfidenceFloor is the confidence below which matches are dropped.
const DefaultConfidenceFloor = 0.3

// snippetRadius is the number of bytes of context kept on each side of a
// match in PIIEntity.ContextSnippet.
const snippetRadius = 30

// Registry runs a table of detection rules over document text.
type Registry struct {
	rules  []Rule
	byType map[string]int
	floor  float64
}

// NewRegistry builds a registry from rules. Entity types must be unique and
// every rule needs a pattern and a valid default risk.
func NewRegistry(rules []Rule) (*Registry, error) {
	r := &Registry{
		rules:  make([]Rule, 0, len(rules)),
		byType: make(map[string]int, len(rules)),
		floor:  DefaultConfidenceFloor,
	}
	for _, rule := range rules {
		if rule.EntityType == "" {
			return nil, fmt.Errorf("detect: rule without entity type")
		}
		if rule.Pattern == nil {
			return nil, fmt.Errorf("detect: rule %s has no pattern", rule.EntityType)
		}
		if !rule.DefaultRisk.Valid() {
			return nil, fmt.Errorf("detect: rule %s has invalid risk %q", rule.EntityType, rule.DefaultRisk)
		}
		if _, dup := r.byType[rule.EntityType]; dup {
			return nil, fmt.Errorf("detect: duplicate rule for %s", rule.EntityType)
		}
		r.byType[rule.EntityType] = len(r.rules)
		r.rules = append(r.rules, rule)
	}
	return r, nil
}

// DefaultRegistry returns a registry over DefaultRules.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultRules())
	if err != nil {
		panic(err)
	}
	return r
}

// WithFloor returns a copy of the registry using the given confidence floor.
func (r *Registry) WithFloor(floor float64) (*Registry, error) {
	if floor < 0 || floor > 1 {
		return nil, model.NewValidationError("confidence_floor", fmt.Sprintf("%v is outside [0,1]", floor))
	}
	cp := *r
	cp.floor = floor
	return &cp, nil
}

// Floor returns the confidence floor.
func (r *Registry) Floor() float64 {
	return r.floor
}

// Rule returns the rule for an entity type.
func (r *Registry) Rule(entityType string) (Rule, bool) {
	i, ok := r.byType[entityType]
	if !ok {
		return Rule{}, false
	}
	return r.rules[i], true
}

// Types lists the registered entity types in table order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.rules))
	for i, rule := range r.rules {
		out[i] = rule.EntityType
	}
	return out
}

type candidate struct {
	rule       *Rule
	start, end int
	confidence float64
}

// Detect finds sensitive values in content. Entities are returned in
// document order with Type, RawValue, ContextSnippet, Confidence, RiskLevel
// and span set; ids, clause mapping and redaction modes are assigned by the
// caller. Overlapping matches resolve to the longer match, then the more
// specific rule.
func (r *Registry) Detect(content string) []model.PIIEntity {
	if content == "" {
		return nil
	}

	var cands []candidate
	for i := range r.rules {
		rule := &r.rules[i]
		for _, loc := range rule.Pattern.FindAllStringIndex(content, -1) {
			conf := r.score(rule, content, loc[0], loc[1])
			if conf < r.floor {
				continue
			}
			cands = append(cands, candidate{rule: rule, start: loc[0], end: loc[1], confidence: conf})
		}
	}

	accepted := resolveOverlaps(cands)

	out := make([]model.PIIEntity, 0, len(accepted))
	for _, c := range accepted {
		out = append(out, model.PIIEntity{
			Type:           c.rule.EntityType,
			RawValue:       content[c.start:c.end],
			ContextSnippet: snippet(content, c.start, c.end),
			Confidence:     c.confidence,
			RiskLevel:      c.rule.DefaultRisk,
			Start:          c.start,
			End:            c.end,
		})
	}
	return out
}

// Generalize replaces every detected value in text with its category token.
func (r *Registry) Generalize(text string) string {
	ents := r.Detect(text)
	if len(ents) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, e := range ents {
		b.WriteString(text[last:e.Start])
		b.WriteString(r.token(e.Type))
		last = e.End
	}
	b.WriteString(text[last:])
	return b.String()
}

func (r *Registry) score(rule *Rule, content string, start, end int) float64 {
	conf := rule.BaseConfidence
	cr := rule.Context

	if len(cr.Boost) > 0 {
		window := strings.ToLower(content[clampLeft(content, start-cr.Window):clampRight(content, end+cr.Window)])
		for _, kw := range cr.Boost {
			if strings.Contains(window, kw) {
				conf += cr.BoostBy
				break
			}
		}
	}

	if IsHeadingLine(lineAt(content, start)) {
		conf -= cr.SuppressBy
	}

	conf = math.Max(0, math.Min(1, conf))
	return math.Round(conf*100) / 100
}

func resolveOverlaps(cands []candidate) []candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		li, lj := cands[i].end-cands[i].start, cands[j].end-cands[j].start
		if li != lj {
			return li > lj
		}
		if cands[i].rule.Specificity != cands[j].rule.Specificity {
			return cands[i].rule.Specificity > cands[j].rule.Specificity
		}
		return cands[i].start < cands[j].start
	})

	var accepted []candidate
	for _, c := range cands {
		overlaps := false
		for _, a := range accepted {
			if c.start < a.end && a.start < c.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, c)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })
	return accepted
}

func lineAt(content string, pos int) string {
	start := strings.LastIndexByte(content[:pos], '\n') + 1
	end := strings.IndexByte(content[pos:], '\n')
	if end < 0 {
		return content[start:]
	}
	return content[start : pos+end]
}

func snippet(content string, start, end int) string {
	s := clampLeft(content, start-snippetRadius)
	e := clampRight(content, end+snippetRadius)
	return strings.Join(strings.Fields(content[s:e]), " ")
}

// clampLeft moves i into range and back to a rune boundary.
func clampLeft(s string, i int) int {
	if i <= 0 {
		return 0
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// clampRight moves i into range and forward to a rune boundary.
func clampRight(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

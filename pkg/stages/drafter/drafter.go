// Package drafter applies redactions, human edits and required disclaimers
// to a document, producing the final text and a redline that marks every
// change.
//
// Redline markup is inline: removed text is wrapped as {-text-}, inserted
// text as {+text+}, and each change carries a footnote marker [^n] whose
// footnote names the change kind and its rationale (a PII type, a policy
// rule or a human decision). Personal data on the removed side is shown as
// its type token, so a redline can leave the pipeline before final sign-off.
//
// Drafting is deterministic and all-or-nothing: the same inputs always give
// byte-identical output, and any failure discards the whole draft.
package drafter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"mercator-hq/docguard/pkg/detect"
	"mercator-hq/docguard/pkg/model"
	"mercator-hq/docguard/pkg/policy"
)

// Input is everything the drafter reads.
type Input struct {
	Document        *model.Document
	Classification  *model.Classification
	Extraction      *model.ExtractionResult
	Review          *model.ReviewResult
	Policy          *policy.PolicySet
	Decisions       *model.DecisionContext
	ExternalSharing bool
}

// Drafter produces a DraftResult.
type Drafter struct {
	registry *detect.Registry
	logger   *slog.Logger
}

// New creates a drafter. A nil registry uses the default rule table.
func New(registry *detect.Registry, logger *slog.Logger) *Drafter {
	if registry == nil {
		registry = detect.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Drafter{registry: registry, logger: logger.With("component", "drafter")}
}

type draft struct {
	registry *detect.Registry
	in       *Input
	final    strings.Builder
	redline  strings.Builder
	changes  []model.Change
}

// Draft builds the final and redline documents.
func (d *Drafter) Draft(ctx context.Context, in *Input) (*model.DraftResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	df := &draft{registry: d.registry, in: in}
	content := in.Document.RawContent
	dc := in.Decisions
	if dc == nil {
		dc = &model.DecisionContext{}
	}

	pos := 0
	for _, c := range in.Extraction.Clauses {
		start := max(pos, c.Start)
		if start >= c.End {
			continue
		}

		if ref, rejected := dc.RejectedClauses[c.ClauseID]; rejected {
			df.remove(c.ClauseID, df.conceal(content, c, start), ref)
			pos = c.End
			continue
		}

		if edit, ok := dc.ClauseEdits[c.ClauseID]; ok {
			after, err := df.redactText(c.ClauseID, edit.Text)
			if err != nil {
				return nil, err
			}
			df.replace(model.ChangeEdit, c.ClauseID, df.conceal(content, c, start), after, edit.Ref)
			pos = c.End
			continue
		}

		var err error
		pos, err = df.clauseWithEntities(content, c, start, dc)
		if err != nil {
			return nil, err
		}
	}

	disclaimers := df.insertDisclaimers()

	result := &model.DraftResult{
		FinalDocument:     df.final.String(),
		RedlineDocument:   df.redline.String() + footnotes(df.changes),
		DisclaimersAdded:  disclaimers,
		ProposedChanges:   df.changes,
		RequiresFinalHITL: in.ExternalSharing || in.Policy.ExternalSharing || in.Review.OverallRisk == model.RiskHigh,
	}
	for _, ch := range df.changes {
		if ch.Kind == model.ChangeRedaction {
			result.RedactionsCount++
		} else {
			result.EditsCount++
		}
	}
	if result.ProposedChanges == nil {
		result.ProposedChanges = []model.Change{}
	}
	if result.DisclaimersAdded == nil {
		result.DisclaimersAdded = []string{}
	}

	d.logger.DebugContext(ctx, "draft complete",
		"document_id", in.Document.ID,
		"redactions", result.RedactionsCount,
		"edits", result.EditsCount,
		"requires_final_hitl", result.RequiresFinalHITL,
	)
	return result, nil
}

// clauseWithEntities copies the clause, replacing each entity with its
// redaction or a human-supplied value. It returns the offset reached, which
// can pass the clause end when an entity spans into the next clause.
func (df *draft) clauseWithEntities(content string, c model.Clause, start int, dc *model.DecisionContext) (int, error) {
	ents := df.in.Extraction.EntitiesIn(c.ClauseID)
	sort.SliceStable(ents, func(i, j int) bool { return ents[i].Start < ents[j].Start })

	pos := start
	for _, ent := range ents {
		if ent.Start < pos {
			continue
		}
		df.keep(content[pos:ent.Start])

		if edit, ok := dc.EntityEdits[ent.EntityID]; ok {
			df.replace(model.ChangeEdit, c.ClauseID, df.placeholder(ent), edit.Text, edit.Ref)
		} else {
			repl, err := df.registry.Redact(ent, ent.RedactionMode)
			if err != nil {
				return 0, fmt.Errorf("redact entity %s: %w", ent.EntityID, err)
			}
			df.replace(model.ChangeRedaction, c.ClauseID, df.placeholder(ent), repl, "pii:"+ent.Type)
		}
		pos = ent.End
	}
	if pos < c.End {
		df.keep(content[pos:c.End])
		pos = c.End
	}
	return pos, nil
}

// placeholder is the removed side of an entity change. Raw values never
// reach the redline.
func (df *draft) placeholder(ent model.PIIEntity) string {
	token, _ := df.registry.Redact(ent, model.ModeGeneralize)
	return token
}

// conceal returns the clause text from start with its extracted entities
// replaced by their placeholders.
func (df *draft) conceal(content string, c model.Clause, start int) string {
	ents := df.in.Extraction.EntitiesIn(c.ClauseID)
	sort.SliceStable(ents, func(i, j int) bool { return ents[i].Start < ents[j].Start })

	var b strings.Builder
	pos := start
	for _, ent := range ents {
		if ent.Start < pos || ent.Start >= c.End {
			continue
		}
		b.WriteString(content[pos:ent.Start])
		b.WriteString(df.placeholder(ent))
		pos = min(ent.End, c.End)
	}
	b.WriteString(content[pos:c.End])
	return b.String()
}

// redactText redacts values detected in human-supplied text using the
// policy's mode for each type. The redactions are not counted as separate
// changes; they are part of the edit.
func (df *draft) redactText(clauseID, text string) (string, error) {
	ents := df.registry.Detect(text)
	if len(ents) == 0 {
		return text, nil
	}
	var b strings.Builder
	last := 0
	for _, ent := range ents {
		repl, err := df.registry.Redact(ent, df.in.Policy.ModeFor(ent.Type))
		if err != nil {
			return "", fmt.Errorf("redact edited clause %s: %w", clauseID, err)
		}
		b.WriteString(text[last:ent.Start])
		b.WriteString(repl)
		last = ent.End
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func (df *draft) insertDisclaimers() []string {
	var added []string
	for _, v := range df.in.Review.PolicyViolations {
		if v.Type != model.ViolationMissingDisclaimer {
			continue
		}
		for _, disc := range df.in.Policy.RequiredDisclaimers {
			if df.in.Policy.Ref(disc.ID) != v.PolicyRef {
				continue
			}
			sep := "\n"
			if s := df.final.String(); s != "" && !strings.HasSuffix(s, "\n") {
				sep = "\n\n"
			}
			df.keep(sep)
			df.insert(disc.Text+"\n", v.PolicyRef)
			added = append(added, disc.ID)
		}
	}
	return added
}

func (df *draft) keep(text string) {
	df.final.WriteString(text)
	df.redline.WriteString(text)
}

func (df *draft) remove(clauseID, before, rationale string) {
	n := df.record(model.ChangeRemoval, clauseID, before, "", rationale)
	fmt.Fprintf(&df.redline, "{-%s-}[^%d]", before, n)
}

func (df *draft) insert(after, rationale string) {
	n := df.record(model.ChangeInsertion, "", "", after, rationale)
	df.final.WriteString(after)
	fmt.Fprintf(&df.redline, "{+%s+}[^%d]", after, n)
}

func (df *draft) replace(kind, clauseID, before, after, rationale string) {
	n := df.record(kind, clauseID, before, after, rationale)
	df.final.WriteString(after)
	fmt.Fprintf(&df.redline, "{-%s-}{+%s+}[^%d]", before, after, n)
}

func (df *draft) record(kind, clauseID, before, after, rationale string) int {
	n := len(df.changes) + 1
	df.changes = append(df.changes, model.Change{
		ChangeID:  fmt.Sprintf("ch%03d", n),
		Kind:      kind,
		ClauseID:  clauseID,
		Before:    before,
		After:     after,
		Rationale: rationale,
	})
	return n
}

func footnotes(changes []model.Change) string {
	if len(changes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n---\n")
	for i, ch := range changes {
		if ch.ClauseID != "" {
			fmt.Fprintf(&b, "[^%d]: %s in %s (%s)\n", i+1, ch.Kind, ch.ClauseID, ch.Rationale)
		} else {
			fmt.Fprintf(&b, "[^%d]: %s (%s)\n", i+1, ch.Kind, ch.Rationale)
		}
	}
	return b.String()
}

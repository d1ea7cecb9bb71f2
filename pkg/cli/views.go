package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"mercator-hq/docguard/pkg/model"
)

const timeLayout = time.RFC3339

// RunList is a set of runs shown as a table.
type RunList []*model.Run

// Header implements Tabular.
func (l RunList) Header() []string {
	return []string{"run_id", "document_id", "status", "stage", "policy_set_id", "pending_hitl_id", "updated_at"}
}

// Rows implements Tabular.
func (l RunList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{
			r.RunID,
			r.DocumentID,
			string(r.Status),
			string(r.CurrentStage),
			r.PolicySetID,
			r.PendingHITLID,
			r.UpdatedAt.Format(timeLayout),
		})
	}
	return rows
}

// Render implements Renderable.
func (l RunList) Render(s *Styles) string {
	if len(l) == 0 {
		return s.Muted.Render("no runs")
	}
	var b strings.Builder
	for i, r := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %s  %s  %s",
			s.Label.Render(r.RunID),
			s.Status(r.Status).Render(string(r.Status)),
			r.DocumentID,
			s.Muted.Render(string(r.CurrentStage)),
		)
		if r.PendingHITLID != "" {
			fmt.Fprintf(&b, "  %s", s.Warning.Render("hitl "+r.PendingHITLID))
		}
	}
	return b.String()
}

// RunDetail shows one run.
type RunDetail struct {
	*model.Run
}

// Header implements Tabular.
func (d RunDetail) Header() []string { return RunList{d.Run}.Header() }

// Rows implements Tabular.
func (d RunDetail) Rows() [][]string { return RunList{d.Run}.Rows() }

// Render implements Renderable.
func (d RunDetail) Render(s *Styles) string {
	r := d.Run
	lines := []string{
		s.Title.Render("Run " + r.RunID),
		field(s, "document", r.DocumentID),
		field(s, "status", s.Status(r.Status).Render(string(r.Status))),
		field(s, "stage", string(r.CurrentStage)),
		field(s, "policy set", r.PolicySetID),
	}
	if r.PolicyVersion != "" {
		lines = append(lines, field(s, "policy version", r.PolicyVersion))
	}
	if r.ExternalSharing {
		lines = append(lines, field(s, "sharing", "external"))
	}
	if out := r.Output(model.StageClassify); out != nil && out.Classification != nil {
		c := out.Classification
		lines = append(lines, field(s, "classified", fmt.Sprintf("%s, %s sensitivity (%.2f)",
			c.DocType, s.Risk(c.SensitivityLevel).Render(string(c.SensitivityLevel)), c.Confidence)))
	}
	if out := r.Output(model.StageReview); out != nil && out.Review != nil {
		lines = append(lines, field(s, "overall risk", s.Risk(out.Review.OverallRisk).Render(string(out.Review.OverallRisk))))
	}
	if r.PendingHITLID != "" {
		lines = append(lines, field(s, "awaiting", s.Warning.Render(r.PendingHITLID)))
	}
	if r.FinalOutput != nil {
		lines = append(lines, field(s, "redactions", strconv.Itoa(r.FinalOutput.RedactionsCount)))
	}
	if r.Failure != nil {
		lines = append(lines, field(s, "failure", s.Error.Render(fmt.Sprintf("%s at %s: %s", r.Failure.Kind, r.Failure.Stage, r.Failure.Message))))
	}
	return s.Box.Render(strings.Join(lines, "\n"))
}

// ItemList is a set of HITL items shown as a queue.
type ItemList []model.HITLItem

// Header implements Tabular.
func (l ItemList) Header() []string {
	return []string{"hitl_id", "item_id", "run_id", "stage", "item_type", "clause_id", "risk_level", "status", "description"}
}

// Rows implements Tabular.
func (l ItemList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, it := range l {
		rows = append(rows, []string{
			it.HITLID,
			it.ItemID,
			it.RunID,
			string(it.Stage),
			it.ItemType,
			it.Payload.ClauseID,
			string(it.Payload.RiskLevel),
			string(it.Status),
			it.Payload.Description,
		})
	}
	return rows
}

// Render implements Renderable.
func (l ItemList) Render(s *Styles) string {
	if len(l) == 0 {
		return s.Muted.Render("hitl queue is empty")
	}
	var b strings.Builder
	hitlID := ""
	for _, it := range l {
		if it.HITLID != hitlID {
			if hitlID != "" {
				b.WriteByte('\n')
			}
			hitlID = it.HITLID
			fmt.Fprintf(&b, "%s %s\n", s.Title.Render(hitlID), s.Muted.Render(fmt.Sprintf("run %s, %s", it.RunID, it.Stage)))
		}
		b.WriteString(renderItem(s, it))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// BatchDetail shows one HITL batch.
type BatchDetail struct {
	*model.HITLBatch
}

// Header implements Tabular.
func (d BatchDetail) Header() []string { return ItemList(d.Items).Header() }

// Rows implements Tabular.
func (d BatchDetail) Rows() [][]string { return ItemList(d.Items).Rows() }

// Render implements Renderable.
func (d BatchDetail) Render(s *Styles) string {
	lines := []string{
		s.Title.Render("HITL " + d.HITLID),
		field(s, "run", d.RunID),
		field(s, "stage", string(d.Stage)),
		field(s, "created", d.CreatedAt.Format(timeLayout)),
	}
	if d.ResolvedAt != nil {
		lines = append(lines, field(s, "resolved", d.ResolvedAt.Format(timeLayout)))
	}
	lines = append(lines, "")
	for _, it := range d.Items {
		line := renderItem(s, it)
		if it.Status != model.HITLPending {
			line += s.Muted.Render(fmt.Sprintf("\n      %s by %s: %s", it.Status, it.DecidedBy, it.Rationale))
		}
		lines = append(lines, line)
	}
	return s.Box.Render(strings.Join(lines, "\n"))
}

// AuditTrail is a run's ledger shown as a timeline.
type AuditTrail []*model.AuditEntry

// Render implements Renderable.
func (t AuditTrail) Render(s *Styles) string {
	if len(t) == 0 {
		return s.Muted.Render("no audit entries")
	}
	var b strings.Builder
	for i, e := range t {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s %s %s  %s",
			s.Muted.Render(fmt.Sprintf("%4d", e.Sequence)),
			e.Timestamp.Format(timeLayout),
			s.Label.Render(string(e.Action)),
			s.Muted.Render(actorOrSystem(e.Actor)),
			string(e.Details),
		)
	}
	return b.String()
}

// Document is exported document content.
type Document struct {
	RunID       string `json:"run_id"`
	Kind        string `json:"kind"`
	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
}

// Render implements Renderable. Redlines are rendered with insertions and
// removals highlighted.
func (d Document) Render(s *Styles) string {
	title := s.Title.Render(fmt.Sprintf("%s %s", d.Kind, d.RunID)) + " " + s.Muted.Render(d.ContentHash)
	body := d.Content
	if d.Kind == "redline" {
		body = RenderRedline(s, d.Content)
	}
	return title + "\n\n" + body
}

var redlineMarkup = regexp.MustCompile(`(?s)\{-(.*?)-\}|\{\+(.*?)\+\}|\[\^(\d+)\]`)

const footnoteRule = "\n---\n"

// RenderRedline styles inline {-removed-} and {+inserted+} markup and the
// [^n] change footnotes of a redline document.
func RenderRedline(s *Styles, doc string) string {
	body, notes := doc, ""
	if i := strings.LastIndex(doc, footnoteRule); i >= 0 {
		body, notes = doc[:i], doc[i+len(footnoteRule):]
	}

	body = redlineMarkup.ReplaceAllStringFunc(body, func(m string) string {
		sub := redlineMarkup.FindStringSubmatch(m)
		switch {
		case strings.HasPrefix(m, "{-"):
			return s.Removed.Render(sub[1])
		case strings.HasPrefix(m, "{+"):
			return s.Added.Render(sub[2])
		default:
			return s.Footnote.Render("[" + sub[3] + "]")
		}
	})
	if notes == "" {
		return body
	}

	lines := strings.Split(strings.TrimRight(notes, "\n"), "\n")
	for i, line := range lines {
		lines[i] = s.Footnote.Render(line)
	}
	return body + "\n\n" + strings.Join(lines, "\n")
}

func renderItem(s *Styles, it model.HITLItem) string {
	where := it.Payload.ClauseID
	if where == "" {
		where = "document"
	}
	risk := ""
	if it.Payload.RiskLevel != "" {
		risk = " " + s.Risk(it.Payload.RiskLevel).Render(string(it.Payload.RiskLevel))
	}
	return fmt.Sprintf("  %s %s %s%s\n      %s",
		s.Label.Render(it.ItemID),
		it.ItemType,
		s.Muted.Render("("+where+")"),
		risk,
		it.Payload.Description,
	)
}

func field(s *Styles, name, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.Muted.Width(14).Render(name), value)
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return "system"
	}
	return actor
}

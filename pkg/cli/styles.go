package cli

import (
	"github.com/charmbracelet/lipgloss"

	"mercator-hq/docguard/pkg/model"
)

// Theme is the colour palette used for terminal output.
type Theme struct {
	Accent  lipgloss.Color
	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Added   lipgloss.Color
	Removed lipgloss.Color
	Border  lipgloss.Color
}

// DefaultTheme returns the default palette.
func DefaultTheme() *Theme {
	return &Theme{
		Accent:  lipgloss.Color("#7C3AED"),
		Muted:   lipgloss.Color("#6C7086"),
		Success: lipgloss.Color("#A6E3A1"),
		Warning: lipgloss.Color("#F9E2AF"),
		Error:   lipgloss.Color("#F38BA8"),
		Added:   lipgloss.Color("#40A02B"),
		Removed: lipgloss.Color("#D20F39"),
		Border:  lipgloss.Color("#45475A"),
	}
}

// Styles holds the lipgloss styles derived from a Theme.
type Styles struct {
	theme *Theme

	Title    lipgloss.Style
	Label    lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Added    lipgloss.Style
	Removed  lipgloss.Style
	Footnote lipgloss.Style
	Box      lipgloss.Style
}

// NewStyles creates styles from a theme. A nil theme selects DefaultTheme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Styles{
		theme:    theme,
		Title:    lipgloss.NewStyle().Bold(true).Foreground(theme.Accent),
		Label:    lipgloss.NewStyle().Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(theme.Muted),
		Success:  lipgloss.NewStyle().Foreground(theme.Success),
		Warning:  lipgloss.NewStyle().Foreground(theme.Warning),
		Error:    lipgloss.NewStyle().Foreground(theme.Error),
		Added:    lipgloss.NewStyle().Foreground(theme.Added).Underline(true),
		Removed:  lipgloss.NewStyle().Foreground(theme.Removed).Strikethrough(true),
		Footnote: lipgloss.NewStyle().Foreground(theme.Muted).Italic(true),
		Box: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
	}
}

// Theme returns the palette the styles were built from.
func (s *Styles) Theme() *Theme {
	return s.theme
}

// Risk returns the style for a risk level.
func (s *Styles) Risk(level model.RiskLevel) lipgloss.Style {
	switch level {
	case model.RiskHigh:
		return s.Error
	case model.RiskMedium:
		return s.Warning
	default:
		return s.Success
	}
}

// Status returns the style for a run status.
func (s *Styles) Status(status model.RunStatus) lipgloss.Style {
	switch status {
	case model.StatusCompleted:
		return s.Success
	case model.StatusFailed:
		return s.Error
	case model.StatusAwaitingHITL:
		return s.Warning
	default:
		return s.Muted
	}
}

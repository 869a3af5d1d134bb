package report

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#F87171") // Red
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
)

// styles are bound to a renderer so that colour support is detected from the
// destination writer rather than from os.Stdout.
type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	good    lipgloss.Style
	bad     lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
	section lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title: r.NewStyle().
			Bold(true).
			Foreground(primaryColor),
		label: r.NewStyle().
			Foreground(mutedColor).
			Width(18),
		value:   r.NewStyle().Bold(true),
		good:    r.NewStyle().Foreground(successColor),
		bad:     r.NewStyle().Foreground(errorColor).Bold(true),
		warn:    r.NewStyle().Foreground(warningColor),
		muted:   r.NewStyle().Foreground(mutedColor),
		section: r.NewStyle().PaddingLeft(2),
	}
}

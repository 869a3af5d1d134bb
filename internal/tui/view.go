package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#A78BFA")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#F87171")
	mutedColor   = lipgloss.Color("#9CA3AF")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	spinnerStyle = lipgloss.NewStyle().Foreground(primaryColor)
	filledStyle  = lipgloss.NewStyle().Foreground(successColor)
	emptyStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	blockedStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	helpStyle    = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)

const (
	defaultBarWidth = 30
	maxBarWidth     = 60
)

// View renders the current snapshot.
func (m Model) View() string {
	s := m.snapshot
	var b strings.Builder

	status := m.spinner.View()
	switch {
	case m.done && m.err != nil:
		status = errorStyle.Render("✗")
	case m.done:
		status = filledStyle.Render("✓")
	}
	b.WriteString(fmt.Sprintf("%s %s\n\n", status, titleStyle.Render(m.title)))

	b.WriteString(fmt.Sprintf("%s %d/%d (peak %d)\n", m.bar(s.Size, s.Capacity), s.Size, s.Capacity, m.peak))
	b.WriteString(fmt.Sprintf("put %d  get %d\n", s.Puts, s.Gets))

	blocked := fmt.Sprintf("blocked producers %d  consumers %d", s.BlockedPutters, s.BlockedGetters)
	if s.BlockedPutters > 0 || s.BlockedGetters > 0 {
		blocked = blockedStyle.Render(blocked)
	}
	b.WriteString(blocked + "\n")
	if s.Closed {
		b.WriteString(emptyStyle.Render("buffer closed, draining") + "\n")
	}

	if m.done {
		if m.err != nil {
			b.WriteString("\n" + errorStyle.Render(m.err.Error()))
		} else if m.summary != nil {
			b.WriteString(fmt.Sprintf("\nconsumed %d of %d items", m.summary.Consumed, m.summary.Produced))
		}
	}

	view := boxStyle.Render(strings.TrimRight(b.String(), "\n"))
	if !m.done {
		view += "\n" + helpStyle.Render("q to stop")
	}
	return view + "\n"
}

func (m Model) bar(size, capacity int) string {
	width := defaultBarWidth
	if m.width > 0 {
		width = min(max(m.width-30, 10), maxBarWidth)
	}
	if capacity <= 0 {
		return emptyStyle.Render(strings.Repeat("░", width))
	}
	filled := size * width / capacity
	if size > 0 && filled == 0 {
		filled = 1
	}
	return filledStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", width-filled))
}

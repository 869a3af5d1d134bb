// Package tui renders a live view of a pipeline run: buffer occupancy,
// throughput and how many callers are blocked on either side.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/bufferlab/internal/buffer"
	"github.com/Iron-Ham/bufferlab/internal/pipeline"
)

// DefaultRefresh is how often the buffer is sampled.
const DefaultRefresh = 100 * time.Millisecond

// StatsSource returns a current buffer snapshot. It must be safe to call
// from the UI goroutine while the run is in progress.
type StatsSource func() buffer.Stats

// Model is the bubbletea model for the watch view.
type Model struct {
	title    string
	source   StatsSource
	refresh  time.Duration
	spinner  spinner.Model
	snapshot buffer.Stats
	peak     int
	width    int

	done     bool
	quitting bool
	summary  *pipeline.Summary
	err      error
}

// NewModel creates a watch model sampling source every refresh interval.
func NewModel(title string, source StatsSource, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return Model{
		title:    title,
		source:   source,
		refresh:  refresh,
		spinner:  sp,
		snapshot: source(),
	}
}

// Init starts the spinner and the sampling ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick(m.refresh))
}

// Update handles ticks, key presses and completion.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.sample()
		return m, tick(m.refresh)

	case DoneMsg:
		m.done = true
		m.summary = msg.Summary
		m.err = msg.Err
		m.sample()
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) sample() {
	m.snapshot = m.source()
	if m.snapshot.Size > m.peak {
		m.peak = m.snapshot.Size
	}
}

// Done reports whether the run finished.
func (m Model) Done() bool { return m.done }

// Quitting reports whether the user asked to leave before the run finished.
func (m Model) Quitting() bool { return m.quitting && !m.done }

// Result returns the run outcome delivered by DoneMsg.
func (m Model) Result() (*pipeline.Summary, error) { return m.summary, m.err }

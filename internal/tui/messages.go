package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/bufferlab/internal/pipeline"
)

// tickMsg is sent periodically to refresh the buffer snapshot.
type tickMsg time.Time

// DoneMsg reports that the watched run has finished.
type DoneMsg struct {
	Summary *pipeline.Summary
	Err     error
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

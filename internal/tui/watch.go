package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/bufferlab/internal/errors"
	"github.com/Iron-Ham/bufferlab/internal/pipeline"
)

// RunFunc executes the watched run.
type RunFunc func(ctx context.Context) (*pipeline.Summary, error)

// Watch runs fn in the background while showing the live view. If the user
// quits early the run is cancelled and Watch still waits for it to return.
func Watch(ctx context.Context, title string, source StatsSource, fn RunFunc, opts ...tea.ProgramOption) (*pipeline.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	prog := tea.NewProgram(NewModel(title, source, DefaultRefresh), opts...)

	type result struct {
		summary *pipeline.Summary
		err     error
	}
	results := make(chan result, 1)
	go func() {
		sum, err := fn(ctx)
		results <- result{sum, err}
		prog.Send(DoneMsg{Summary: sum, Err: err})
	}()

	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-results
		return nil, err
	}

	// Covers both normal completion and an early quit.
	cancel()
	r := <-results
	return r.summary, r.err
}

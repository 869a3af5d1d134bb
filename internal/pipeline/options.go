package pipeline

import (
	"github.com/Iron-Ham/bufferlab/internal/buffer"
	"github.com/Iron-Ham/bufferlab/internal/event"
	"github.com/Iron-Ham/bufferlab/internal/logging"
	"github.com/Iron-Ham/bufferlab/internal/pool"
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithBus publishes stage and close events on bus.
func WithBus(bus *event.Bus) Option {
	return func(r *Runner) { r.bus = bus }
}

// WithBufferObserver attaches o to the buffer.
func WithBufferObserver(o buffer.Observer) Option {
	return func(r *Runner) { r.bufferObserver = o }
}

// WithPoolObserver attaches o to both pools.
func WithPoolObserver(o pool.Observer) Option {
	return func(r *Runner) { r.poolObserver = o }
}

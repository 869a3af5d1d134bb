package pool

import (
	"fmt"

	"github.com/Iron-Ham/bufferlab/internal/logging"
)

const defaultPoolName = "worker"

// Namer produces the name of worker i.
type Namer func(i int) string

// PrefixNamer names workers "<prefix>-0", "<prefix>-1", ...
func PrefixNamer(prefix string) Namer {
	return func(i int) string { return fmt.Sprintf("%s-%d", prefix, i) }
}

// Option configures a Pool.
type Option func(*options)

type options struct {
	name       string
	iterations int
	namer      Namer
	executor   Executor
	logger     *logging.Logger
	observer   Observer
}

func defaultOptions() options {
	return options{
		name:   defaultPoolName,
		logger: logging.NopLogger(),
	}
}

// WithName sets the pool name used in logs, errors and default worker names.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithIterations gives each worker a fixed number of units of work.
// Zero (the default) runs until the unit of work signals a stop.
func WithIterations(n int) Option {
	return func(o *options) { o.iterations = n }
}

// WithNamer overrides worker naming.
func WithNamer(n Namer) Option {
	return func(o *options) { o.namer = n }
}

// WithExecutor sets the execution unit backing the workers.
func WithExecutor(e Executor) Option {
	return func(o *options) { o.executor = e }
}

// WithLogger sets the pool logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver attaches a lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/bufferlab/internal/errors"
	"github.com/Iron-Ham/bufferlab/internal/logging"
)

// ErrStop may be returned by a unit of work to end its worker cleanly.
var ErrStop = errors.New("stop worker")

// State is the lifecycle position of a Pool.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateJoined  State = "joined"
)

// Worker identifies one concurrent execution unit of a pool.
type Worker struct {
	ID   int
	Name string
}

// UnitOfWork is invoked repeatedly by each worker against the shared
// resource. Returning ErrStop or an end-of-stream error stops the worker
// cleanly; any other error, or a panic, is captured as a WorkerFailure.
type UnitOfWork[R any] func(ctx context.Context, w Worker, resource R) error

// Observer receives worker lifecycle notifications.
type Observer interface {
	WorkerStarted(pool, worker string)
	WorkerStopped(pool, worker string, iterations int, err error)
}

// Pool runs a fixed set of workers against one shared resource. The pool
// owns its Worker handles but never the resource.
type Pool[R any] struct {
	name       string
	resource   R
	work       UnitOfWork[R]
	iterations int
	exec       Executor
	logger     *logging.Logger
	observer   Observer

	workers []Worker

	mu       sync.Mutex
	state    State
	finished []bool
	failures []error
	allDone  chan struct{}
}

// New creates a pool of size workers bound to resource. Workers are named at
// construction time and start running on Start.
func New[R any](size int, resource R, work UnitOfWork[R], opts ...Option) (*Pool[R], error) {
	if size < 1 {
		return nil, errors.NewValidationError("pool size must be at least 1").
			WithField("size").WithValue(size)
	}
	if work == nil {
		return nil, errors.NewValidationError("unit of work must not be nil").WithField("work")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.iterations < 0 {
		return nil, errors.NewValidationError("iterations must not be negative").
			WithField("iterations").WithValue(o.iterations)
	}
	if o.namer == nil {
		o.namer = PrefixNamer(o.name)
	}
	if o.executor == nil {
		o.executor = NewGoroutineExecutor()
	}

	workers := make([]Worker, size)
	for i := range workers {
		workers[i] = Worker{ID: i, Name: o.namer(i)}
	}

	return &Pool[R]{
		name:       o.name,
		resource:   resource,
		work:       work,
		iterations: o.iterations,
		exec:       o.executor,
		logger:     o.logger.WithPool(o.name),
		observer:   o.observer,
		workers:    workers,
		state:      StateIdle,
		finished:   make([]bool, size),
		allDone:    make(chan struct{}),
	}, nil
}

// Name returns the pool name.
func (p *Pool[R]) Name() string {
	return p.name
}

// Workers returns the pool's worker handles.
func (p *Pool[R]) Workers() []Worker {
	out := make([]Worker, len(p.workers))
	copy(out, p.workers)
	return out
}

// State returns the current lifecycle state.
func (p *Pool[R]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start spawns every worker. Each one loops the unit of work until its
// iteration budget is spent, it returns a stop sentinel, ctx is done, or it
// fails. Start may be called once.
func (p *Pool[R]) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", errors.ErrPoolStarted, p.name)
	}
	p.state = StateRunning
	p.mu.Unlock()

	p.logger.Debug("starting workers", "size", len(p.workers), "iterations", p.iterations)

	for _, w := range p.workers {
		p.exec.Go(func() {
			p.runWorker(ctx, w)
		})
	}

	// Exits once every worker has returned; worker panics are caught in
	// runWorker, so Wait does not re-raise.
	go func() {
		p.exec.Wait()
		close(p.allDone)
	}()
	return nil
}

// JoinAll blocks until every worker has terminated and returns the first
// worker failure, if any. A timeout greater than zero bounds the wait: on
// expiry a *errors.JoinTimeoutError naming the still-running workers is
// returned and the pool keeps tracking them, so JoinAll may be called again.
func (p *Pool[R]) JoinAll(timeout time.Duration) error {
	p.mu.Lock()
	if p.state == StateIdle {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", errors.ErrPoolNotStarted, p.name)
	}
	p.mu.Unlock()

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-p.allDone:
		case <-timer.C:
			pending := p.Running()
			p.logger.Warn("join timed out", "timeout", timeout.String(), "pending", pending)
			return errors.NewJoinTimeoutError(p.name, timeout, pending)
		}
	} else {
		<-p.allDone
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateJoined {
		p.state = StateJoined
		p.logger.Debug("pool joined", "failures", len(p.failures))
	}
	if len(p.failures) > 0 {
		return p.failures[0]
	}
	return nil
}

// Running returns the names of workers that have not terminated yet.
func (p *Pool[R]) Running() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var names []string
	for i, w := range p.workers {
		if !p.finished[i] {
			names = append(names, w.Name)
		}
	}
	return names
}

// Failures returns every captured worker failure in completion order.
func (p *Pool[R]) Failures() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]error, len(p.failures))
	copy(out, p.failures)
	return out
}

func (p *Pool[R]) runWorker(ctx context.Context, w Worker) {
	log := p.logger.WithWorker(w.Name)

	var (
		iter int
		err  error
		pc   panics.Catcher
	)
	// Observer and logger callbacks are worker-local too: a panic in them is
	// captured like one in the unit of work.
	pc.Try(func() {
		log.Debug("worker started")
		if p.observer != nil {
			p.observer.WorkerStarted(p.name, w.Name)
		}
		err = p.loop(ctx, w, &iter)
	})

	var failures []error
	if f := p.newFailure(w, iter, err, pc.Recovered()); f != nil {
		failures = append(failures, f)
	}

	var stopped panics.Catcher
	stopped.Try(func() {
		var failure error
		if len(failures) > 0 {
			failure = failures[0]
			log.Error("worker failed", "error", failure.Error(), "iteration", iter)
		} else {
			log.Debug("worker stopped", "iterations", iter)
		}
		if p.observer != nil {
			p.observer.WorkerStopped(p.name, w.Name, iter, failure)
		}
	})
	if f := p.newFailure(w, iter, nil, stopped.Recovered()); f != nil {
		failures = append(failures, f)
	}

	p.mu.Lock()
	p.finished[w.ID] = true
	p.failures = append(p.failures, failures...)
	p.mu.Unlock()
}

// newFailure wraps a recovered panic or a work error, preferring the panic.
func (p *Pool[R]) newFailure(w Worker, iter int, err error, r *panics.Recovered) error {
	switch {
	case r != nil:
		return errors.NewWorkerFailure(p.name, w.Name, r.AsError()).
			WithIteration(iter).
			WithStack(string(r.Stack))
	case err != nil:
		return errors.NewWorkerFailure(p.name, w.Name, err).WithIteration(iter)
	}
	return nil
}

// loop runs the unit of work. On return *done holds the number of completed
// iterations, or the index of the failing one.
func (p *Pool[R]) loop(ctx context.Context, w Worker, done *int) error {
	for i := 0; p.iterations == 0 || i < p.iterations; i++ {
		*done = i
		if ctx.Err() != nil {
			return nil
		}
		if err := p.work(ctx, w, p.resource); err != nil {
			if errors.Is(err, ErrStop) || errors.IsEndOfStream(err) {
				return nil
			}
			return err
		}
	}
	*done = p.iterations
	return nil
}

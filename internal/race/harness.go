// Package race runs the same increment/decrement workload against a shared
// counter twice, first without and then with a lock, so that lost updates
// in the unlocked run can be compared with the exact locked result and the
// cost of locking can be measured.
package race

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Iron-Ham/bufferlab/internal/counter"
	"github.com/Iron-Ham/bufferlab/internal/errors"
	"github.com/Iron-Ham/bufferlab/internal/event"
	"github.com/Iron-Ham/bufferlab/internal/logging"
	"github.com/Iron-Ham/bufferlab/internal/pool"
)

// State is the harness state machine position.
type State string

const (
	StateConfigured       State = "configured"
	StateRunningUnlocked  State = "running_unlocked"
	StateReportedUnlocked State = "reported_unlocked"
	StateRunningLocked    State = "running_locked"
	StateReportedLocked   State = "reported_locked"
	StateDone             State = "done"
)

// Phase names used in results, logs and events.
const (
	PhaseUnlocked = "unlocked"
	PhaseLocked   = "locked"
)

// DefaultIterations matches the classic two-process demonstration.
const DefaultIterations = 100000

// Config sizes the workload.
type Config struct {
	// Iterations is the number of operations each worker performs.
	Iterations int
	// Incrementers and Decrementers are the pool sizes.
	Incrementers int
	Decrementers int
	// JoinTimeout bounds each pool join; zero waits indefinitely.
	JoinTimeout time.Duration
	// RaceWindow yields between the read and the write of unlocked updates,
	// which makes lost updates reproducible even on a single CPU. Without it
	// a worker usually finishes its whole loop inside one time slice and the
	// unlocked phase rarely diverges.
	RaceWindow bool
}

// DefaultConfig returns one incrementer and one decrementer performing
// DefaultIterations operations each, with the race window open.
func DefaultConfig() Config {
	return Config{
		Iterations:   DefaultIterations,
		Incrementers: 1,
		Decrementers: 1,
		RaceWindow:   true,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Iterations < 1:
		return errors.NewValidationError("iterations must be at least 1").WithField("iterations").WithValue(c.Iterations)
	case c.Incrementers < 1:
		return errors.NewValidationError("incrementers must be at least 1").WithField("incrementers").WithValue(c.Incrementers)
	case c.Decrementers < 1:
		return errors.NewValidationError("decrementers must be at least 1").WithField("decrementers").WithValue(c.Decrementers)
	case c.JoinTimeout < 0:
		return errors.NewValidationError("join timeout must not be negative").WithField("join_timeout").WithValue(c.JoinTimeout)
	}
	return nil
}

// Expected returns the final value a correct run produces.
func (c Config) Expected() int64 {
	return int64(c.Incrementers-c.Decrementers) * int64(c.Iterations)
}

// Harness drives both phases. A Harness is single-use.
type Harness struct {
	cfg          Config
	logger       *logging.Logger
	bus          *event.Bus
	poolObserver pool.Observer

	mu    sync.Mutex
	state State
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the harness logger.
func WithLogger(l *logging.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithBus publishes state changes and phase outcomes on bus.
func WithBus(bus *event.Bus) Option {
	return func(h *Harness) { h.bus = bus }
}

// WithPoolObserver attaches an observer to every pool the harness creates.
func WithPoolObserver(o pool.Observer) Option {
	return func(h *Harness) { h.poolObserver = o }
}

// New validates cfg and returns a harness in the Configured state.
func New(cfg Config, opts ...Option) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Harness{
		cfg:    cfg,
		logger: logging.NopLogger(),
		state:  StateConfigured,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.WithComponent("race")
	return h, nil
}

// State returns the current state.
func (h *Harness) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Harness) transition(next State) {
	h.mu.Lock()
	prev := h.state
	h.state = next
	h.mu.Unlock()

	h.logger.Debug("state changed", "from", string(prev), "to", string(next))
	h.bus.Publish(event.NewPhaseChangedEvent(string(prev), string(next)))
}

// Run executes the unlocked phase followed by the locked phase and returns
// both outcomes. A failure inside a phase is recorded on that phase's result;
// the other phase still runs. The returned error is non-nil only when the
// harness was already used or ctx ended.
func (h *Harness) Run(ctx context.Context) (*Result, error) {
	if h.State() != StateConfigured {
		return nil, fmt.Errorf("race harness already ran (state %s)", h.State())
	}

	res := &Result{Config: h.cfg}

	h.transition(StateRunningUnlocked)
	res.Unlocked = h.runPhase(ctx, PhaseUnlocked, nil)
	h.transition(StateReportedUnlocked)

	h.transition(StateRunningLocked)
	res.Locked = h.runPhase(ctx, PhaseLocked, &sync.Mutex{})
	h.transition(StateReportedLocked)

	h.transition(StateDone)
	return res, ctx.Err()
}

// Trials repeats the unlocked phase n times and counts how many runs ended
// away from the expected value.
func (h *Harness) Trials(ctx context.Context, n int) (*TrialSummary, error) {
	if n < 1 {
		return nil, errors.NewValidationError("trials must be at least 1").WithField("trials").WithValue(n)
	}
	sum := &TrialSummary{Expected: h.cfg.Expected()}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		r := h.runPhase(ctx, fmt.Sprintf("%s-trial-%d", PhaseUnlocked, i), nil)
		if r.Err != nil {
			return sum, r.Err
		}
		sum.add(r)
	}
	return sum, nil
}

// runPhase runs both pools against a fresh counter guarded by lock (nil for
// the unlocked phase) and joins them.
func (h *Harness) runPhase(ctx context.Context, name string, lock sync.Locker) PhaseResult {
	log := h.logger.WithPhase(name)
	locked := lock != nil

	c := counter.NewWithLocker(0, lock)
	if !locked && h.cfg.RaceWindow {
		c.WithRaceWindow(runtime.Gosched)
	}

	phaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := PhaseResult{
		Name:     name,
		Locked:   locked,
		Expected: h.cfg.Expected(),
	}

	inc, err := h.newPool(c, "incrementer", h.cfg.Incrementers, (*counter.Counter).Increment, log)
	if err != nil {
		result.Err = err
		return result
	}
	dec, err := h.newPool(c, "decrementer", h.cfg.Decrementers, (*counter.Counter).Decrement, log)
	if err != nil {
		result.Err = err
		return result
	}

	log.Info("phase started",
		"iterations", h.cfg.Iterations,
		"incrementers", h.cfg.Incrementers,
		"decrementers", h.cfg.Decrementers)

	start := time.Now()
	_ = inc.Start(phaseCtx)
	_ = dec.Start(phaseCtx)

	incErr := h.join(inc, cancel)
	decErr := h.join(dec, cancel)
	result.Elapsed = time.Since(start)
	result.FinalValue = c.Value()

	for _, p := range []*pool.Pool[*counter.Counter]{inc, dec} {
		for _, f := range p.Failures() {
			var wf *errors.WorkerFailure
			if errors.As(f, &wf) {
				h.bus.Publish(event.NewWorkerFailedEvent(wf.Pool, wf.Worker, f))
			}
		}
	}

	if joined := errors.Join(incErr, decErr); joined != nil {
		result.Err = fmt.Errorf("%s phase: %w", name, joined)
	} else if ctx.Err() != nil {
		result.Err = fmt.Errorf("%s phase: %w", name, ctx.Err())
	}

	if result.Err != nil {
		log.Error("phase failed", "error", result.Err.Error())
	}
	log.Info("phase completed",
		"final_value", result.FinalValue,
		"expected", result.Expected,
		"elapsed", result.Elapsed.String())
	h.bus.Publish(event.NewPhaseCompletedEvent(name, locked, result.FinalValue, result.Elapsed, result.Err))
	return result
}

func (h *Harness) newPool(c *counter.Counter, name string, size int, op func(*counter.Counter), log *logging.Logger) (*pool.Pool[*counter.Counter], error) {
	opts := []pool.Option{
		pool.WithName(name),
		pool.WithIterations(h.cfg.Iterations),
		pool.WithLogger(log),
	}
	if h.poolObserver != nil {
		opts = append(opts, pool.WithObserver(h.poolObserver))
	}
	return pool.New(size, c, func(_ context.Context, _ pool.Worker, c *counter.Counter) error {
		op(c)
		return nil
	}, opts...)
}

// join waits for p within the configured timeout. On expiry the phase is
// cancelled and the pool is joined again so no worker outlives the phase.
func (h *Harness) join(p *pool.Pool[*counter.Counter], cancel context.CancelFunc) error {
	err := p.JoinAll(h.cfg.JoinTimeout)
	if !errors.Is(err, errors.ErrJoinTimeout) {
		return err
	}
	cancel()
	if rest := p.JoinAll(0); rest != nil {
		return errors.Join(err, rest)
	}
	return err
}

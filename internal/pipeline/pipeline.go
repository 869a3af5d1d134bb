package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/bufferlab/internal/buffer"
	"github.com/Iron-Ham/bufferlab/internal/errors"
	"github.com/Iron-Ham/bufferlab/internal/event"
	"github.com/Iron-Ham/bufferlab/internal/logging"
	"github.com/Iron-Ham/bufferlab/internal/pool"
)

// Runner owns the buffer and both pools of one run.
type Runner struct {
	cfg    Config
	buf    *buffer.Buffer[Pair]
	logger *logging.Logger
	bus    *event.Bus

	bufferObserver buffer.Observer
	poolObserver   pool.Observer

	produced    atomic.Int64
	consumed    atomic.Int64
	produceSum  atomic.Int64
	consumeSum  atomic.Int64
	perConsumer []atomic.Int64
}

// New validates cfg and allocates the buffer.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:         cfg,
		logger:      logging.NopLogger(),
		perConsumer: make([]atomic.Int64, cfg.Consumers),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("pipeline")

	var bufOpts []buffer.Option
	if r.bufferObserver != nil {
		bufOpts = append(bufOpts, buffer.WithObserver(r.bufferObserver))
	}
	buf, err := buffer.New[Pair](cfg.Capacity, bufOpts...)
	if err != nil {
		return nil, err
	}
	r.buf = buf
	return r, nil
}

// Stats returns a snapshot of the buffer. It is safe to call while Run is
// in progress.
func (r *Runner) Stats() buffer.Stats {
	return r.buf.Stats()
}

// Run starts both stages and blocks until they are joined. The summary is
// returned even when a stage failed.
func Run(ctx context.Context, cfg Config, opts ...Option) (*Summary, error) {
	r, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// Run starts both stages and blocks until they are joined.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	producers, err := r.newProducers()
	if err != nil {
		return nil, err
	}
	consumers, err := r.newConsumers()
	if err != nil {
		return nil, err
	}

	r.logger.Info("pipeline started",
		"capacity", r.cfg.Capacity,
		"producers", r.cfg.Producers,
		"consumers", r.cfg.Consumers,
		"items_per_producer", r.cfg.ItemsPerProducer)

	start := time.Now()
	if err := consumers.Start(ctx); err != nil {
		return nil, err
	}
	if err := producers.Start(ctx); err != nil {
		cancel()
		r.buf.Close()
		_ = consumers.JoinAll(0)
		return nil, err
	}

	prodErr := r.joinStage(producers, StageProducers, r.produced.Load, start, cancel)

	stats := r.buf.Stats()
	r.buf.Close()
	r.logger.Debug("buffer closed", "remaining", stats.Size)
	r.bus.Publish(event.NewBufferClosedEvent(stats.Size, stats.Puts, stats.Gets))

	consErr := r.joinStage(consumers, StageConsumers, r.consumed.Load, start, cancel)

	sum := &Summary{
		Produced:         r.produced.Load(),
		Consumed:         r.consumed.Load(),
		PerConsumer:      make(map[string]int64, len(r.perConsumer)),
		Checksum:         r.consumeSum.Load(),
		ExpectedChecksum: r.produceSum.Load(),
		Elapsed:          time.Since(start),
		Buffer:           r.buf.Stats(),
	}
	for _, w := range consumers.Workers() {
		sum.PerConsumer[w.Name] = r.perConsumer[w.ID].Load()
	}

	r.logger.Info("pipeline completed",
		"produced", sum.Produced,
		"consumed", sum.Consumed,
		"elapsed", sum.Elapsed.String())

	if err := errors.Join(prodErr, consErr); err != nil {
		return sum, err
	}
	return sum, ctx.Err()
}

// joinStage joins p, cancelling the run if the join times out so that no
// worker outlives it, and publishes the stage outcome.
func (r *Runner) joinStage(p *pool.Pool[*buffer.Buffer[Pair]], stage string, items func() int64, start time.Time, cancel context.CancelFunc) error {
	err := p.JoinAll(r.cfg.JoinTimeout)
	if errors.Is(err, errors.ErrJoinTimeout) {
		cancel()
		// Consumers may be parked on an empty open buffer.
		r.buf.Close()
		if rest := p.JoinAll(0); rest != nil {
			err = errors.Join(err, rest)
		}
	}
	if err != nil {
		r.logger.Error("stage failed", "stage", stage, "error", err.Error())
		err = fmt.Errorf("%s: %w", stage, err)
	}
	for _, f := range p.Failures() {
		var wf *errors.WorkerFailure
		if errors.As(f, &wf) {
			r.bus.Publish(event.NewWorkerFailedEvent(wf.Pool, wf.Worker, f))
		}
	}
	r.bus.Publish(event.NewStageCompletedEvent(stage, items(), time.Since(start), err))
	return err
}

func (r *Runner) newProducers() (*pool.Pool[*buffer.Buffer[Pair]], error) {
	rngs := make([]*rand.Rand, r.cfg.Producers)
	for i := range rngs {
		rngs[i] = rand.New(rand.NewPCG(r.cfg.Seed, uint64(i)))
	}

	return pool.New(r.cfg.Producers, r.buf, func(ctx context.Context, w pool.Worker, b *buffer.Buffer[Pair]) error {
		rng := rngs[w.ID]
		item := Pair{X: 1 + rng.Int64N(r.cfg.MaxValue), Y: 1 + rng.Int64N(r.cfg.MaxValue)}
		if err := b.PutContext(ctx, item); err != nil {
			if ctx.Err() != nil {
				return pool.ErrStop
			}
			return err
		}
		r.produced.Add(1)
		r.produceSum.Add(item.Product())
		return pause(ctx, r.cfg.ProduceDelay)
	}, r.poolOptions(StageProducers, r.cfg.ItemsPerProducer)...)
}

func (r *Runner) newConsumers() (*pool.Pool[*buffer.Buffer[Pair]], error) {
	return pool.New(r.cfg.Consumers, r.buf, func(ctx context.Context, w pool.Worker, b *buffer.Buffer[Pair]) error {
		item, err := b.GetContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return pool.ErrStop
			}
			return err
		}
		r.consumed.Add(1)
		r.consumeSum.Add(item.Product())
		r.perConsumer[w.ID].Add(1)
		return pause(ctx, r.cfg.ConsumeDelay)
	}, r.poolOptions(StageConsumers, 0)...)
}

func (r *Runner) poolOptions(name string, iterations int) []pool.Option {
	opts := []pool.Option{
		pool.WithName(name),
		pool.WithIterations(iterations),
		pool.WithLogger(r.logger),
	}
	if r.poolObserver != nil {
		opts = append(opts, pool.WithObserver(r.poolObserver))
	}
	return opts
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return pool.ErrStop
	}
}

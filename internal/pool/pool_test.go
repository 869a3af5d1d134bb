package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/bufferlab/internal/buffer"
	"github.com/Iron-Ham/bufferlab/internal/errors"
)

type recordingObserver struct {
	mu      sync.Mutex
	started []string
	stopped map[string]int
	failed  map[string]error
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{stopped: map[string]int{}, failed: map[string]error{}}
}

func (o *recordingObserver) WorkerStarted(pool, worker string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, worker)
}

func (o *recordingObserver) WorkerStopped(pool, worker string, iterations int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped[worker] = iterations
	if err != nil {
		o.failed[worker] = err
	}
}

func TestNewValidation(t *testing.T) {
	noop := func(context.Context, Worker, int) error { return nil }

	tests := []struct {
		name string
		size int
		work UnitOfWork[int]
		opts []Option
	}{
		{"zero size", 0, noop, nil},
		{"nil work", 2, nil, nil},
		{"negative iterations", 2, noop, []Option{WithIterations(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, 0, tt.work, tt.opts...)
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("New() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestWorkerNames(t *testing.T) {
	noop := func(context.Context, Worker, int) error { return nil }

	p, err := New(3, 0, noop, WithName("producers"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := []string{"producers-0", "producers-1", "producers-2"}
	for i, w := range p.Workers() {
		if w.ID != i || w.Name != want[i] {
			t.Errorf("worker %d = %+v, want name %q", i, w, want[i])
		}
	}

	custom, _ := New(2, 0, noop, WithNamer(func(i int) string { return fmt.Sprintf("Thread %d", i) }))
	if got := custom.Workers()[1].Name; got != "Thread 1" {
		t.Errorf("custom name = %q, want %q", got, "Thread 1")
	}
}

func TestFixedIterations(t *testing.T) {
	var calls atomic.Int64
	obs := newRecordingObserver()

	p, err := New(4, &calls, func(_ context.Context, _ Worker, c *atomic.Int64) error {
		c.Add(1)
		return nil
	}, WithIterations(250), WithObserver(obs))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.JoinAll(0); err != nil {
		t.Fatalf("JoinAll: %v", err)
	}

	if got := calls.Load(); got != 1000 {
		t.Errorf("calls = %d, want 1000", got)
	}
	if p.State() != StateJoined {
		t.Errorf("State() = %s, want joined", p.State())
	}
	if len(obs.started) != 4 {
		t.Errorf("observer saw %d starts, want 4", len(obs.started))
	}
	for name, n := range obs.stopped {
		if n != 250 {
			t.Errorf("%s stopped after %d iterations, want 250", name, n)
		}
	}
}

func TestStopOnEndOfStream(t *testing.T) {
	buf, _ := buffer.New[int](4)
	for i := 0; i < 4; i++ {
		_ = buf.Put(i)
	}
	buf.Close()

	var got atomic.Int64
	p, _ := New(3, buf, func(_ context.Context, _ Worker, b *buffer.Buffer[int]) error {
		if _, err := b.Get(); err != nil {
			return err
		}
		got.Add(1)
		return nil
	}, WithName("consumers"))

	_ = p.Start(context.Background())
	if err := p.JoinAll(time.Second); err != nil {
		t.Fatalf("JoinAll: %v", err)
	}
	if got.Load() != 4 {
		t.Errorf("consumed %d items, want 4", got.Load())
	}
}

func TestStopSentinel(t *testing.T) {
	var n atomic.Int64
	p, _ := New(2, 0, func(context.Context, Worker, int) error {
		if n.Add(1) > 10 {
			return ErrStop
		}
		return nil
	})
	_ = p.Start(context.Background())
	if err := p.JoinAll(time.Second); err != nil {
		t.Fatalf("JoinAll: %v", err)
	}
}

func TestFailureDoesNotStopSiblings(t *testing.T) {
	boom := errors.New("boom")
	var healthy atomic.Int64

	p, _ := New(3, 0, func(_ context.Context, w Worker, _ int) error {
		if w.ID == 1 {
			return boom
		}
		healthy.Add(1)
		return nil
	}, WithName("mixed"), WithIterations(100))

	_ = p.Start(context.Background())
	err := p.JoinAll(time.Second)

	if !errors.Is(err, errors.ErrWorkerFailed) {
		t.Fatalf("JoinAll error = %v, want worker failure", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("JoinAll error = %v, want cause boom", err)
	}
	var wf *errors.WorkerFailure
	if !errors.As(err, &wf) {
		t.Fatal("expected *errors.WorkerFailure")
	}
	if wf.Worker != "mixed-1" || wf.Pool != "mixed" || wf.Iteration != 0 {
		t.Errorf("failure = %+v", wf)
	}
	if healthy.Load() != 200 {
		t.Errorf("healthy iterations = %d, want 200", healthy.Load())
	}
	if len(p.Running()) != 0 {
		t.Errorf("Running() = %v after join", p.Running())
	}
}

func TestPanicIsCaptured(t *testing.T) {
	p, _ := New(2, 0, func(_ context.Context, w Worker, _ int) error {
		if w.ID == 0 {
			var m map[string]int
			m["x"] = 1
		}
		return nil
	}, WithIterations(5))

	_ = p.Start(context.Background())
	err := p.JoinAll(time.Second)

	var wf *errors.WorkerFailure
	if !errors.As(err, &wf) {
		t.Fatalf("JoinAll error = %v, want *WorkerFailure", err)
	}
	if !wf.Panicked() {
		t.Error("expected failure to record the panic stack")
	}
	if wf.Worker != "worker-0" {
		t.Errorf("Worker = %q, want worker-0", wf.Worker)
	}
}

type panickingObserver struct {
	onStart bool
	stopped atomic.Int32
}

func (o *panickingObserver) WorkerStarted(_, worker string) {
	if o.onStart && worker == "worker-0" {
		panic("observer start")
	}
}

func (o *panickingObserver) WorkerStopped(_, _ string, _ int, _ error) {
	o.stopped.Add(1)
	panic("observer stop")
}

func TestObserverPanicIsCaptured(t *testing.T) {
	tests := []struct {
		name         string
		onStart      bool
		wantFailures int
		wantRuns     int64
	}{
		// Each worker's WorkerStopped panics.
		{"stop hook", false, 2, 6},
		// worker-0 never runs its unit of work, then WorkerStopped panics too.
		{"start and stop hooks", true, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var runs atomic.Int64
			obs := &panickingObserver{onStart: tt.onStart}
			p, _ := New(2, 0, func(_ context.Context, _ Worker, _ int) error {
				runs.Add(1)
				return nil
			}, WithIterations(3), WithObserver(obs))

			_ = p.Start(context.Background())
			err := p.JoinAll(5 * time.Second)

			var wf *errors.WorkerFailure
			if !errors.As(err, &wf) || !wf.Panicked() {
				t.Fatalf("JoinAll error = %v, want a panicked *WorkerFailure", err)
			}
			if got := len(p.Failures()); got != tt.wantFailures {
				t.Errorf("Failures() = %d, want %d", got, tt.wantFailures)
			}
			if got := runs.Load(); got != tt.wantRuns {
				t.Errorf("unit of work ran %d times, want %d", got, tt.wantRuns)
			}
			if got := obs.stopped.Load(); got != 2 {
				t.Errorf("WorkerStopped called %d times, want 2", got)
			}
			if p.State() != StateJoined || len(p.Running()) != 0 {
				t.Errorf("state = %s, running = %v", p.State(), p.Running())
			}
		})
	}
}

func TestAllFailuresRetained(t *testing.T) {
	p, _ := New(4, 0, func(_ context.Context, w Worker, _ int) error {
		return fmt.Errorf("failure from %d", w.ID)
	})
	_ = p.Start(context.Background())
	err := p.JoinAll(time.Second)
	if err == nil {
		t.Fatal("expected error")
	}

	failures := p.Failures()
	if len(failures) != 4 {
		t.Fatalf("Failures() = %d, want 4", len(failures))
	}
	if failures[0] != err {
		t.Error("JoinAll should return the first recorded failure")
	}
}

func TestJoinTimeoutThenRetry(t *testing.T) {
	release := make(chan struct{})
	p, _ := New(2, 0, func(_ context.Context, w Worker, _ int) error {
		if w.ID == 1 {
			<-release
		}
		return ErrStop
	}, WithName("slow"))

	_ = p.Start(context.Background())

	err := p.JoinAll(20 * time.Millisecond)
	var jt *errors.JoinTimeoutError
	if !errors.As(err, &jt) {
		t.Fatalf("JoinAll error = %v, want *JoinTimeoutError", err)
	}
	if !errors.IsRetryable(err) {
		t.Error("join timeout should be retryable")
	}
	if len(jt.Pending) != 1 || jt.Pending[0] != "slow-1" {
		t.Errorf("Pending = %v, want [slow-1]", jt.Pending)
	}
	if p.State() != StateRunning {
		t.Errorf("State() = %s, want running", p.State())
	}

	close(release)
	if err := p.JoinAll(time.Second); err != nil {
		t.Fatalf("second JoinAll: %v", err)
	}
	if p.State() != StateJoined {
		t.Errorf("State() = %s, want joined", p.State())
	}
	// Joining a joined pool is a no-op.
	if err := p.JoinAll(0); err != nil {
		t.Fatalf("third JoinAll: %v", err)
	}
}

func TestLifecycleErrors(t *testing.T) {
	p, _ := New(1, 0, func(context.Context, Worker, int) error { return ErrStop })

	if err := p.JoinAll(0); !errors.Is(err, errors.ErrPoolNotStarted) {
		t.Errorf("JoinAll before Start = %v, want ErrPoolNotStarted", err)
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(context.Background()); !errors.Is(err, errors.ErrPoolStarted) {
		t.Errorf("second Start = %v, want ErrPoolStarted", err)
	}
	_ = p.JoinAll(0)
}

func TestContextCancellationStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var n atomic.Int64

	p, _ := New(3, 0, func(context.Context, Worker, int) error {
		n.Add(1)
		time.Sleep(time.Millisecond)
		return nil
	})
	_ = p.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := p.JoinAll(time.Second); err != nil {
		t.Fatalf("JoinAll: %v", err)
	}
	if n.Load() == 0 {
		t.Error("expected some iterations before cancel")
	}
}

type countingExecutor struct {
	spawned atomic.Int64
	inner   *GoroutineExecutor
}

func (e *countingExecutor) Go(fn func()) {
	e.spawned.Add(1)
	e.inner.Go(fn)
}

func (e *countingExecutor) Wait() { e.inner.Wait() }

func TestCustomExecutor(t *testing.T) {
	exec := &countingExecutor{inner: NewGoroutineExecutor()}
	p, _ := New(5, 0, func(context.Context, Worker, int) error { return nil },
		WithExecutor(exec), WithIterations(1))

	_ = p.Start(context.Background())
	if err := p.JoinAll(time.Second); err != nil {
		t.Fatalf("JoinAll: %v", err)
	}
	if exec.spawned.Load() != 5 {
		t.Errorf("spawned = %d, want 5", exec.spawned.Load())
	}
}

func TestRunningIsSortedByWorker(t *testing.T) {
	release := make(chan struct{})
	p, _ := New(3, 0, func(context.Context, Worker, int) error {
		<-release
		return ErrStop
	})
	_ = p.Start(context.Background())

	running := p.Running()
	if !sort.StringsAreSorted(running) || len(running) != 3 {
		t.Errorf("Running() = %v", running)
	}
	close(release)
	_ = p.JoinAll(0)
}

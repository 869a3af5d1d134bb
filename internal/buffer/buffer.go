// Package buffer implements a fixed-capacity FIFO queue with blocking put and
// get, backpressure in both directions, and a close signal that lets
// consumers drain remaining items before they observe end-of-stream.
package buffer

import (
	"context"
	"fmt"
	"sync"

	"github.com/Iron-Ham/bufferlab/internal/errors"
)

// Op identifies the side of the buffer an observer event concerns.
type Op string

const (
	OpPut Op = "put"
	OpGet Op = "get"
)

// Observer receives buffer activity. Methods are called with the buffer's
// lock held and must not call back into the buffer.
type Observer interface {
	OnPut(size int)
	OnGet(size int)
	OnBlock(op Op)
	OnClose()
}

// Stats is a point-in-time snapshot of buffer state.
type Stats struct {
	Capacity       int   `json:"capacity" yaml:"capacity"`
	Size           int   `json:"size" yaml:"size"`
	Puts           int64 `json:"puts" yaml:"puts"`
	Gets           int64 `json:"gets" yaml:"gets"`
	BlockedPutters int   `json:"blocked_putters" yaml:"blocked_putters"`
	BlockedGetters int   `json:"blocked_getters" yaml:"blocked_getters"`
	Closed         bool  `json:"closed" yaml:"closed"`
}

// Buffer is a bounded FIFO queue safe for concurrent use by any number of
// producers and consumers. The zero value is not usable; call New.
type Buffer[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	ring []T
	head int
	size int

	closed     bool
	puts, gets int64
	waitingPut int
	waitingGet int

	observer Observer
}

// Option configures a Buffer.
type Option func(*config)

type config struct {
	observer Observer
}

// WithObserver attaches an Observer, usually the metrics collector.
func WithObserver(o Observer) Option {
	return func(c *config) { c.observer = o }
}

// New returns an empty open buffer holding at most capacity items.
func New[T any](capacity int, opts ...Option) (*Buffer[T], error) {
	if capacity < 1 {
		return nil, errors.NewValidationError("capacity must be at least 1").
			WithField("capacity").WithValue(capacity)
	}
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Buffer[T]{
		ring:     make([]T, capacity),
		observer: cfg.observer,
	}
	b.notFull = sync.NewCond(&b.mu)
	b.notEmpty = sync.NewCond(&b.mu)
	return b, nil
}

// Put appends item at the tail, blocking while the buffer is full.
// It returns ErrBufferClosed if the buffer is closed before space frees up.
func (b *Buffer[T]) Put(item T) error {
	return b.put(nil, item)
}

// PutContext is Put that also gives up when ctx is done.
func (b *Buffer[T]) PutContext(ctx context.Context, item T) error {
	return b.put(ctx, item)
}

// Get removes and returns the head item, blocking while the buffer is empty
// and open. Once the buffer is closed and drained it returns ErrEndOfStream
// immediately.
func (b *Buffer[T]) Get() (T, error) {
	return b.get(nil)
}

// GetContext is Get that also gives up when ctx is done.
func (b *Buffer[T]) GetContext(ctx context.Context) (T, error) {
	return b.get(ctx)
}

// TryPut appends item without blocking. It reports false when the buffer is
// full and returns ErrBufferClosed when it is closed.
func (b *Buffer[T]) TryPut(item T) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, errors.ErrBufferClosed
	}
	if b.size == len(b.ring) {
		return false, nil
	}
	b.enqueue(item)
	return true, nil
}

// TryGet removes the head item without blocking. It reports false when the
// buffer is empty and returns ErrEndOfStream when it is closed and drained.
func (b *Buffer[T]) TryGet() (T, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	if b.size == 0 {
		if b.closed {
			return zero, false, errors.ErrEndOfStream
		}
		return zero, false, nil
	}
	return b.dequeue(), true, nil
}

// Close marks the buffer closed and wakes every waiter. Blocked putters fail
// with ErrBufferClosed; blocked getters drain what is left and then receive
// ErrEndOfStream. Close is idempotent.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.notFull.Broadcast()
	b.notEmpty.Broadcast()
	if b.observer != nil {
		b.observer.OnClose()
	}
}

// Len returns the number of buffered items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.ring)
}

// Closed reports whether Close has been called.
func (b *Buffer[T]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Capacity:       len(b.ring),
		Size:           b.size,
		Puts:           b.puts,
		Gets:           b.gets,
		BlockedPutters: b.waitingPut,
		BlockedGetters: b.waitingGet,
		Closed:         b.closed,
	}
}

func (b *Buffer[T]) put(ctx context.Context, item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ctx != nil {
		stop := context.AfterFunc(ctx, func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.notFull.Broadcast()
		})
		defer stop()
	}

	for b.size == len(b.ring) && !b.closed {
		if ctx != nil && ctx.Err() != nil {
			return fmt.Errorf("buffer put: %w", ctx.Err())
		}
		b.waitingPut++
		if b.observer != nil {
			b.observer.OnBlock(OpPut)
		}
		b.notFull.Wait()
		b.waitingPut--
	}

	if b.closed {
		return errors.ErrBufferClosed
	}
	if ctx != nil && ctx.Err() != nil {
		// Pass the wakeup on so a space freed for us is not lost.
		b.notFull.Signal()
		return fmt.Errorf("buffer put: %w", ctx.Err())
	}
	b.enqueue(item)
	return nil
}

func (b *Buffer[T]) get(ctx context.Context) (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	if ctx != nil {
		stop := context.AfterFunc(ctx, func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.notEmpty.Broadcast()
		})
		defer stop()
	}

	for b.size == 0 && !b.closed {
		if ctx != nil && ctx.Err() != nil {
			return zero, fmt.Errorf("buffer get: %w", ctx.Err())
		}
		b.waitingGet++
		if b.observer != nil {
			b.observer.OnBlock(OpGet)
		}
		b.notEmpty.Wait()
		b.waitingGet--
	}

	if b.size == 0 {
		return zero, errors.ErrEndOfStream
	}
	if ctx != nil && ctx.Err() != nil {
		b.notEmpty.Signal()
		return zero, fmt.Errorf("buffer get: %w", ctx.Err())
	}
	return b.dequeue(), nil
}

// enqueue and dequeue require b.mu.

func (b *Buffer[T]) enqueue(item T) {
	if b.size >= len(b.ring) {
		panic(fmt.Sprintf("buffer: enqueue on full buffer (size=%d, cap=%d)", b.size, len(b.ring)))
	}
	b.ring[(b.head+b.size)%len(b.ring)] = item
	b.size++
	b.puts++
	if b.observer != nil {
		b.observer.OnPut(b.size)
	}
	b.notEmpty.Signal()
}

func (b *Buffer[T]) dequeue() T {
	if b.size <= 0 {
		panic(fmt.Sprintf("buffer: dequeue on empty buffer (size=%d)", b.size))
	}
	var zero T
	item := b.ring[b.head]
	b.ring[b.head] = zero
	b.head = (b.head + 1) % len(b.ring)
	b.size--
	b.gets++
	if b.observer != nil {
		b.observer.OnGet(b.size)
	}
	b.notFull.Signal()
	return item
}

// Package counter provides a shared integer counter whose read-modify-write
// is either guarded by a lock or deliberately left unsynchronized.
//
// The unlocked mode exists to demonstrate lost updates. Every individual
// load and store is atomic, so the race detector stays quiet, but the
// load-then-store pair is not, so concurrent callers overwrite each other.
package counter

import (
	"sync"
	"sync/atomic"
)

// Counter is a mutable int64 with an optional lock.
type Counter struct {
	value atomic.Int64
	lock  sync.Locker

	// window runs between the load and the store of an unlocked update.
	window func()
}

// New returns a Counter starting at initial. When locked is true the counter
// owns a private mutex.
func New(initial int64, locked bool) *Counter {
	var lock sync.Locker
	if locked {
		lock = &sync.Mutex{}
	}
	return NewWithLocker(initial, lock)
}

// NewWithLocker returns a Counter guarded by lock. A nil lock yields an
// unlocked counter. Sharing one lock between counters serializes all of them.
func NewWithLocker(initial int64, lock sync.Locker) *Counter {
	c := &Counter{lock: lock}
	c.value.Store(initial)
	return c
}

// WithRaceWindow sets a hook that runs between the read and the write of an
// unlocked update, typically runtime.Gosched. It has no effect in locked mode.
func (c *Counter) WithRaceWindow(fn func()) *Counter {
	c.window = fn
	return c
}

// Locked reports whether updates run inside a critical section.
func (c *Counter) Locked() bool {
	return c.lock != nil
}

// Increment adds one to the counter.
func (c *Counter) Increment() {
	c.add(1)
}

// Decrement subtracts one from the counter.
func (c *Counter) Decrement() {
	c.add(-1)
}

func (c *Counter) add(delta int64) {
	if c.lock != nil {
		c.lock.Lock()
		defer c.lock.Unlock()
		c.value.Store(c.value.Load() + delta)
		return
	}

	v := c.value.Load()
	if c.window != nil {
		c.window()
	}
	c.value.Store(v + delta)
}

// Value returns the current value.
func (c *Counter) Value() int64 {
	if c.lock != nil {
		c.lock.Lock()
		defer c.lock.Unlock()
	}
	return c.value.Load()
}

// Reset sets the value to v. Callers must not reset while workers are running.
func (c *Counter) Reset(v int64) {
	if c.lock != nil {
		c.lock.Lock()
		defer c.lock.Unlock()
	}
	c.value.Store(v)
}

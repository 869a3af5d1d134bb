package pool

import "github.com/sourcegraph/conc"

// Executor is the concurrent execution unit a pool spawns workers on.
// Go must not block; Wait returns once every spawned function returned.
type Executor interface {
	Go(fn func())
	Wait()
}

// GoroutineExecutor runs each worker on its own goroutine.
type GoroutineExecutor struct {
	wg conc.WaitGroup
}

// NewGoroutineExecutor returns an Executor backed by a conc.WaitGroup.
func NewGoroutineExecutor() *GoroutineExecutor {
	return &GoroutineExecutor{}
}

// Go spawns fn.
func (e *GoroutineExecutor) Go(fn func()) {
	e.wg.Go(fn)
}

// Wait blocks until every spawned function returned. A panic that escaped
// fn is re-raised here.
func (e *GoroutineExecutor) Wait() {
	e.wg.Wait()
}

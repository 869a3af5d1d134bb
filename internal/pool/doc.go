// Package pool runs a fixed number of named workers against one shared
// resource, such as a buffer or a counter.
//
// A Pool is created with its size, the resource, and a unit of work. Start
// spawns the workers on an Executor; each worker calls the unit of work
// until its iteration budget is spent or the unit of work returns ErrStop
// or end-of-stream. JoinAll waits for every worker and reports the first
// failure only after all of them have terminated.
//
// # Failure Handling
//
// Errors and panics raised by a unit of work are captured per worker as
// *errors.WorkerFailure values. A failing worker never stops its siblings.
//
// # Join Deadlines
//
// JoinAll accepts an optional timeout. When it expires the pool returns a
// *errors.JoinTimeoutError listing the workers still running and keeps
// tracking them, so the caller can join again later.
//
// Usage:
//
//	p, err := pool.New(4, buf, consume,
//	    pool.WithName("consumers"),
//	    pool.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	if err := p.JoinAll(5 * time.Second); err != nil {
//	    return err
//	}
package pool

// Package event provides a pub-sub event bus for reporting progress of the
// race harness and the producer/consumer pipeline.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Race harness:
//   - [PhaseChangedEvent]: every state machine transition
//   - [PhaseCompletedEvent]: final value and elapsed time of one phase
//
// Pools, buffers and pipelines:
//   - [WorkerFailedEvent]: a worker's unit of work failed or panicked
//   - [BufferClosedEvent]: an orchestrator closed its buffer
//   - [StageCompletedEvent]: a pipeline stage has been joined
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously on the publishing goroutine; a panicking handler is logged
// and does not prevent delivery to the remaining handlers.
package event

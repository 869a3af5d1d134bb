// Package event defines event types for decoupling the coordination core
// from whatever renders its progress (CLI output, logs, the live view).
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "race.phase_completed").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypePhaseChanged   = "race.phase_changed"
	TypePhaseCompleted = "race.phase_completed"
	TypeWorkerFailed   = "pool.worker_failed"
	TypeBufferClosed   = "buffer.closed"
	TypeStageCompleted = "pipeline.stage_completed"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Race Harness Events
// -----------------------------------------------------------------------------

// PhaseChangedEvent is emitted on every race harness state transition.
type PhaseChangedEvent struct {
	baseEvent
	Previous string
	Current  string
}

// NewPhaseChangedEvent creates a PhaseChangedEvent.
func NewPhaseChangedEvent(previous, current string) PhaseChangedEvent {
	return PhaseChangedEvent{
		baseEvent: newBaseEvent(TypePhaseChanged),
		Previous:  previous,
		Current:   current,
	}
}

// PhaseCompletedEvent carries the outcome of one harness phase.
type PhaseCompletedEvent struct {
	baseEvent
	Phase      string
	Locked     bool
	FinalValue int64
	Elapsed    time.Duration
	Err        error
}

// NewPhaseCompletedEvent creates a PhaseCompletedEvent.
func NewPhaseCompletedEvent(phase string, locked bool, final int64, elapsed time.Duration, err error) PhaseCompletedEvent {
	return PhaseCompletedEvent{
		baseEvent:  newBaseEvent(TypePhaseCompleted),
		Phase:      phase,
		Locked:     locked,
		FinalValue: final,
		Elapsed:    elapsed,
		Err:        err,
	}
}

// -----------------------------------------------------------------------------
// Pool and Buffer Events
// -----------------------------------------------------------------------------

// WorkerFailedEvent is emitted for each captured worker failure.
type WorkerFailedEvent struct {
	baseEvent
	Pool   string
	Worker string
	Err    error
}

// NewWorkerFailedEvent creates a WorkerFailedEvent.
func NewWorkerFailedEvent(pool, worker string, err error) WorkerFailedEvent {
	return WorkerFailedEvent{
		baseEvent: newBaseEvent(TypeWorkerFailed),
		Pool:      pool,
		Worker:    worker,
		Err:       err,
	}
}

// BufferClosedEvent is emitted when an orchestrator closes its buffer.
type BufferClosedEvent struct {
	baseEvent
	Remaining int
	Puts      int64
	Gets      int64
}

// NewBufferClosedEvent creates a BufferClosedEvent.
func NewBufferClosedEvent(remaining int, puts, gets int64) BufferClosedEvent {
	return BufferClosedEvent{
		baseEvent: newBaseEvent(TypeBufferClosed),
		Remaining: remaining,
		Puts:      puts,
		Gets:      gets,
	}
}

// StageCompletedEvent is emitted when a pipeline stage (producers or
// consumers) has been joined.
type StageCompletedEvent struct {
	baseEvent
	Stage   string
	Items   int64
	Elapsed time.Duration
	Err     error
}

// NewStageCompletedEvent creates a StageCompletedEvent.
func NewStageCompletedEvent(stage string, items int64, elapsed time.Duration, err error) StageCompletedEvent {
	return StageCompletedEvent{
		baseEvent: newBaseEvent(TypeStageCompleted),
		Stage:     stage,
		Items:     items,
		Elapsed:   elapsed,
		Err:       err,
	}
}

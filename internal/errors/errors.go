// Package errors provides centralized error definitions and error handling utilities
// for bufferlab. It defines the sentinel errors of the coordination core, typed
// errors carrying worker and pool context, and classification helpers.
//
// # Error Types
//
// Sentinels describe conditions callers branch on:
//   - ErrBufferClosed: a put was attempted on (or woken by) a closed buffer
//   - ErrEndOfStream: a closed buffer has been drained; not a failure
//   - ErrJoinTimeout: a pool join exceeded its deadline
//   - ErrWorkerFailed: a worker's unit of work returned an error or panicked
//
// Typed errors carry context:
//   - WorkerFailure: the failing worker, its pool, iteration and cause
//   - JoinTimeoutError: the deadline and the workers still running
//   - ValidationError: invalid construction input
//
// # Usage
//
//	err := errors.NewWorkerFailure("producers", "producer-2", cause).WithIteration(17)
//
//	if errors.Is(err, errors.ErrWorkerFailed) { ... }
//
//	var jt *errors.JoinTimeoutError
//	if errors.As(err, &jt) {
//	    log.Warn("still running", "workers", jt.Pending)
//	}
//
// # Error Classification
//
// JoinTimeoutError is retryable: the pool keeps tracking its workers and the
// caller may join again. End-of-stream is classified as SeverityDebug since it
// is the normal end of a consumer loop.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for conditions that are expected during normal operation.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Buffer sentinels
var (
	// ErrBufferClosed indicates a put on a closed buffer.
	ErrBufferClosed = New("buffer closed")
	// ErrEndOfStream signals that a closed buffer has no more items.
	ErrEndOfStream = New("end of stream")
)

// Pool sentinels
var (
	// ErrJoinTimeout indicates that joining a pool exceeded its deadline.
	ErrJoinTimeout = New("join timed out")
	// ErrWorkerFailed indicates that a worker's unit of work failed.
	ErrWorkerFailed = New("worker failed")
	// ErrPoolStarted indicates Start was called on a pool that already ran.
	ErrPoolStarted = New("pool already started")
	// ErrPoolNotStarted indicates JoinAll was called before Start.
	ErrPoolNotStarted = New("pool not started")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// LabError is the base interface for typed bufferlab errors.
type LabError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed when repeated.
	IsRetryable() bool
}

type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// WorkerFailure
// -----------------------------------------------------------------------------

// WorkerFailure records a unit of work that returned an error or panicked.
// The pool captures one per failing worker and keeps the worker's siblings
// running.
//
// Example:
//
//	err := errors.NewWorkerFailure("consumers", "consumer-1", io.ErrUnexpectedEOF)
//	fmt.Println(err) // "worker failure [pool=consumers, worker=consumer-1]: unexpected EOF"
type WorkerFailure struct {
	baseError
	Pool      string
	Worker    string
	Iteration int
	// Stack is set when the failure was a recovered panic.
	Stack string
}

// NewWorkerFailure creates a new WorkerFailure.
func NewWorkerFailure(pool, worker string, cause error) *WorkerFailure {
	return &WorkerFailure{
		baseError: baseError{
			message:  "unit of work failed",
			cause:    cause,
			severity: SeverityError,
		},
		Pool:      pool,
		Worker:    worker,
		Iteration: -1,
	}
}

// WithIteration records the iteration the worker was executing.
func (e *WorkerFailure) WithIteration(i int) *WorkerFailure {
	e.Iteration = i
	return e
}

// WithStack records the stack of a recovered panic and raises the severity.
func (e *WorkerFailure) WithStack(stack string) *WorkerFailure {
	e.Stack = stack
	e.severity = SeverityCritical
	return e
}

// Panicked reports whether the failure came from a recovered panic.
func (e *WorkerFailure) Panicked() bool {
	return e.Stack != ""
}

// Error returns the formatted error message.
func (e *WorkerFailure) Error() string {
	var parts []string
	if e.Pool != "" {
		parts = append(parts, fmt.Sprintf("pool=%s", e.Pool))
	}
	if e.Worker != "" {
		parts = append(parts, fmt.Sprintf("worker=%s", e.Worker))
	}
	if e.Iteration >= 0 {
		parts = append(parts, fmt.Sprintf("iteration=%d", e.Iteration))
	}

	prefix := "worker failure"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("worker failure [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is reports whether target is ErrWorkerFailed or matches the cause.
func (e *WorkerFailure) Is(target error) bool {
	if target == ErrWorkerFailed {
		return true
	}
	if _, ok := target.(*WorkerFailure); ok {
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// JoinTimeoutError
// -----------------------------------------------------------------------------

// JoinTimeoutError is returned when JoinAll's deadline expires before every
// worker terminated. The pool still tracks the listed workers.
type JoinTimeoutError struct {
	baseError
	Pool    string
	Timeout time.Duration
	Pending []string
}

// NewJoinTimeoutError creates a new JoinTimeoutError.
func NewJoinTimeoutError(pool string, timeout time.Duration, pending []string) *JoinTimeoutError {
	return &JoinTimeoutError{
		baseError: baseError{
			message:   "join timed out",
			severity:  SeverityWarning,
			retryable: true,
		},
		Pool:    pool,
		Timeout: timeout,
		Pending: pending,
	}
}

// Error returns the formatted error message.
func (e *JoinTimeoutError) Error() string {
	msg := fmt.Sprintf("join timeout [pool=%s]: %d worker(s) still running after %s",
		e.Pool, len(e.Pending), e.Timeout)
	if len(e.Pending) > 0 {
		msg += fmt.Sprintf(" (%s)", strings.Join(e.Pending, ", "))
	}
	return msg
}

// Is reports whether target is ErrJoinTimeout.
func (e *JoinTimeoutError) Is(target error) bool {
	if target == ErrJoinTimeout {
		return true
	}
	_, ok := target.(*JoinTimeoutError)
	return ok
}

// -----------------------------------------------------------------------------
// ValidationError
// -----------------------------------------------------------------------------

// ValidationError represents invalid construction input.
//
// Example:
//
//	err := errors.NewValidationError("capacity must be at least 1").
//	    WithField("capacity").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			severity: SeverityWarning,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is reports whether target is ErrInvalidInput or a ValidationError.
func (e *ValidationError) Is(target error) bool {
	if target == ErrInvalidInput {
		return true
	}
	_, ok := target.(*ValidationError)
	return ok
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsEndOfStream reports whether err signals a drained, closed buffer.
func IsEndOfStream(err error) bool {
	return err != nil && Is(err, ErrEndOfStream)
}

// IsRetryable returns true if the error represents a condition the caller
// may retry, such as a join whose deadline expired.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var labErr LabError
	if As(err, &labErr) {
		return labErr.IsRetryable()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// End-of-stream is SeverityDebug; unknown errors are SeverityError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	if IsEndOfStream(err) {
		return SeverityDebug
	}

	var labErr LabError
	if As(err, &labErr) {
		return labErr.Severity()
	}
	return SeverityError
}

// FirstFailure returns the first *WorkerFailure found in errs, or nil.
func FirstFailure(errs []error) *WorkerFailure {
	for _, err := range errs {
		var wf *WorkerFailure
		if As(err, &wf) {
			return wf
		}
	}
	return nil
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

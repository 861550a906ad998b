// Package errors provides centralized error definitions and error handling utilities
// for termrelay. It defines the sentinel errors of the relay's failure taxonomy,
// typed errors that carry context for each subsystem, and classification helpers.
//
// # Error Types
//
// Domain-specific errors:
//   - SourceError: the transcript could not be located, read, or followed
//   - InjectionError: input could not be delivered to the target surface
//   - CorrelationError: a command's output could not be recovered from the transcript
//   - SessionError: the session facade is closed, broken, busy, or locked
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewInjectionError("no such tmux session", errors.ErrTargetNotFound).
//		WithTarget("work").WithBackend("tmux")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrTimedOut) { ... }
//
//	var corrErr *errors.CorrelationError
//	if errors.As(err, &corrErr) { ... }
//
// Callers that need to tell a user what to do next use [Describe], which maps
// an error to one of a small set of categories ("could not inject",
// "injected but no response in time", "session unusable", ...).
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
	// SeverityDebug is for errors that are useful for debugging but not critical.
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

// Transcript-related sentinel errors
var (
	// ErrSourceNotFound indicates that no transcript file could be located.
	ErrSourceNotFound = New("transcript source not found")
	// ErrSourceBroken indicates that the followed transcript disappeared or
	// became unreadable and could not be replaced.
	ErrSourceBroken = New("transcript source broken")
	// ErrStopTimeout indicates that a background reader did not exit within
	// its grace period.
	ErrStopTimeout = New("background reader did not stop in time")
)

// Injection-related sentinel errors
var (
	// ErrTargetNotFound indicates that the injection target surface could not be located.
	ErrTargetNotFound = New("injection target not found")
	// ErrInjectionFailed indicates that the target was found but delivery failed.
	ErrInjectionFailed = New("injection failed")
	// ErrTargetLocked indicates that another session already owns the target.
	ErrTargetLocked = New("injection target owned by another session")
)

// Correlation-related sentinel errors
var (
	// ErrTimedOut indicates that the end marker was not observed before the deadline.
	ErrTimedOut = New("timed out waiting for command output")
	// ErrCanceled indicates that the caller canceled the invocation.
	ErrCanceled = New("invocation canceled")
)

// Session-related sentinel errors
var (
	// ErrSessionClosed indicates an operation on a session after Close.
	ErrSessionClosed = New("session closed")
	// ErrSessionBroken indicates that the session can no longer observe output.
	ErrSessionBroken = New("session broken")
	// ErrSessionBusy indicates an overlapping Execute on the same session.
	ErrSessionBusy = New("session busy with another invocation")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// RelayError is the base interface for all termrelay errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type RelayError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// format renders "prefix [k=v, ...]: message: cause".
func (e *baseError) format(prefix string, parts []string) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// SourceError represents errors related to locating or following a transcript.
//
// Example:
//
//	err := errors.NewSourceError("no file matching *.log", errors.ErrSourceNotFound).WithDir("/logs")
//	fmt.Println(err) // "source error [dir=/logs]: no file matching *.log: transcript source not found"
type SourceError struct {
	baseError
	Dir  string
	Path string
}

// NewSourceError creates a new SourceError.
func NewSourceError(message string, cause error) *SourceError {
	return &SourceError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: false,
		},
	}
}

// WithDir adds the transcript directory to the error context.
func (e *SourceError) WithDir(dir string) *SourceError {
	e.Dir = dir
	return e
}

// WithPath adds the transcript file path to the error context.
func (e *SourceError) WithPath(path string) *SourceError {
	e.Path = path
	return e
}

// WithSeverity sets the error severity.
func (e *SourceError) WithSeverity(s Severity) *SourceError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *SourceError) Error() string {
	var parts []string
	if e.Dir != "" {
		parts = append(parts, fmt.Sprintf("dir=%s", e.Dir))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	return e.format("source error", parts)
}

// Is checks if this error matches the target.
func (e *SourceError) Is(target error) bool {
	if _, ok := target.(*SourceError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// InjectionError represents errors delivering input to the target surface.
// A missing target is retryable: the user can bring the window or session
// back and call again on the same session.
type InjectionError struct {
	baseError
	Target  string
	Backend string
}

// NewInjectionError creates a new InjectionError.
func NewInjectionError(message string, cause error) *InjectionError {
	return &InjectionError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: errors.Is(cause, ErrTargetNotFound),
		},
	}
}

// WithTarget adds the target identifier (session name, window name) to the error context.
func (e *InjectionError) WithTarget(target string) *InjectionError {
	e.Target = target
	return e
}

// WithBackend adds the injector backend name to the error context.
func (e *InjectionError) WithBackend(backend string) *InjectionError {
	e.Backend = backend
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *InjectionError) WithRetryable(r bool) *InjectionError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *InjectionError) Error() string {
	var parts []string
	if e.Backend != "" {
		parts = append(parts, fmt.Sprintf("backend=%s", e.Backend))
	}
	if e.Target != "" {
		parts = append(parts, fmt.Sprintf("target=%s", e.Target))
	}
	return e.format("injection error", parts)
}

// Is checks if this error matches the target.
func (e *InjectionError) Is(target error) bool {
	if _, ok := target.(*InjectionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CorrelationError represents failures to recover a command's output.
//
// Example:
//
//	err := errors.NewCorrelationError("end marker not observed", errors.ErrTimedOut).
//		WithMarkerID("ab12cd34").WithTimeout(5 * time.Second)
type CorrelationError struct {
	baseError
	MarkerID string
	Command  string
	Timeout  time.Duration
	State    string
}

// NewCorrelationError creates a new CorrelationError.
func NewCorrelationError(message string, cause error) *CorrelationError {
	return &CorrelationError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityWarning,
			retryable: errors.Is(cause, ErrTimedOut),
		},
	}
}

// WithMarkerID adds the invocation's marker ID to the error context.
func (e *CorrelationError) WithMarkerID(id string) *CorrelationError {
	e.MarkerID = id
	return e
}

// WithCommand adds the command text to the error context.
func (e *CorrelationError) WithCommand(command string) *CorrelationError {
	e.Command = command
	return e
}

// WithTimeout adds the configured timeout to the error context.
func (e *CorrelationError) WithTimeout(d time.Duration) *CorrelationError {
	e.Timeout = d
	return e
}

// WithState adds the correlator state at the time of failure.
func (e *CorrelationError) WithState(state string) *CorrelationError {
	e.State = state
	return e
}

// Error returns the formatted error message.
func (e *CorrelationError) Error() string {
	var parts []string
	if e.MarkerID != "" {
		parts = append(parts, fmt.Sprintf("marker=%s", e.MarkerID))
	}
	if e.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("timeout=%s", e.Timeout))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}
	return e.format("correlation error", parts)
}

// Is checks if this error matches the target.
func (e *CorrelationError) Is(target error) bool {
	if _, ok := target.(*CorrelationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SessionError represents errors related to the session facade.
type SessionError struct {
	baseError
	SessionID string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: errors.Is(cause, ErrSessionBusy),
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// WithSeverity sets the error severity.
func (e *SessionError) WithSeverity(s Severity) *SessionError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	return e.format("session error", parts)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error is transient and the same call may
// succeed later on the same session.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var relayErr RelayError
	if As(err, &relayErr) {
		return relayErr.IsRetryable()
	}

	return Is(err, ErrTimedOut) || Is(err, ErrTargetNotFound) || Is(err, ErrSessionBusy)
}

// RetryHint is appended to messages shown for retryable errors.
const RetryHint = "retry may succeed"

// GetSeverity returns the severity of an error.
// Errors that are not RelayErrors default to SeverityError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var relayErr RelayError
	if As(err, &relayErr) {
		return relayErr.Severity()
	}
	return SeverityError
}

// Categories returned by Describe.
const (
	CategoryInjection   = "could not inject"
	CategoryTimeout     = "injected but no response in time"
	CategoryUnusable    = "session unusable"
	CategoryNoSource    = "transcript not found"
	CategoryBusy        = "session busy"
	CategoryTargetInUse = "target in use"
	CategoryCanceled    = "canceled"
	CategoryInvalid     = "invalid request"
	CategoryUnknown     = "command failed"
)

// Describe maps an error to the category that tells a caller which corrective
// action applies. Returns "" for a nil error.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrSessionClosed), Is(err, ErrSessionBroken), Is(err, ErrSourceBroken):
		return CategoryUnusable
	case Is(err, ErrTargetNotFound), Is(err, ErrInjectionFailed):
		return CategoryInjection
	case Is(err, ErrTimedOut):
		return CategoryTimeout
	case Is(err, ErrSourceNotFound):
		return CategoryNoSource
	case Is(err, ErrSessionBusy):
		return CategoryBusy
	case Is(err, ErrTargetLocked):
		return CategoryTargetInUse
	case Is(err, ErrCanceled):
		return CategoryCanceled
	case Is(err, ErrInvalidInput):
		return CategoryInvalid
	default:
		return CategoryUnknown
	}
}

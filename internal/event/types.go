package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "invocation.completed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type names.
const (
	TypeInvocationStarted   = "invocation.started"
	TypeInvocationCompleted = "invocation.completed"
	TypeInvocationTimedOut  = "invocation.timed_out"
	TypeInvocationFailed    = "invocation.failed"
	TypeTranscriptRotated   = "transcript.rotated"
	TypeTranscriptBroken    = "transcript.broken"
	TypeSessionClosed       = "session.closed"
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
// Invocation Events
// -----------------------------------------------------------------------------

// InvocationStartedEvent is emitted before a command's markers are injected.
type InvocationStartedEvent struct {
	baseEvent
	SessionID string
	Target    string
	Command   string
	Timeout   time.Duration
}

// NewInvocationStartedEvent creates an InvocationStartedEvent.
func NewInvocationStartedEvent(sessionID, target, command string, timeout time.Duration) InvocationStartedEvent {
	return InvocationStartedEvent{
		baseEvent: newBaseEvent(TypeInvocationStarted),
		SessionID: sessionID,
		Target:    target,
		Command:   command,
		Timeout:   timeout,
	}
}

// InvocationCompletedEvent is emitted when a command's end marker is observed.
type InvocationCompletedEvent struct {
	baseEvent
	SessionID    string
	MarkerID     string
	Command      string
	Elapsed      time.Duration
	LinesScanned int
	OutputBytes  int
}

// NewInvocationCompletedEvent creates an InvocationCompletedEvent.
func NewInvocationCompletedEvent(sessionID, markerID, command string, elapsed time.Duration, linesScanned, outputBytes int) InvocationCompletedEvent {
	return InvocationCompletedEvent{
		baseEvent:    newBaseEvent(TypeInvocationCompleted),
		SessionID:    sessionID,
		MarkerID:     markerID,
		Command:      command,
		Elapsed:      elapsed,
		LinesScanned: linesScanned,
		OutputBytes:  outputBytes,
	}
}

// InvocationTimedOutEvent is emitted when the deadline passes first.
type InvocationTimedOutEvent struct {
	baseEvent
	SessionID string
	MarkerID  string
	Command   string
	Timeout   time.Duration
	State     string // scan state when the deadline hit
}

// NewInvocationTimedOutEvent creates an InvocationTimedOutEvent.
func NewInvocationTimedOutEvent(sessionID, markerID, command string, timeout time.Duration, state string) InvocationTimedOutEvent {
	return InvocationTimedOutEvent{
		baseEvent: newBaseEvent(TypeInvocationTimedOut),
		SessionID: sessionID,
		MarkerID:  markerID,
		Command:   command,
		Timeout:   timeout,
		State:     state,
	}
}

// InvocationFailedEvent is emitted for every other unsuccessful invocation.
type InvocationFailedEvent struct {
	baseEvent
	SessionID string
	MarkerID  string // empty when the command never reached the target
	Command   string
	Category  string
	Err       error
}

// NewInvocationFailedEvent creates an InvocationFailedEvent.
func NewInvocationFailedEvent(sessionID, markerID, command, category string, err error) InvocationFailedEvent {
	return InvocationFailedEvent{
		baseEvent: newBaseEvent(TypeInvocationFailed),
		SessionID: sessionID,
		MarkerID:  markerID,
		Command:   command,
		Category:  category,
		Err:       err,
	}
}

// -----------------------------------------------------------------------------
// Transcript Events
// -----------------------------------------------------------------------------

// TranscriptRotatedEvent is emitted when the tailer moves to a newer file.
type TranscriptRotatedEvent struct {
	baseEvent
	SessionID string
	OldPath   string
	NewPath   string
}

// NewTranscriptRotatedEvent creates a TranscriptRotatedEvent.
func NewTranscriptRotatedEvent(sessionID, oldPath, newPath string) TranscriptRotatedEvent {
	return TranscriptRotatedEvent{
		baseEvent: newBaseEvent(TypeTranscriptRotated),
		SessionID: sessionID,
		OldPath:   oldPath,
		NewPath:   newPath,
	}
}

// TranscriptBrokenEvent is emitted when the followed file is gone for good.
type TranscriptBrokenEvent struct {
	baseEvent
	SessionID string
	Path      string
	Err       error
}

// NewTranscriptBrokenEvent creates a TranscriptBrokenEvent.
func NewTranscriptBrokenEvent(sessionID, path string, err error) TranscriptBrokenEvent {
	return TranscriptBrokenEvent{
		baseEvent: newBaseEvent(TypeTranscriptBroken),
		SessionID: sessionID,
		Path:      path,
		Err:       err,
	}
}

// -----------------------------------------------------------------------------
// Session Events
// -----------------------------------------------------------------------------

// SessionClosedEvent is emitted once, when a session is closed.
type SessionClosedEvent struct {
	baseEvent
	SessionID   string
	Target      string
	Invocations int
}

// NewSessionClosedEvent creates a SessionClosedEvent.
func NewSessionClosedEvent(sessionID, target string, invocations int) SessionClosedEvent {
	return SessionClosedEvent{
		baseEvent:   newBaseEvent(TypeSessionClosed),
		SessionID:   sessionID,
		Target:      target,
		Invocations: invocations,
	}
}

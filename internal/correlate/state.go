package correlate

// State is the progress of one invocation.
type State int

const (
	StateIdle State = iota
	StateInjected
	StateStarted
	StateCompleted
	StateTimedOut
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInjected:
		return "injected"
	case StateStarted:
		return "started"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateTimedOut
}

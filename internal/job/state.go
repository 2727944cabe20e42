package job

import "fmt"

// State is a job lifecycle state.
type State string

const (
	StatePending     State = "pending"
	StateDownloading State = "downloading"
	StateTranscoding State = "transcoding"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// CanTransition enforces the job state machine edges.
func CanTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateDownloading || to == StateCancelled
	case StateDownloading:
		return to == StateTranscoding || to == StateFailed || to == StateCancelled
	case StateTranscoding:
		return to == StateSucceeded || to == StateFailed || to == StateCancelled
	default:
		return false
	}
}

// Tracker holds the current state of one job and rejects invalid edges.
// It is owned by a single pipeline goroutine.
type Tracker struct {
	state    State
	onChange func(from, to State)
}

// NewTracker starts a tracker in the pending state.
func NewTracker(onChange func(from, to State)) *Tracker {
	return &Tracker{state: StatePending, onChange: onChange}
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// Transition moves to the next state.
func (t *Tracker) Transition(to State) error {
	if !CanTransition(t.state, to) {
		return fmt.Errorf("invalid transition: %s -> %s", t.state, to)
	}
	from := t.state
	t.state = to
	if t.onChange != nil {
		t.onChange(from, to)
	}
	return nil
}

package merge

import "fmt"

// Status is the four-state lifecycle of a composite request: idle, then
// loading, then either success or error.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

// String renders the status for logs and templates.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Tracker enforces the status transitions for one request. The zero value
// starts idle.
type Tracker struct {
	current Status
}

// Current returns the tracked status.
func (t *Tracker) Current() Status {
	return t.current
}

// Transition moves to next, rejecting anything other than idle to loading and
// loading to a terminal state.
func (t *Tracker) Transition(next Status) error {
	valid := false
	switch t.current {
	case StatusIdle:
		valid = next == StatusLoading
	case StatusLoading:
		valid = next == StatusSuccess || next == StatusError
	}
	if !valid {
		return fmt.Errorf("merge: invalid status transition from %s to %s", t.current, next)
	}
	t.current = next
	return nil
}

// Reset returns the tracker to idle so the next request starts clean.
func (t *Tracker) Reset() {
	t.current = StatusIdle
}

package widget

// VisibilityState is whether the widget panel is shown.
type VisibilityState int

const (
	Closed VisibilityState = iota
	Open
)

func (s VisibilityState) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Visibility is the open/closed state machine of one mounted widget.
// It lives only as long as its page and is never persisted.
type Visibility struct {
	state VisibilityState
}

// NewVisibility returns a state machine starting in initial.
func NewVisibility(initial VisibilityState) *Visibility {
	return &Visibility{state: initial}
}

// State returns the current state.
func (v *Visibility) State() VisibilityState {
	return v.state
}

// IsOpen reports whether the panel is shown.
func (v *Visibility) IsOpen() bool {
	return v.state == Open
}

// LauncherClicked opens a closed widget. It reports whether a transition
// happened.
func (v *Visibility) LauncherClicked() bool {
	if v.state != Closed {
		return false
	}
	v.state = Open
	return true
}

// CloseClicked closes an open widget. It reports whether a transition
// happened.
func (v *Visibility) CloseClicked() bool {
	if v.state != Open {
		return false
	}
	v.state = Closed
	return true
}

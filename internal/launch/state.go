package launch

// State is the phase of a single launch attempt.
type State string

const (
	StateIdle              State = "idle"
	StateRequested         State = "requested"
	StateWaitingForConnect State = "waiting_for_connect"
	StateConnected         State = "connected"
	StateTimedOut          State = "timed_out"
	StateDaemonError       State = "daemon_error"
)

// Terminal reports whether no further transition can follow.
func (s State) Terminal() bool {
	switch s {
	case StateConnected, StateTimedOut, StateDaemonError:
		return true
	}
	return false
}

// Attempt is one run of the launch state machine. Attempts are never
// retried; a new launch is a new Attempt.
type Attempt struct {
	ID         string
	EmulatorID string
	State      State
	Err        error
}

var transitions = map[State][]State{
	StateIdle:              {StateRequested},
	StateRequested:         {StateWaitingForConnect, StateDaemonError},
	StateWaitingForConnect: {StateConnected, StateTimedOut},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

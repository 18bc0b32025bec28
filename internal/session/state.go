package session

// State is the position of a voice session in its lifecycle.
type State int

const (
	// Idle: the recognizer is off.
	Idle State = iota
	// Standby: listening for the wake word only.
	Standby
	// Active: every utterance is a candidate command.
	Active
	// Processing: a command is with the assistant.
	Processing
	// Speaking: the reply is being played back.
	Speaking
)

var stateNames = [...]string{
	Idle:       "idle",
	Standby:    "standby",
	Active:     "active",
	Processing: "processing",
	Speaking:   "speaking",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Listening reports whether the session expects recognizer input.
func (s State) Listening() bool {
	return s != Idle
}

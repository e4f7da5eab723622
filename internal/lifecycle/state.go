package lifecycle

import (
	"fmt"
	"strings"
)

// State is the submission state of an invoice record.
type State int

const (
	Failed          State = 0
	Created         State = 1
	PendingSendAEAT State = 2
	SendedAEAT      State = 3
	Valid           State = 4
	PartlyCorrect   State = 5
	Incorrect       State = 6
)

var stateNames = map[State]string{
	Failed:          "Failed",
	Created:         "Created",
	PendingSendAEAT: "PendingSendAEAT",
	SendedAEAT:      "SendedAEAT",
	Valid:           "Valid",
	PartlyCorrect:   "PartlyCorrect",
	Incorrect:       "Incorrect",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState resolves a state name, case-insensitively.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", name)
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	if !s.Known() {
		return nil, fmt.Errorf("unknown state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Known reports whether s is one of the defined states.
func (s State) Known() bool {
	_, ok := stateNames[s]
	return ok
}

// IsTerminal reports whether s ends a submission attempt.
func IsTerminal(s State) bool {
	switch s {
	case Valid, PartlyCorrect, Incorrect, Failed:
		return true
	default:
		return false
	}
}

// transitions lists the permitted target states for each source state.
// Failed and PendingSendAEAT may re-enter PendingSendAEAT because an
// interrupted or failed attempt can be run again.
var transitions = map[State][]State{
	Created:         {PendingSendAEAT, Incorrect, Failed},
	PendingSendAEAT: {PendingSendAEAT, SendedAEAT, Incorrect, Failed},
	SendedAEAT:      {Valid, PartlyCorrect, Incorrect, Failed},
	Failed:          {PendingSendAEAT, Incorrect, Failed},
}

// CanTransition reports whether moving from one state to another is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError reports a transition the state machine does not permit.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.From, e.To)
}

// Transition validates a move between states.
func Transition(from, to State) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

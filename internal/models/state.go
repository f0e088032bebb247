package models

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// State is a card's position in the review lifecycle. The zero value is
// StateNew, so a freshly constructed Card starts in the right state.
type State int

const (
	StateNew State = iota
	StateLearning
	StateReview
	StateRelearning
)

var (
	stateNames = [...]string{
		StateNew:        "New",
		StateLearning:   "Learning",
		StateReview:     "Review",
		StateRelearning: "Relearning",
	}
	stateByName = map[string]State{
		"New":        StateNew,
		"Learning":   StateLearning,
		"Review":     StateReview,
		"Relearning": StateRelearning,
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = State(0)
	_ json.Marshaler           = State(0)
	_ json.Unmarshaler         = (*State)(nil)
	_ encoding.TextMarshaler   = State(0)
	_ encoding.TextUnmarshaler = (*State)(nil)
)

func (s State) isValid() bool {
	return s >= StateNew && s <= StateRelearning
}

// String returns the name of the state ("New", "Learning", "Review",
// "Relearning"). For invalid values it returns "State(n)".
func (s State) String() string {
	if s.isValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// IsLearningPhase reports whether the card follows a step schedule rather
// than the long-term review curve.
func (s State) IsLearningPhase() bool {
	return s == StateNew || s == StateLearning || s == StateRelearning
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.isValid() {
		return nil, fmt.Errorf("invalid card state: %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	v, ok := stateByName[string(text)]
	if !ok {
		return fmt.Errorf("invalid card state: %q", text)
	}
	*s = v
	return nil
}

// MarshalJSON implements json.Marshaler. State serializes as a JSON string.
func (s State) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON string.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("invalid card state: %s", data)
	}
	return s.UnmarshalText([]byte(name))
}

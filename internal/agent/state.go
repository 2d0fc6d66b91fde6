package agent

import (
	"time"

	"dcaadvisor/pkg/errors"
)

// State is a node of the turn state machine
type State string

const (
	StateAwaitingUserInput State = "AwaitingUserInput"
	StateQueryingProvider  State = "QueryingProvider"
	StateExecutingTools    State = "ExecutingTools"
	StateDone              State = "Done"
	StateFailed            State = "Failed"
)

var transitions = map[State][]State{
	StateAwaitingUserInput: {StateQueryingProvider, StateFailed},
	StateQueryingProvider:  {StateExecutingTools, StateDone, StateFailed},
	StateExecutingTools:    {StateQueryingProvider, StateFailed},
}

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether the table allows from -> to
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition is one recorded state change
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

type machine struct {
	state   State
	history []Transition
}

func newMachine() *machine {
	return &machine{state: StateAwaitingUserInput}
}

func (m *machine) to(next State) error {
	if !CanTransition(m.state, next) {
		return errors.Wrapf(errors.ErrInternal, "illegal transition %s -> %s", m.state, next)
	}
	m.history = append(m.history, Transition{From: m.state, To: next, At: time.Now().UTC()})
	m.state = next
	return nil
}

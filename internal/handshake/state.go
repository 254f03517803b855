// Package handshake implements the per-connection 3-message mutual
// authentication state machine and the challenge/response protocol that
// drives it.
package handshake

import "fmt"

// State is a session's position in the handshake/authentication
// lifecycle. Closed is terminal: no transition leads out of it.
type State int

const (
	Unauthenticated State = iota
	AwaitingResponse
	AwaitingConfirm
	Authenticated
	Closed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "Unauthenticated"
	case AwaitingResponse:
		return "AwaitingResponse"
	case AwaitingConfirm:
		return "AwaitingConfirm"
	case Authenticated:
		return "Authenticated"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// validTransitions maps each state to the set of states it may move to.
// Any state may move to Closed (signature failure or transport error is
// fatal from anywhere). No entry exists for Closed: it is terminal.
var validTransitions = map[State]map[State]bool{
	Unauthenticated:  {AwaitingResponse: true, AwaitingConfirm: true, Closed: true},
	AwaitingResponse: {Authenticated: true, Closed: true},
	AwaitingConfirm:  {Authenticated: true, Closed: true},
	Authenticated:    {Authenticated: true, Closed: true},
	Closed:           {},
}

// CanTransition reports whether moving from `from` to `to` is permitted.
func CanTransition(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

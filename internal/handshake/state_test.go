package handshake

import "testing"

func TestCanTransition_HappyPath(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{Unauthenticated, AwaitingResponse, true},
		{Unauthenticated, AwaitingConfirm, true},
		{AwaitingResponse, Authenticated, true},
		{AwaitingConfirm, Authenticated, true},
		{Authenticated, Closed, true},
		{Closed, Authenticated, false},
		{Closed, Unauthenticated, false},
		{Authenticated, AwaitingResponse, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%v, %v) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestClosedIsTerminal(t *testing.T) {
	for s := Unauthenticated; s <= Closed; s++ {
		if CanTransition(Closed, s) {
			t.Errorf("Closed should have no outgoing transitions, but allows -> %v", s)
		}
	}
}

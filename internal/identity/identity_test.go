package identity

import "testing"

func TestNewNodeID_Unique(t *testing.T) {
	a, err := NewNodeID()
	if err != nil {
		t.Fatalf("NewNodeID: %v", err)
	}
	b, err := NewNodeID()
	if err != nil {
		t.Fatalf("NewNodeID: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if len(a) == 0 {
		t.Fatalf("expected non-empty id")
	}
}

func TestPeerRecord_Equal(t *testing.T) {
	a := NewPeerRecord(NodeID("n1"), "127.0.0.1", 9001)
	b := NewPeerRecord(NodeID("n1"), "127.0.0.1", 9001)
	c := NewPeerRecord(NodeID("n1"), "127.0.0.1", 9002)

	if !a.Equal(b) {
		t.Fatalf("expected a == b")
	}
	if a.Equal(c) {
		t.Fatalf("expected a != c (port differs)")
	}
}

package routing

import (
	"errors"
	"sync"
	"testing"

	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/eventdispatch"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/wire"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentEnvelope
	peers   []identity.PeerRecord
	failFor map[identity.NodeID]bool
}

type sentEnvelope struct {
	to  identity.NodeID
	env *wire.Envelope
}

func (f *fakeSender) SendTo(peerID identity.NodeID, env *wire.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != nil && f.failFor[peerID] {
		return errors.New("fake: send failed")
	}
	f.sent = append(f.sent, sentEnvelope{to: peerID, env: env})
	return nil
}

func (f *fakeSender) AllPeers() []identity.PeerRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]identity.PeerRecord(nil), f.peers...)
}

func (f *fakeSender) snapshot() []sentEnvelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEnvelope(nil), f.sent...)
}

func newPayload(t *testing.T, senderID string) wire.Envelope {
	t.Helper()
	env, err := wire.NewData(senderID, wire.DataBody{GroupID: "g1", Total: 1, Index: 0, Data: []byte("hi"), State: wire.DataChunk})
	require.NoError(t, err)
	return env
}

func TestRoute_LocalTargetDeliversWithoutNetwork(t *testing.T) {
	sender := &fakeSender{}
	var delivered *wire.Envelope
	eng := NewEngine("self", sender, func(p *wire.Envelope) { delivered = p }, nil, Config{})

	payload := newPayload(t, "self")
	require.NoError(t, eng.Route("self", payload))

	require.NotNil(t, delivered)
	require.Empty(t, sender.snapshot())
}

func TestRoute_UnknownTargetFloods(t *testing.T) {
	sender := &fakeSender{peers: []identity.PeerRecord{
		identity.NewPeerRecord("peer-a", "h", 1),
		identity.NewPeerRecord("peer-b", "h", 2),
	}}
	eng := NewEngine("self", sender, func(*wire.Envelope) {}, nil, Config{})

	payload := newPayload(t, "self")
	require.NoError(t, eng.Route("peer-z", payload))

	sent := sender.snapshot()
	require.Len(t, sent, 2)
}

func TestRoute_KnownTargetGoesDirect(t *testing.T) {
	sender := &fakeSender{}
	eng := NewEngine("self", sender, func(*wire.Envelope) {}, nil, Config{})
	eng.Table().Add("peer-z", "peer-a")

	payload := newPayload(t, "self")
	require.NoError(t, eng.Route("peer-z", payload))

	sent := sender.snapshot()
	require.Len(t, sent, 1)
	require.Equal(t, identity.NodeID("peer-a"), sent[0].to)
	require.Equal(t, wire.Direct, sent[0].env.Routing.Strategy)
}

func TestHandleEnvelope_DeliversAtTarget(t *testing.T) {
	sender := &fakeSender{}
	var delivered *wire.Envelope
	eng := NewEngine("self", sender, func(p *wire.Envelope) { delivered = p }, nil, Config{})

	payload := newPayload(t, "originator")
	env, err := wire.NewRouting("originator", "self", []string{"originator"}, wire.Flood, payload)
	require.NoError(t, err)

	require.NoError(t, eng.HandleEnvelope("originator", &env))
	require.NotNil(t, delivered)
	require.Empty(t, sender.snapshot())
}

func TestHandleEnvelope_DropsDuplicate(t *testing.T) {
	sender := &fakeSender{peers: []identity.PeerRecord{identity.NewPeerRecord("peer-b", "h", 1)}}
	eng := NewEngine("self", sender, func(*wire.Envelope) {}, nil, Config{})

	payload := newPayload(t, "originator")
	env, err := wire.NewRouting("originator", "peer-z", []string{"originator"}, wire.Flood, payload)
	require.NoError(t, err)

	require.NoError(t, eng.HandleEnvelope("originator", &env))
	require.NoError(t, eng.HandleEnvelope("originator", &env))

	require.Len(t, sender.snapshot(), 1, "second delivery of the same message-id must be dropped")
}

func TestHandleEnvelope_DropsWhenHopLimitExceeded(t *testing.T) {
	sender := &fakeSender{peers: []identity.PeerRecord{identity.NewPeerRecord("peer-b", "h", 1)}}
	eng := NewEngine("self", sender, func(*wire.Envelope) {}, nil, Config{})

	route := make([]string, DefaultMaxHops+1)
	for i := range route {
		route[i] = "hop"
	}
	payload := newPayload(t, "originator")
	env, err := wire.NewRouting("originator", "peer-z", route, wire.Flood, payload)
	require.NoError(t, err)

	require.NoError(t, eng.HandleEnvelope("some-peer", &env))
	require.Empty(t, sender.snapshot())
}

func TestHandleEnvelope_FloodExcludesInboundAndVisited(t *testing.T) {
	sender := &fakeSender{peers: []identity.PeerRecord{
		identity.NewPeerRecord("peer-a", "h", 1),
		identity.NewPeerRecord("peer-b", "h", 2),
		identity.NewPeerRecord("peer-c", "h", 3),
	}}
	eng := NewEngine("self", sender, func(*wire.Envelope) {}, nil, Config{})

	payload := newPayload(t, "originator")
	env, err := wire.NewRouting("originator", "peer-z", []string{"originator", "peer-a"}, wire.Flood, payload)
	require.NoError(t, err)

	require.NoError(t, eng.HandleEnvelope("peer-b", &env))

	sent := sender.snapshot()
	require.Len(t, sent, 1)
	require.Equal(t, identity.NodeID("peer-c"), sent[0].to)
}

func TestHandleEnvelope_DiscoverRouteLearnsObservedHop(t *testing.T) {
	sender := &fakeSender{}
	eng := NewEngine("self", sender, func(*wire.Envelope) {}, nil, Config{})

	payload := newPayload(t, "originator")
	env, err := wire.NewRouting("originator", "peer-z", []string{"originator", "peer-a"}, wire.DiscoverRoute, payload)
	require.NoError(t, err)

	require.NoError(t, eng.HandleEnvelope("peer-a", &env))

	require.True(t, eng.Table().Contains("originator"))
	require.Contains(t, eng.Table().NextHops("originator", 0), identity.NodeID("peer-a"))
}

func TestForward_FailureRemovesNextHopAndEmitsRouteLost(t *testing.T) {
	sender := &fakeSender{failFor: map[identity.NodeID]bool{"peer-a": true}}
	sink := &testSink{}
	eng := NewEngine("self", sender, func(*wire.Envelope) {}, sink, Config{})
	eng.Table().Add("peer-z", "peer-a")

	payload := newPayload(t, "self")
	require.NoError(t, eng.Route("peer-z", payload))

	require.False(t, eng.Table().Contains("peer-z"))
	require.NotEmpty(t, sink.snapshot())
}

type testSink struct {
	mu     sync.Mutex
	events []eventdispatch.Event
}

func (s *testSink) Emit(ev eventdispatch.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *testSink) snapshot() []eventdispatch.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]eventdispatch.Event(nil), s.events...)
}

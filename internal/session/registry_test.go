package session

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/eventdispatch"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/signature"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/transport"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []eventdispatch.Event
}

func (c *captureSink) Emit(ev eventdispatch.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) snapshot() []eventdispatch.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]eventdispatch.Event, len(c.events))
	copy(out, c.events)
	return out
}

func newTestHost(t *testing.T, ctx context.Context) *transport.Host {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	h, err := transport.NewHost(ctx, transport.HostConfig{
		PrivateKey:       priv,
		ListenPort:       0,
		ConnMgrLowWater:  100,
		ConnMgrHighWater: 400,
	})
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestRegistry_HandshakeEndToEnd(t *testing.T) {
	ctx := context.Background()

	hostA := newTestHost(t, ctx)
	hostB := newTestHost(t, ctx)

	sigA, err := signature.NewService()
	require.NoError(t, err)
	sigB, err := signature.NewService()
	require.NoError(t, err)

	idA, err := identity.NewNodeID()
	require.NoError(t, err)
	idB, err := identity.NewNodeID()
	require.NoError(t, err)

	sinkA := &captureSink{}
	sinkB := &captureSink{}

	regA := NewRegistry(ctx, idA, sigA, hostA, sinkA, nil, nil)
	regB := NewRegistry(ctx, idB, sigB, hostB, sinkB, nil, nil)
	defer regA.Shutdown(time.Second)
	defer regB.Shutdown(time.Second)

	require.NotEmpty(t, hostB.Addrs())
	err = regA.Connect(ctx, hostB.ID(), hostB.Addrs()[0], "127.0.0.1", 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return regA.Authenticated(idB) && regB.Authenticated(idA)
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, ev := range sinkA.snapshot() {
			if ev.Kind == eventdispatch.PeerConnected {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	peersA := regA.AllPeers()
	require.Len(t, peersA, 1)
	require.Equal(t, idB, peersA[0].PeerID)
}

func TestRegistry_SendToUnknownPeerFailsWithNoRoute(t *testing.T) {
	ctx := context.Background()
	hostA := newTestHost(t, ctx)

	sigA, err := signature.NewService()
	require.NoError(t, err)
	idA, err := identity.NewNodeID()
	require.NoError(t, err)

	regA := NewRegistry(ctx, idA, sigA, hostA, nil, nil, nil)
	defer regA.Shutdown(time.Second)

	unknownPeer, err := identity.NewNodeID()
	require.NoError(t, err)

	err = regA.SendTo(unknownPeer, nil)
	require.ErrorIs(t, err, ErrNoRoute)
}

func TestRegistry_ConnectTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()

	hostA := newTestHost(t, ctx)
	hostB := newTestHost(t, ctx)

	sigA, err := signature.NewService()
	require.NoError(t, err)
	sigB, err := signature.NewService()
	require.NoError(t, err)

	idA, err := identity.NewNodeID()
	require.NoError(t, err)
	idB, err := identity.NewNodeID()
	require.NoError(t, err)

	regA := NewRegistry(ctx, idA, sigA, hostA, nil, nil, nil)
	regB := NewRegistry(ctx, idB, sigB, hostB, nil, nil, nil)
	defer regA.Shutdown(time.Second)
	defer regB.Shutdown(time.Second)

	require.NoError(t, regA.Connect(ctx, hostB.ID(), hostB.Addrs()[0], "127.0.0.1", 0))

	require.Eventually(t, func() bool {
		return regA.Authenticated(idB)
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, regA.Connect(ctx, hostB.ID(), hostB.Addrs()[0], "127.0.0.1", 0))
	require.Equal(t, 1, regA.Count())
}

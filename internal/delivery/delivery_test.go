package delivery

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/wire"
	"github.com/stretchr/testify/require"
)

// fakeRouter wires two Layers together directly, bypassing the network
// entirely, and optionally mutates or drops envelopes in flight so tests
// can simulate corruption and loss.
type fakeRouter struct {
	mu        sync.Mutex
	peers     map[identity.NodeID]*Layer
	transform func(wire.Envelope) (wire.Envelope, bool)
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{peers: make(map[identity.NodeID]*Layer)}
}

func (r *fakeRouter) register(id identity.NodeID, l *Layer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[id] = l
}

func (r *fakeRouter) Route(target identity.NodeID, payload wire.Envelope) error {
	if r.transform != nil {
		var ok bool
		payload, ok = r.transform(payload)
		if !ok {
			return nil
		}
	}
	r.mu.Lock()
	peer := r.peers[target]
	r.mu.Unlock()
	if peer == nil {
		return fmt.Errorf("fake router: no peer %s", target)
	}
	env := payload
	return peer.HandleData(target, &env)
}

type capturedDelivery struct {
	sender identity.NodeID
	data   []byte
}

func newCapturingDeliver() (DeliverFunc, func() []capturedDelivery) {
	var mu sync.Mutex
	var got []capturedDelivery
	fn := func(sender identity.NodeID, data []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, capturedDelivery{sender: sender, data: append([]byte(nil), data...)})
	}
	snapshot := func() []capturedDelivery {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedDelivery(nil), got...)
	}
	return fn, snapshot
}

func TestLayer_SendDeliversSmallPayload(t *testing.T) {
	routerAB, routerBA := newFakeRouter(), newFakeRouter()
	deliverB, snapshotB := newCapturingDeliver()

	layerA := NewLayer("a", routerAB, func(identity.NodeID, []byte) {}, nil, nil, Config{})
	layerB := NewLayer("b", routerBA, deliverB, nil, nil, Config{})
	defer layerA.Shutdown()
	defer layerB.Shutdown()

	routerAB.register("b", layerB)
	routerBA.register("a", layerA)

	data := []byte("hello across the mesh")
	_, err := layerA.Send(context.Background(), "b", data)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(snapshotB()) == 1 }, time.Second, time.Millisecond)
	got := snapshotB()[0]
	require.Equal(t, identity.NodeID("a"), got.sender)
	require.Equal(t, data, got.data)
}

func TestLayer_SendFragmentsLargePayload(t *testing.T) {
	routerAB, routerBA := newFakeRouter(), newFakeRouter()
	deliverB, snapshotB := newCapturingDeliver()

	layerA := NewLayer("a", routerAB, func(identity.NodeID, []byte) {}, nil, nil, Config{})
	layerB := NewLayer("b", routerBA, deliverB, nil, nil, Config{})
	defer layerA.Shutdown()
	defer layerB.Shutdown()

	routerAB.register("b", layerB)
	routerBA.register("a", layerA)

	data := make([]byte, ChunkSize*2+137)
	for i := range data {
		data[i] = byte(i % 251)
	}

	_, err := layerA.Send(context.Background(), "b", data)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(snapshotB()) == 1 }, 2*time.Second, time.Millisecond)
	require.Equal(t, data, snapshotB()[0].data)
}

// TestLayer_ChecksumFailureTriggersRetransmitWithRealData confirms that a
// retransmitted chunk carries the actual original bytes rather than an
// echo of the empty RetransmitRequest body.
func TestLayer_ChecksumFailureTriggersRetransmitWithRealData(t *testing.T) {
	routerAB, routerBA := newFakeRouter(), newFakeRouter()
	deliverB, snapshotB := newCapturingDeliver()

	layerA := NewLayer("a", routerAB, func(identity.NodeID, []byte) {}, nil, nil, Config{})
	layerB := NewLayer("b", routerBA, deliverB, nil, nil, Config{})
	defer layerA.Shutdown()
	defer layerB.Shutdown()

	routerBA.register("a", layerA)

	var corruptedOnce bool
	var mu sync.Mutex
	routerAB.transform = func(env wire.Envelope) (wire.Envelope, bool) {
		mu.Lock()
		defer mu.Unlock()
		if env.Data != nil && env.Data.State == wire.DataChunk && !corruptedOnce {
			corruptedOnce = true
			corrupted := *env.Data
			corrupted.Data = append([]byte(nil), corrupted.Data...)
			corrupted.Data[0] ^= 0xFF
			env.Data = &corrupted
		}
		return env, true
	}
	routerAB.register("b", layerB)

	data := []byte("checksum must catch this flipped byte")
	_, err := layerA.Send(context.Background(), "b", data)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(snapshotB()) == 1 }, 2*time.Second, time.Millisecond)
	require.Equal(t, data, snapshotB()[0].data, "retransmitted chunk must carry the original bytes")
}

func TestLayer_RetransmitExceedingMaxRetriesAbandonsGroup(t *testing.T) {
	routerAB, routerBA := newFakeRouter(), newFakeRouter()
	deliverB, _ := newCapturingDeliver()

	var failed []string
	var failMu sync.Mutex
	onFail := func(groupID string, target identity.NodeID, err error) {
		failMu.Lock()
		defer failMu.Unlock()
		failed = append(failed, groupID)
	}

	layerA := NewLayer("a", routerAB, func(identity.NodeID, []byte) {}, onFail, nil, Config{})
	layerB := NewLayer("b", routerBA, deliverB, nil, nil, Config{})
	defer layerA.Shutdown()
	defer layerB.Shutdown()

	routerBA.register("a", layerA)
	routerAB.transform = func(env wire.Envelope) (wire.Envelope, bool) {
		if env.Data != nil && env.Data.State == wire.DataChunk {
			corrupted := *env.Data
			corrupted.Data = append([]byte(nil), corrupted.Data...)
			corrupted.Data[0] ^= 0xFF
			env.Data = &corrupted
		}
		return env, true
	}
	routerAB.register("b", layerB)

	_, err := layerA.Send(context.Background(), "b", []byte("never arrives intact"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		failMu.Lock()
		defer failMu.Unlock()
		return len(failed) == 1
	}, 2*time.Second, time.Millisecond)
}

func TestLayer_SendToUnreachablePeerPropagatesRouteError(t *testing.T) {
	router := newFakeRouter()
	layer := NewLayer("a", router, func(identity.NodeID, []byte) {}, nil, nil, Config{})
	defer layer.Shutdown()

	_, err := layer.Send(context.Background(), "nowhere", []byte("data"))
	require.Error(t, err)
}

// TestLayer_SweepAbandonsStalledGroupAfterMaxRetries exercises the
// timeout sweep's own abandonment path, not the RetransmitRequest path
// TestLayer_RetransmitExceedingMaxRetriesAbandonsGroup already covers:
// the target never acknowledges anything, so only sweep() ever touches
// the tracker's retry count.
func TestLayer_SweepAbandonsStalledGroupAfterMaxRetries(t *testing.T) {
	router := newFakeRouter() // no peer registered: every Route call fails

	var failed []string
	var mu sync.Mutex
	onFail := func(groupID string, target identity.NodeID, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, groupID)
	}

	layer := NewLayer("a", router, func(identity.NodeID, []byte) {}, onFail, nil, Config{
		ChunkTimeout:  10 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
		MaxRetries:    2,
	})
	defer layer.Shutdown()

	groupID, err := layer.Send(context.Background(), "nowhere", []byte("stalled"))
	require.Error(t, err)
	require.NotEmpty(t, groupID)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failed) == 1 && failed[0] == groupID
	}, 2*time.Second, 5*time.Millisecond)
}

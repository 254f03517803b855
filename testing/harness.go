// Package testing holds shared harness helpers for integration tests
// that exercise two or more mesh nodes together: a connected node pair
// over loopback TCP, and a deterministic clock for tests that need to
// control elapsed time without sleeping.
//
// It deliberately shares its import name with the standard library's
// testing package; callers alias one of the two at the import site.
package testing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	labyrinth "github.com/sagacious-satadru/Nexus-Cipher-Labyrinth"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
)

// nextDiscoveryPort hands out distinct UDP ports to successive node
// pairs so concurrent tests never collide on the mesh's discovery
// socket. Starts well above the well-known range and above the mesh's
// own default discovery port.
var nextDiscoveryPort atomic.Int32

func init() {
	nextDiscoveryPort.Store(55000)
}

func allocDiscoveryPort() int {
	return int(nextDiscoveryPort.Add(1))
}

// NodePair is two mesh nodes, each listening on a loopback TCP port with
// its own UDP discovery socket, already connected and past the
// handshake. Tests drive Send/Connect/Peers against A and B directly.
type NodePair struct {
	A, B *labyrinth.Node
}

// NewNodePair builds two nodes from the given options (applied to both
// sides identically; callers wanting asymmetric configuration should
// build nodes directly with labyrinth.New instead), starts them,
// connects A to B over loopback, and waits for the handshake to
// complete before returning.
//
// Any ConfigOption touching ListenPort or DiscoveryPort is overridden —
// the harness controls those to keep the pair from colliding with
// itself or with other concurrently-running pairs. NodeID is not
// overridden, so a WithNodeID option gives both nodes the same id.
func NewNodePair(ctx context.Context, opts ...labyrinth.ConfigOption) (*NodePair, error) {
	nodeA, err := NewLoopbackNode(opts...)
	if err != nil {
		return nil, fmt.Errorf("testing: create node A: %w", err)
	}
	nodeB, err := NewLoopbackNode(opts...)
	if err != nil {
		nodeA.Stop()
		return nil, fmt.Errorf("testing: create node B: %w", err)
	}

	pair := &NodePair{A: nodeA, B: nodeB}

	if err := ConnectDirect(ctx, nodeA, nodeB); err != nil {
		pair.Close()
		return nil, err
	}

	return pair, nil
}

// NewLoopbackNode builds and starts a single node listening on a
// kernel-assigned loopback TCP port with its own discovery socket, for
// tests that need more than a single connected pair (e.g. a multi-hop
// chain). Any ConfigOption touching ListenPort or DiscoveryPort is
// overridden for the same reason NewNodePair overrides them.
func NewLoopbackNode(opts ...labyrinth.ConfigOption) (*labyrinth.Node, error) {
	nodeOpts := append(append([]labyrinth.ConfigOption{}, opts...),
		labyrinth.WithListenPort(0),
		labyrinth.WithDiscoveryPort(allocDiscoveryPort()),
	)

	cfg, err := labyrinth.NewConfig(nodeOpts...)
	if err != nil {
		return nil, fmt.Errorf("testing: build config: %w", err)
	}
	node, err := labyrinth.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("testing: create node: %w", err)
	}
	if err := node.Start(); err != nil {
		return nil, fmt.Errorf("testing: start node: %w", err)
	}
	return node, nil
}

// ConnectDirect dials from to to over loopback and waits until the
// handshake promotes the session to Authenticated on from's side.
func ConnectDirect(ctx context.Context, from, to *labyrinth.Node) error {
	port, err := loopbackTCPPort(to)
	if err != nil {
		return fmt.Errorf("testing: resolve target listen port: %w", err)
	}
	if err := from.Connect(ctx, to.PeerID(), "127.0.0.1", port); err != nil {
		return fmt.Errorf("testing: connect peers: %w", err)
	}
	if err := waitAuthenticated(ctx, from, to.NodeID()); err != nil {
		return fmt.Errorf("testing: wait for handshake: %w", err)
	}
	return nil
}

// Close stops both nodes, tolerating either or both being nil so it is
// safe to call after a partial failure in NewNodePair.
func (p *NodePair) Close() {
	if p == nil {
		return
	}
	if p.A != nil {
		p.A.Stop()
	}
	if p.B != nil {
		p.B.Stop()
	}
}

func loopbackTCPPort(n *labyrinth.Node) (int, error) {
	for _, addr := range n.Addrs() {
		if p, err := addr.ValueForProtocol(multiaddr.P_TCP); err == nil {
			var port int
			if _, err := fmt.Sscanf(p, "%d", &port); err == nil {
				return port, nil
			}
		}
	}
	return 0, fmt.Errorf("no tcp listen address found")
}

// waitAuthenticated polls from's peer list until remote appears or ctx
// is done. The handshake runs on the registry's own goroutines, so
// Connect returns before authentication completes.
func waitAuthenticated(ctx context.Context, from *labyrinth.Node, remote identity.NodeID) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		for _, rec := range from.Peers() {
			if rec.PeerID == remote {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RemotePeerID resolves the transport-level peer id a node advertises,
// for tests that need to dial it directly rather than through a
// NodePair.
func RemotePeerID(n *labyrinth.Node) peer.ID {
	return n.PeerID()
}

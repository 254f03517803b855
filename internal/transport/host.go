// Package transport wraps the libp2p host and stream primitives the node
// uses as its session-bearing transport. The wire-level framing and
// envelope dispatch live one layer up in internal/session; this package
// only owns connecting, accepting, and raw envelope read/write.
package transport

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/libp2p/go-libp2p"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/multiformats/go-multiaddr"
)

// HostConfig configures the underlying libp2p host. PrivateKey secures the
// transport-level identity; it is independent from the application-level
// ML-DSA signing key used by the handshake engine, which authenticates
// the mesh session carried inside this transport.
type HostConfig struct {
	PrivateKey       ed25519.PrivateKey
	ListenPort       int
	ConnMgrLowWater  int
	ConnMgrHighWater int
}

// DefaultHostConfig returns sensible connection-manager watermarks.
func DefaultHostConfig() HostConfig {
	return HostConfig{ConnMgrLowWater: 100, ConnMgrHighWater: 400}
}

// Host wraps a libp2p host and exposes exactly the operations the
// Connection Registry needs: dial, accept-handler registration, and
// stream opening.
type Host struct {
	host host.Host
}

// NewHost creates and starts a libp2p host listening on the given TCP
// port (0 selects a kernel-assigned port).
func NewHost(ctx context.Context, cfg HostConfig) (*Host, error) {
	priv, err := libp2pcrypto.UnmarshalEd25519PrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("transport: convert private key: %w", err)
	}

	listenAddr := fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", cfg.ListenPort)

	low, high := cfg.ConnMgrLowWater, cfg.ConnMgrHighWater
	if low == 0 && high == 0 {
		d := DefaultHostConfig()
		low, high = d.ConnMgrLowWater, d.ConnMgrHighWater
	}
	mgr, err := connmgr.NewConnManager(low, high, connmgr.WithGracePeriod(0))
	if err != nil {
		return nil, fmt.Errorf("transport: create connection manager: %w", err)
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(listenAddr),
		libp2p.ConnectionManager(mgr),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: create libp2p host: %w", err)
	}

	return &Host{host: h}, nil
}

// WrapHost adapts an already-constructed libp2p host.Host, such as one
// produced by mocknet for in-memory tests, into a Host.
func WrapHost(h host.Host) *Host {
	return &Host{host: h}
}

// ID returns this host's libp2p peer id — the transport-level identity,
// distinct from the node-id carried in envelope headers.
func (h *Host) ID() peer.ID {
	return h.host.ID()
}

// Addrs returns the addresses this host is listening on.
func (h *Host) Addrs() []multiaddr.Multiaddr {
	return h.host.Addrs()
}

// Connect dials remotePeerID at addr and returns the opened session
// stream.
func (h *Host) Connect(ctx context.Context, remotePeerID peer.ID, addr multiaddr.Multiaddr) (network.Stream, error) {
	pi := peer.AddrInfo{ID: remotePeerID, Addrs: []multiaddr.Multiaddr{addr}}
	h.host.Peerstore().AddAddrs(pi.ID, pi.Addrs, peerstore.PermanentAddrTTL)
	if err := h.host.Connect(ctx, pi); err != nil {
		return nil, fmt.Errorf("transport: connect to %s: %w", remotePeerID, err)
	}
	return h.host.NewStream(ctx, remotePeerID, SessionProtocolID)
}

// SetStreamHandler registers the handler invoked for inbound session
// streams.
func (h *Host) SetStreamHandler(handler network.StreamHandler) {
	h.host.SetStreamHandler(SessionProtocolID, handler)
}

// Disconnect closes any connection to the given peer.
func (h *Host) Disconnect(peerID peer.ID) error {
	return h.host.Network().ClosePeer(peerID)
}

// Close shuts down the host.
func (h *Host) Close() error {
	return h.host.Close()
}

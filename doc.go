/*
Package labyrinth implements a peer-to-peer mesh node: authenticated,
post-quantum-signed peer sessions and reliable, multi-hop delivery of
byte payloads over libp2p.

Labyrinth handles session authentication, envelope routing, and chunked
reliable delivery while delegating peer discovery's broadcast medium and
transport dialing to libp2p and the bundled UDP discovery service.

# Features

  - Three-message challenge/response handshake authenticated with
    ML-DSA (Dilithium mode 3) signatures
  - Independent transport (Ed25519/libp2p) and application-level
    (Dilithium) identities
  - Direct, flooded, and multipath envelope routing with loop and
    duplicate suppression
  - Chunked reliable delivery with per-chunk checksums,
    retransmission, and timeout
  - Liveness supervision: periodic health sweeps, bounded reconnection,
    and sampled network statistics
  - UDP broadcast peer discovery
  - Non-blocking network event notifications
  - Thread-safe concurrent operations

# Quick Start

Build a node with generated key material and defaults:

	cfg, err := labyrinth.NewConfig(
		labyrinth.WithListenPort(9000),
		labyrinth.WithDiscoveryPort(54321),
	)
	if err != nil {
		// handle error
	}

	node, err := labyrinth.New(cfg)
	if err != nil {
		// handle error
	}

	if err := node.Start(); err != nil {
		// handle error
	}
	defer node.Stop()

Connect to a peer whose transport identity and address are already
known, and register a delivery callback:

	node.OnMessageDelivered(func(senderID string, data []byte) {
		fmt.Printf("from %s: %s\n", senderID, data)
	})

	if err := node.Connect(ctx, remotePeerID, "203.0.113.7", 9000); err != nil {
		// handle error
	}

Watch for the resulting PeerConnected event, then send once the peer is
authenticated:

	for event := range node.Events() {
		if event.Kind == eventdispatch.PeerConnected {
			peerID := identity.NodeID(event.PeerID)
			if err := node.Send(ctx, peerID, []byte("hello mesh")); err != nil {
				// handle error
			}
		}
	}

# Architecture

Labyrinth separates concerns across independently testable layers:

  - Transport Host: libp2p-backed stream listener and dialer
  - Signature Service: ML-DSA keypair and sign/verify operations
  - Connection Registry: per-peer handshake state machine and session
    bookkeeping
  - Routing Engine: next-hop resolution and envelope forwarding across
    the overlay
  - Reliable Delivery Layer: fragmentation, reassembly, retransmission
  - Discovery Service: UDP broadcast peer announcement
  - Liveness Supervisor: health sweeps, reconnection, stats sampling

The Node facade wires these together behind a single lifecycle.

# Handshake Flow

 1. Connect() dials the peer's transport address and opens a session
    stream
 2. The registry sends a HandshakeInit carrying a fresh challenge; no
    timer bounds how long the peer takes to reply
 3. The peer replies with a Response signed over the challenge nonce
 4. This node verifies the signature and replies with a Confirm
 5. Both sides transition to Authenticated; a PeerConnected event fires
    and the liveness supervisor begins tracking the peer

# Security

  - ML-DSA (Dilithium mode 3) signatures authenticate session peers,
    independent of the libp2p transport identity
  - Handshake challenges are single-use; replayed responses are rejected
  - Each chunk is checksum-verified on receipt; a mismatched chunk is
    re-requested before reassembly and delivery to the application
    callback
  - Signing key material never leaves the signature service and is
    never logged

# Thread Safety

All public Node methods are safe for concurrent use. The channel
returned by Events is safe for concurrent reads from a single consumer.

# Dependencies

  - github.com/libp2p/go-libp2p - session transport
  - github.com/cloudflare/circl/sign/dilithium - post-quantum signatures
  - github.com/fxamacker/cbor/v2 - envelope wire encoding
  - github.com/multiformats/go-multiaddr - transport addressing
*/
package labyrinth

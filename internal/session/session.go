// Package session owns the set of live peer sessions: it drives each
// session's handshake to completion, gates post-handshake traffic behind
// authentication, and dispatches inbound envelopes to the subsystems that
// care about them. Sessions themselves are exclusively owned here — other
// subsystems address a peer by mesh node-id and look it up through the
// Registry, never by holding a Session directly.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/handshake"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/transport"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/wire"
)

// Session tracks one transport-level connection through its handshake and
// into authenticated service. A Session is created Unauthenticated and
// ends Closed; there is no transition out of Closed.
type Session struct {
	transportID peer.ID
	outbound    bool
	engine      *handshake.Engine
	stream      *transport.Stream

	// host/port are known only for outbound sessions (the dial target);
	// inbound sessions leave both zero-valued.
	host string
	port int

	mu           sync.Mutex
	state        handshake.State
	remoteID     identity.NodeID
	lastActivity time.Time
	createdAt    time.Time
}

func newSession(transportID peer.ID, outbound bool, engine *handshake.Engine, stream *transport.Stream, host string, port int) *Session {
	now := time.Now()
	return &Session{
		transportID:  transportID,
		outbound:     outbound,
		engine:       engine,
		stream:       stream,
		host:         host,
		port:         port,
		state:        handshake.Unauthenticated,
		lastActivity: now,
		createdAt:    now,
	}
}

// Age returns how long this session has existed, from stream
// registration to now. At promotion this is the end-to-end handshake
// round-trip time.
func (s *Session) Age() time.Duration {
	return time.Since(s.createdAt)
}

// State returns the session's current handshake state.
func (s *Session) State() handshake.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RemoteID returns the mesh node-id learned from the peer, or "" if the
// handshake has not progressed far enough to know it.
func (s *Session) RemoteID() identity.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteID
}

// TransportID returns the libp2p peer id this session's stream runs over.
func (s *Session) TransportID() peer.ID {
	return s.transportID
}

// Outbound reports whether this node initiated the connection.
func (s *Session) Outbound() bool {
	return s.outbound
}

// PeerRecord reconstructs the mesh-level address record for this session,
// if host/port are known.
func (s *Session) PeerRecord() (identity.PeerRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.host == "" || s.remoteID == "" {
		return identity.PeerRecord{}, false
	}
	return identity.NewPeerRecord(s.remoteID, s.host, s.port), true
}

// LastActivity returns the time of the most recently processed envelope.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// transition validates and applies a state change, returning an error if
// the transition is not permitted.
func (s *Session) transition(to handshake.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !handshake.CanTransition(s.state, to) {
		return fmt.Errorf("session: illegal transition %s -> %s", s.state, to)
	}
	s.state = to
	return nil
}

func (s *Session) setRemoteID(id identity.NodeID) {
	s.mu.Lock()
	s.remoteID = id
	s.mu.Unlock()
}

// Send writes env to the session's stream.
func (s *Session) Send(env *wire.Envelope) error {
	return s.stream.Send(env)
}

// Close closes the underlying stream and transitions to Closed. Safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	s.state = handshake.Closed
	s.mu.Unlock()
	return s.stream.Close()
}

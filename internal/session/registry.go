package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/eventdispatch"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/handshake"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/signature"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/transport"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/wire"
)

// ErrNoRoute is returned by SendTo when no authenticated session exists
// for the requested peer.
var ErrNoRoute = errors.New("session: no authenticated session for peer")

// EventSink receives NetworkEvents raised by the registry. Satisfied by
// *eventdispatch.Dispatcher.
type EventSink interface {
	Emit(eventdispatch.Event)
}

// EnvelopeHandler is invoked for every Data or Routing envelope received
// on an Authenticated session. It runs on the registry's dispatch
// goroutine; implementations must not block.
type EnvelopeHandler func(from identity.NodeID, env *wire.Envelope)

// HandshakeFunc is invoked when a session is promoted to Authenticated,
// with the elapsed time from stream registration to promotion — the
// handshake round-trip. Optional; nil disables notification.
type HandshakeFunc func(peerID identity.NodeID, rtt time.Duration)

// incomingBufferSize bounds the registry's shared inbound channel. Stream
// readers drop rather than block when it is full.
const incomingBufferSize = 256

// Registry owns every live session, keyed both by the transport-level
// peer id (one entry per stream) and by mesh node-id (one entry per
// authenticated peer, populated only after promotion).
type Registry struct {
	localID identity.NodeID
	sig     *signature.Service
	host    *transport.Host
	events  EventSink
	onEnvelope      EnvelopeHandler
	onAuthenticated HandshakeFunc

	incoming chan transport.IncomingEnvelope

	mu         sync.RWMutex
	byTransport map[peer.ID]*Session
	byMeshID    map[identity.NodeID]*Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a registry bound to the given transport host. onEnvelope
// is called for Data/Routing traffic on Authenticated sessions; events
// receives the NetworkEvents the registry itself raises (PeerConnected,
// PeerDisconnected).
func NewRegistry(ctx context.Context, localID identity.NodeID, sig *signature.Service, host *transport.Host, events EventSink, onEnvelope EnvelopeHandler, onAuthenticated HandshakeFunc) *Registry {
	rctx, cancel := context.WithCancel(ctx)
	r := &Registry{
		localID:         localID,
		sig:             sig,
		host:            host,
		events:          events,
		onEnvelope:      onEnvelope,
		onAuthenticated: onAuthenticated,
		incoming:        make(chan transport.IncomingEnvelope, incomingBufferSize),
		byTransport:     make(map[peer.ID]*Session),
		byMeshID:        make(map[identity.NodeID]*Session),
		ctx:             rctx,
		cancel:          cancel,
	}
	host.SetStreamHandler(r.handleInboundStream)
	r.wg.Add(1)
	go r.dispatchLoop()
	return r
}

// Connect opens a transport connection to remotePeerID at addr, creates an
// Unauthenticated outbound session, and sends the initial handshake
// message. host/port are recorded for later PeerRecord reconstruction.
func (r *Registry) Connect(ctx context.Context, remotePeerID peer.ID, addr multiaddr.Multiaddr, host string, port int) error {
	r.mu.RLock()
	_, exists := r.byTransport[remotePeerID]
	r.mu.RUnlock()
	if exists {
		return nil
	}

	raw, err := r.host.Connect(ctx, remotePeerID, addr)
	if err != nil {
		return fmt.Errorf("session: connect to %s: %w", remotePeerID, err)
	}

	sess := r.registerStream(remotePeerID, raw, true, host, port)

	init, err := sess.engine.CreateInitial()
	if err != nil {
		r.closeWithEvent(sess, "create initial handshake message failed: "+err.Error())
		return err
	}
	if err := sess.transition(handshake.AwaitingResponse); err != nil {
		r.closeWithEvent(sess, err.Error())
		return err
	}
	if err := sess.Send(&init); err != nil {
		r.closeWithEvent(sess, "send handshake init failed: "+err.Error())
		return err
	}
	return nil
}

// handleInboundStream is registered as the libp2p stream handler: every
// accepted stream becomes an Unauthenticated session awaiting a
// HandshakeInit.
func (r *Registry) handleInboundStream(raw network.Stream) {
	r.registerStream(raw.Conn().RemotePeer(), raw, false, "", 0)
}

func (r *Registry) registerStream(transportID peer.ID, raw network.Stream, outbound bool, host string, port int) *Session {
	engine := handshake.NewEngine(string(r.localID), r.sig)
	stream := transport.NewStream(r.ctx, transportID, raw, r.incoming, nil)
	sess := newSession(transportID, outbound, engine, stream, host, port)

	r.mu.Lock()
	if existing, ok := r.byTransport[transportID]; ok {
		// Replacing an existing stream for the same transport peer:
		// the old one is stale (a redial), close it.
		r.mu.Unlock()
		existing.Close()
		r.mu.Lock()
	}
	r.byTransport[transportID] = sess
	r.mu.Unlock()
	return sess
}

func (r *Registry) dispatchLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-r.incoming:
			if !ok {
				return
			}
			r.handle(msg)
		}
	}
}

func (r *Registry) handle(msg transport.IncomingEnvelope) {
	r.mu.RLock()
	sess, ok := r.byTransport[msg.PeerID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	sess.touch()

	env := msg.Env
	switch env.Kind {
	case wire.KindHandshakeInit:
		r.handleInit(sess, env)
	case wire.KindHandshakeResponse:
		r.handleResponse(sess, env)
	case wire.KindHandshakeConfirm:
		r.handleConfirm(sess, env)
	default:
		if sess.State() != handshake.Authenticated {
			r.closeWithEvent(sess, fmt.Sprintf("received %s before authentication", env.Kind))
			return
		}
		if r.onEnvelope != nil {
			r.onEnvelope(sess.RemoteID(), env)
		}
	}
}

func (r *Registry) handleInit(sess *Session, env *wire.Envelope) {
	if sess.State() != handshake.Unauthenticated {
		r.closeWithEvent(sess, "unexpected HandshakeInit")
		return
	}
	resp, err := sess.engine.HandleInit(env)
	if err != nil {
		r.closeWithEvent(sess, "handshake init rejected: "+err.Error())
		return
	}
	sess.setRemoteID(identity.NodeID(env.SenderID))
	if err := sess.transition(handshake.AwaitingConfirm); err != nil {
		r.closeWithEvent(sess, err.Error())
		return
	}
	if err := sess.Send(&resp); err != nil {
		r.closeWithEvent(sess, "send handshake response failed: "+err.Error())
	}
}

func (r *Registry) handleResponse(sess *Session, env *wire.Envelope) {
	if sess.State() != handshake.AwaitingResponse {
		r.closeWithEvent(sess, "unexpected HandshakeResponse")
		return
	}
	confirm, err := sess.engine.HandleResponse(env)
	if err != nil {
		r.closeWithEvent(sess, "handshake response rejected: "+err.Error())
		return
	}
	sess.setRemoteID(identity.NodeID(env.SenderID))
	if err := sess.Send(&confirm); err != nil {
		r.closeWithEvent(sess, "send handshake confirm failed: "+err.Error())
		return
	}
	r.promote(sess)
}

func (r *Registry) handleConfirm(sess *Session, env *wire.Envelope) {
	if sess.State() != handshake.AwaitingConfirm {
		r.closeWithEvent(sess, "unexpected HandshakeConfirm")
		return
	}
	if !sess.engine.VerifyConfirm(env) {
		r.closeWithEvent(sess, "handshake confirm rejected")
		return
	}
	r.promote(sess)
}

// promote transitions sess to Authenticated and registers it under its
// mesh node-id, resolving a race between two independently-completing
// handshakes for the same peer by keeping whichever session registered
// first and closing the other.
func (r *Registry) promote(sess *Session) {
	remoteID := sess.RemoteID()

	r.mu.Lock()
	if existing, ok := r.byMeshID[remoteID]; ok && existing != sess {
		r.mu.Unlock()
		sess.Close()
		return
	}
	if err := sess.transition(handshake.Authenticated); err != nil {
		r.mu.Unlock()
		r.closeWithEvent(sess, err.Error())
		return
	}
	r.byMeshID[remoteID] = sess
	r.mu.Unlock()

	r.emit(eventdispatch.Event{
		Kind:        eventdispatch.PeerConnected,
		PeerID:      string(remoteID),
		Timestamp:   time.Now(),
		Description: "handshake completed",
	})

	if r.onAuthenticated != nil {
		r.onAuthenticated(remoteID, sess.Age())
	}
}

func (r *Registry) closeWithEvent(sess *Session, reason string) {
	remoteID := sess.RemoteID()
	sess.Close()

	r.mu.Lock()
	delete(r.byTransport, sess.TransportID())
	if remoteID != "" {
		if existing, ok := r.byMeshID[remoteID]; ok && existing == sess {
			delete(r.byMeshID, remoteID)
		}
	}
	r.mu.Unlock()

	if remoteID != "" {
		r.emit(eventdispatch.Event{
			Kind:        eventdispatch.PeerDisconnected,
			PeerID:      string(remoteID),
			Description: reason,
			Timestamp:   time.Now(),
		})
	}
}

func (r *Registry) emit(ev eventdispatch.Event) {
	if r.events != nil {
		r.events.Emit(ev)
	}
}

// SendTo delivers env to the authenticated session for peerID, or returns
// ErrNoRoute if none exists.
func (r *Registry) SendTo(peerID identity.NodeID, env *wire.Envelope) error {
	r.mu.RLock()
	sess, ok := r.byMeshID[peerID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoRoute
	}
	return sess.Send(env)
}

// Authenticated reports whether an authenticated session currently exists
// for peerID.
func (r *Registry) Authenticated(peerID identity.NodeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byMeshID[peerID]
	return ok
}

// AllPeers returns a snapshot of every currently-authenticated peer.
func (r *Registry) AllPeers() []identity.PeerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]identity.PeerRecord, 0, len(r.byMeshID))
	for id, sess := range r.byMeshID {
		if rec, ok := sess.PeerRecord(); ok {
			out = append(out, rec)
		} else {
			out = append(out, identity.NewPeerRecord(id, "", 0))
		}
	}
	return out
}

// Count returns the number of currently-authenticated peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byMeshID)
}

// SessionsByState returns a count of every live session (one per
// transport-level stream, including ones still mid-handshake) bucketed
// by handshake.State, for the Node Facade's network stats.
func (r *Registry) SessionsByState() map[handshake.State]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[handshake.State]int, 4)
	for _, sess := range r.byTransport {
		counts[sess.State()]++
	}
	return counts
}

// LastSeen returns the time of the most recently processed envelope on
// peerID's authenticated session, for the Liveness Supervisor's health
// check.
func (r *Registry) LastSeen(peerID identity.NodeID) (time.Time, bool) {
	r.mu.RLock()
	sess, ok := r.byMeshID[peerID]
	r.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	return sess.LastActivity(), true
}

// TransportFor returns the libp2p peer id backing peerID's authenticated
// session, so the Liveness Supervisor can redial it by the same identity
// rather than a freshly-learned one.
func (r *Registry) TransportFor(peerID identity.NodeID) (peer.ID, bool) {
	r.mu.RLock()
	sess, ok := r.byMeshID[peerID]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	return sess.TransportID(), true
}

// Shutdown closes every session and stops the dispatch loop. It waits up
// to the given timeout for the dispatch loop to exit.
func (r *Registry) Shutdown(timeout time.Duration) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.byTransport))
	for _, sess := range r.byTransport {
		sessions = append(sessions, sess)
	}
	r.byTransport = make(map[peer.ID]*Session)
	r.byMeshID = make(map[identity.NodeID]*Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

package labyrinth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/delivery"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/discovery"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/eventdispatch"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/liveness"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/routing"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/session"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/signature"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/transport"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/wire"
)

// Node is the main entry point for Nexus-Cipher-Labyrinth mesh
// communications. It aggregates the transport host, the handshake and
// session registry, the routing and delivery layers, discovery, and the
// liveness supervisor behind a single lifecycle and a single public API.
//
// All public methods are thread-safe.
type Node struct {
	cfg *Config

	host      *transport.Host
	sig       *signature.Service
	registry  *session.Registry
	routing   *routing.Engine
	delivery  *delivery.Layer
	discovery *discovery.Service
	liveness  *liveness.Supervisor
	events    *eventdispatch.Dispatcher

	mu        sync.Mutex
	onMessage func(senderID string, data []byte)

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	startMu sync.Mutex
}

// New builds a mesh node from cfg. The node is not started until Start
// is called; construction already stands up the transport host and
// begins accepting inbound session streams, since libp2p offers no way
// to create a host without binding its listener.
func New(cfg *Config) (*Node, error) {
	if cfg == nil {
		return nil, NewError(ErrCodeConfiguration, "config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sig, err := newSigningService(cfg)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeConfiguration, "create signing service", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	host, err := transport.NewHost(ctx, transport.HostConfig{
		PrivateKey: cfg.TransportKey,
		ListenPort: cfg.ListenPort,
	})
	if err != nil {
		cancel()
		return nil, NewErrorWithCause(ErrCodeTransport, "create transport host", err)
	}

	eventLog := eventdispatch.NewLog(cfg.EventLogCapacity)
	dispatcher := eventdispatch.NewDispatcher(eventLog, 0)

	n := &Node{
		cfg:    cfg,
		host:   host,
		sig:    sig,
		events: dispatcher,
		ctx:    ctx,
		cancel: cancel,
	}

	// routingEngine and sup are forward-declared: the registry's
	// onEnvelope callback must reach the routing engine, and the
	// handshake-promotion callback must reach the liveness supervisor,
	// but both are constructed after the registry that needs them.
	var routingEngine *routing.Engine
	var sup *liveness.Supervisor

	onEnvelope := func(from identity.NodeID, env *wire.Envelope) {
		if err := routingEngine.HandleEnvelope(from, env); err != nil {
			cfg.Logger.Warn("routing: handle envelope failed", "peer", from, "err", err)
		}
	}
	onAuthenticated := func(peerID identity.NodeID, rtt time.Duration) {
		cfg.Metrics.HandshakeDuration(rtt.Seconds())
		cfg.Metrics.SessionEstablished("inbound")
		if sup != nil {
			sup.RecordLatency(peerID, rtt)
		}
	}

	registry := session.NewRegistry(ctx, cfg.NodeID, sig, host, dispatcher, onEnvelope, onAuthenticated)

	var deliveryLayer *delivery.Layer
	deliverToApp := func(payload *wire.Envelope) {
		sender := identity.NodeID(payload.SenderID)
		if err := deliveryLayer.HandleData(sender, payload); err != nil {
			cfg.Logger.Warn("delivery: handle routed data failed", "peer", sender, "err", err)
		}
	}

	routingEngine = routing.NewEngine(cfg.NodeID, registry, deliverToApp, dispatcher, routing.Config{
		MaxHops:          cfg.MaxHops,
		RecentMessageTTL: cfg.RecentMessageTTL,
	})

	onChunkFail := func(groupID string, target identity.NodeID, err error) {
		cfg.Logger.Warn("delivery: transfer abandoned", "group", groupID, "target", target, "err", err)
	}
	appDeliver := func(sender identity.NodeID, data []byte) {
		n.mu.Lock()
		cb := n.onMessage
		n.mu.Unlock()
		if cb != nil {
			cb(string(sender), data)
		}
	}
	deliveryLayer = delivery.NewLayer(cfg.NodeID, routingEngine, appDeliver, onChunkFail, nil, delivery.Config{
		ChunkSize:     cfg.ChunkSize,
		ChunkTimeout:  cfg.ChunkTimeout,
		MaxRetries:    cfg.MaxChunkRetries,
		SweepInterval: cfg.SweepInterval,
	})

	sup = liveness.NewSupervisor(registry, dispatcher, liveness.Config{
		HealthCheckInterval:   cfg.HealthSweepInterval,
		MetricsSampleInterval: cfg.MetricsSampleInterval,
		MaxReconnectAttempts:  cfg.MaxReconnectAttempts,
	})

	disc, err := discovery.NewService(cfg.NodeID, "0.0.0.0", listenPort(host, cfg.ListenPort), host.ID().String(), registry, discovery.Config{
		Port:               cfg.DiscoveryPort,
		BroadcastInterval:  cfg.DiscoveryBroadcastInterval,
		StaleSweepInterval: cfg.DiscoveryStaleSweepInterval,
	})
	if err != nil {
		cancel()
		host.Close()
		return nil, NewErrorWithCause(ErrCodeTransport, "create discovery service", err)
	}

	n.registry = registry
	n.routing = routingEngine
	n.delivery = deliveryLayer
	n.liveness = sup
	n.discovery = disc
	return n, nil
}

// newSigningService creates the application-level ML-DSA signing
// service, seeding it deterministically when the caller supplied a
// seed and generating a fresh keypair otherwise.
func newSigningService(cfg *Config) (*signature.Service, error) {
	if len(cfg.SigningKeySeed) > 0 {
		return signature.NewServiceFromSeed(cfg.SigningKeySeed)
	}
	return signature.NewService()
}

// listenPort resolves the TCP port this node advertises for its session
// listener: the configured port verbatim when non-zero, otherwise the
// kernel-assigned port libp2p actually bound.
func listenPort(host *transport.Host, configured int) int {
	if configured != 0 {
		return configured
	}
	for _, addr := range host.Addrs() {
		if port, err := addr.ValueForProtocol(multiaddr.P_TCP); err == nil {
			var p int
			if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
				return p
			}
		}
	}
	return 0
}

// Start begins accepting discovery traffic and runs the liveness
// supervisor's health and metrics loops. Returns ErrNodeAlreadyStarted
// if called twice. The session listener is already live by the time
// New returns.
func (n *Node) Start() error {
	n.startMu.Lock()
	defer n.startMu.Unlock()
	if n.started {
		return ErrNodeAlreadyStarted
	}
	n.discovery.Start()
	n.liveness.Start()
	n.started = true
	n.cfg.Logger.Info("node started", "node_id", n.cfg.NodeID, "peer_id", n.host.ID())
	return nil
}

// Stop shuts down every subsystem and releases the node's resources.
// Returns ErrNodeNotStarted if the node was never started.
func (n *Node) Stop() error {
	n.startMu.Lock()
	defer n.startMu.Unlock()
	if !n.started {
		return ErrNodeNotStarted
	}

	n.liveness.Stop()
	n.discovery.Stop()
	n.delivery.Shutdown()
	n.registry.Shutdown(5 * time.Second)
	n.events.Close()
	n.sig.Close()
	n.cancel()

	if err := n.host.Close(); err != nil {
		return NewErrorWithCause(ErrCodeTransport, "close transport host", err)
	}

	n.started = false
	return nil
}

// NodeID returns this node's mesh identifier.
func (n *Node) NodeID() identity.NodeID {
	return n.cfg.NodeID
}

// PeerID returns the libp2p transport identity backing this node's
// session listener.
func (n *Node) PeerID() peer.ID {
	return n.host.ID()
}

// PublicKey returns this node's application-level ML-DSA public key,
// the identity verified during the handshake.
func (n *Node) PublicKey() []byte {
	return n.sig.PublicKey()
}

// Addrs returns the multiaddresses this node's session listener is
// reachable on.
func (n *Node) Addrs() []multiaddr.Multiaddr {
	return n.host.Addrs()
}

// Connect opens a session to the peer transport-identified by
// remotePeerID at host:port and drives the handshake to completion
// asynchronously. A PeerConnected event is raised once authentication
// succeeds. Returns ErrNodeNotStarted if the node has not been started.
func (n *Node) Connect(ctx context.Context, remotePeerID peer.ID, host string, port int) error {
	n.startMu.Lock()
	started := n.started
	n.startMu.Unlock()
	if !started {
		return ErrNodeNotStarted
	}

	addr, err := multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%d", host, port))
	if err != nil {
		return NewErrorWithCause(ErrCodeConfiguration, "build dial multiaddr", err)
	}
	if err := n.registry.Connect(ctx, remotePeerID, addr, host, port); err != nil {
		return NewErrorWithCause(ErrCodeTransport, "connect to peer", err)
	}
	return nil
}

// Send routes data to target, fragmenting it across the Reliable
// Delivery Layer if it exceeds one chunk. target need not be a directly
// authenticated peer: the Routing Engine forwards through Flood,
// Multipath, or a learned route as appropriate, so a multi-hop target
// reachable only through an intermediate peer is accepted here too.
// Send only rejects target outright when no peer at all could carry it
// towards its destination. It returns as soon as the transfer has been
// scheduled; completion is signalled to the remote node's
// OnMessageDelivered callback, not to the caller. Returns
// ErrNodeNotStarted if the node has not been started.
func (n *Node) Send(ctx context.Context, target identity.NodeID, data []byte) error {
	n.startMu.Lock()
	started := n.started
	n.startMu.Unlock()
	if !started {
		return ErrNodeNotStarted
	}
	if !n.routable(target) {
		return NewPeerError(ErrCodeNoRoute, "no known path to peer", target)
	}
	if _, err := n.delivery.Send(ctx, target, data); err != nil {
		return NewErrorWithCause(ErrCodeTransport, "send to peer", err)
	}
	return nil
}

// routable reports whether target is reachable by at least one of the
// Routing Engine's strategies: directly authenticated, reachable via a
// next-hop the engine has already learned, or forwardable by flooding
// to whatever peers are currently authenticated.
func (n *Node) routable(target identity.NodeID) bool {
	if n.registry.Authenticated(target) {
		return true
	}
	if n.routing.Table().Contains(target) {
		return true
	}
	return len(n.registry.AllPeers()) > 0
}

// Disconnect closes the transport connection to peerID, if any.
func (n *Node) Disconnect(peerID peer.ID) error {
	if err := n.host.Disconnect(peerID); err != nil {
		return NewErrorWithCause(ErrCodeTransport, "disconnect peer", err)
	}
	return nil
}

// Peers returns every currently authenticated peer.
func (n *Node) Peers() []identity.PeerRecord {
	return n.registry.AllPeers()
}

// KnownPeers returns every peer discovery has heard from, whether or
// not a session has been authenticated with it yet.
func (n *Node) KnownPeers() []identity.PeerRecord {
	return n.discovery.KnownPeers()
}

// OnMessageDelivered registers the application callback invoked after
// an inbound payload group is fully reassembled. Replaces any
// previously registered callback.
func (n *Node) OnMessageDelivered(fn func(senderID string, data []byte)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onMessage = fn
}

// Metrics returns this node's metrics collector.
func (n *Node) Metrics() Metrics {
	return n.cfg.Metrics
}

// Events returns a live, non-blocking tap on the node's network event
// log. Events emitted while the channel's buffer is full are dropped
// from the live tap but remain in the log returned by Snapshot.
func (n *Node) Events() <-chan eventdispatch.Event {
	return n.events.Events()
}

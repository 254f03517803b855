// Package discovery implements UDP broadcast peer discovery: periodic
// announcement of this node's service address, unicast responses to
// discovery requests, and peer-list exchange with already-known peers.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/wire"
)

// DiscoveryPort is the default UDP port nodes listen on and broadcast
// to; Config.Port overrides it.
const DiscoveryPort = 54321

// BroadcastAddress is the limited broadcast address discovery requests
// are sent to.
const BroadcastAddress = "255.255.255.255"

// MaxFrameSize bounds a single UDP discovery datagram.
const MaxFrameSize = 8 * 1024

// DefaultBroadcastInterval is how often this node announces itself.
const DefaultBroadcastInterval = 30 * time.Second

// DefaultStaleSweepInterval is how often knownPeers is swept for entries
// that have not been refreshed recently.
const DefaultStaleSweepInterval = 5 * time.Minute

// DefaultPeerTTL is how long a knownPeers entry is retained without a
// fresh sighting before the sweep discards it.
const DefaultPeerTTL = 5 * time.Minute

// Connector is the subset of the Connection Registry the Discovery
// Service needs: dial a freshly learned peer, and check whether one is
// already authenticated so discovery doesn't redial needlessly.
type Connector interface {
	Connect(ctx context.Context, remotePeerID peer.ID, addr multiaddr.Multiaddr, host string, port int) error
	Authenticated(peerID identity.NodeID) bool
}

// Config tunes the Discovery Service's scheduling.
type Config struct {
	Port               int
	BroadcastInterval  time.Duration
	StaleSweepInterval time.Duration
	PeerTTL            time.Duration
}

// DefaultConfig returns the spec's scheduling constants.
func DefaultConfig() Config {
	return Config{
		Port:               DiscoveryPort,
		BroadcastInterval:  DefaultBroadcastInterval,
		StaleSweepInterval: DefaultStaleSweepInterval,
		PeerTTL:            DefaultPeerTTL,
	}
}

type knownPeer struct {
	record      identity.PeerRecord
	transportID string
	lastSeen    time.Time
}

// Service broadcasts this node's presence, answers discovery and
// peer-list requests, and feeds newly learned peers to the Connection
// Registry.
type Service struct {
	localID         identity.NodeID
	selfHost        string
	selfPort        int
	selfTransportID string
	cfg             Config

	connector Connector
	conn      *net.UDPConn

	mu    sync.Mutex
	known map[identity.NodeID]knownPeer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a discovery service. selfHost/selfPort are the
// address this node advertises for its TCP session listener;
// selfTransportID is the libp2p peer id backing that address.
func NewService(localID identity.NodeID, selfHost string, selfPort int, selfTransportID string, connector Connector, cfg Config) (*Service, error) {
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = DefaultBroadcastInterval
	}
	if cfg.StaleSweepInterval <= 0 {
		cfg.StaleSweepInterval = DefaultStaleSweepInterval
	}
	if cfg.PeerTTL <= 0 {
		cfg.PeerTTL = DefaultPeerTTL
	}
	// cfg.Port == 0 means kernel-assigned, matching transport.HostConfig's
	// ListenPort convention; production callers pass DiscoveryPort.
	addr := &net.UDPAddr{Port: cfg.Port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("discovery: listen on UDP port %d: %w", cfg.Port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		localID:         localID,
		selfHost:        selfHost,
		selfPort:        selfPort,
		selfTransportID: selfTransportID,
		cfg:             cfg,
		connector:       connector,
		conn:            conn,
		known:           make(map[identity.NodeID]knownPeer),
		ctx:             ctx,
		cancel:          cancel,
	}, nil
}

// Start begins listening for discovery traffic and scheduling periodic
// broadcasts and stale-peer sweeps.
func (s *Service) Start() {
	s.wg.Add(3)
	go s.listenLoop()
	go s.broadcastLoop()
	go s.sweepLoop()
}

// Stop closes the UDP socket and waits for background loops to exit.
func (s *Service) Stop() {
	s.cancel()
	s.conn.Close()
	s.wg.Wait()
}

func (s *Service) listenLoop() {
	defer s.wg.Done()
	buf := make([]byte, MaxFrameSize)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				continue
			}
		}
		env := &wire.Envelope{}
		if err := wire.Unmarshal(buf[:n], env); err != nil {
			continue
		}
		s.handleEnvelope(env, from)
	}
}

func (s *Service) broadcastLoop() {
	defer s.wg.Done()
	s.broadcastDiscovery()
	ticker := time.NewTicker(s.cfg.BroadcastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.broadcastDiscovery()
		}
	}
}

func (s *Service) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.StaleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweepStale()
		}
	}
}

func (s *Service) broadcastDiscovery() {
	env, err := wire.NewDiscoveryRequest(string(s.localID))
	if err != nil {
		return
	}
	s.sendTo(&env, &net.UDPAddr{IP: net.ParseIP(BroadcastAddress), Port: s.cfg.Port})
}

func (s *Service) handleEnvelope(env *wire.Envelope, from *net.UDPAddr) {
	if identity.NodeID(env.SenderID) == s.localID {
		return
	}
	switch env.Kind {
	case wire.KindDiscoveryRequest:
		s.handleDiscoveryRequest(env, from)
	case wire.KindDiscoveryResponse:
		s.handleDiscoveryResponse(env)
	case wire.KindPeerListRequest:
		s.handlePeerListRequest(env, from)
	case wire.KindPeerListResponse:
		s.handlePeerListResponse(env)
	}
}

func (s *Service) handleDiscoveryRequest(_ *wire.Envelope, from *net.UDPAddr) {
	resp, err := wire.NewDiscoveryResponse(string(s.localID), wire.DiscoveryResponseBody{
		Host:        s.selfHost,
		Port:        s.selfPort,
		TransportID: s.selfTransportID,
	})
	if err != nil {
		return
	}
	s.sendTo(&resp, &net.UDPAddr{IP: from.IP, Port: s.cfg.Port})
}

func (s *Service) handleDiscoveryResponse(env *wire.Envelope) {
	body := env.DiscoveryResponse
	if body == nil {
		return
	}
	s.learn(identity.NodeID(env.SenderID), body.Host, body.Port, body.TransportID)
}

func (s *Service) handlePeerListRequest(_ *wire.Envelope, from *net.UDPAddr) {
	s.mu.Lock()
	peers := make([]wire.PeerRecordWire, 0, len(s.known))
	for id, kp := range s.known {
		peers = append(peers, wire.PeerRecordWire{
			PeerID:      string(id),
			Host:        kp.record.Host,
			Port:        kp.record.Port,
			TransportID: kp.transportID,
		})
	}
	s.mu.Unlock()

	resp, err := wire.NewPeerListResponse(string(s.localID), peers)
	if err != nil {
		return
	}
	s.sendTo(&resp, &net.UDPAddr{IP: from.IP, Port: s.cfg.Port})
}

func (s *Service) handlePeerListResponse(env *wire.Envelope) {
	body := env.PeerListResponse
	if body == nil {
		return
	}
	for _, p := range body.Peers {
		if identity.NodeID(p.PeerID) == s.localID {
			continue
		}
		s.learn(identity.NodeID(p.PeerID), p.Host, p.Port, p.TransportID)
	}
}

// learn records a peer sighting and, if no authenticated session exists
// for it yet, asks the Connection Registry to dial it.
func (s *Service) learn(id identity.NodeID, host string, port int, transportID string) {
	s.mu.Lock()
	s.known[id] = knownPeer{
		record:      identity.NewPeerRecord(id, host, port),
		transportID: transportID,
		lastSeen:    time.Now(),
	}
	s.mu.Unlock()

	if s.connector.Authenticated(id) {
		return
	}
	remotePeerID, err := peer.Decode(transportID)
	if err != nil {
		return
	}
	proto := "ip4"
	if net.ParseIP(host) == nil {
		proto = "dns4"
	}
	addr, err := multiaddr.NewMultiaddr(fmt.Sprintf("/%s/%s/tcp/%d", proto, host, port))
	if err != nil {
		return
	}
	go s.connector.Connect(s.ctx, remotePeerID, addr, host, port)
}

func (s *Service) sendTo(env *wire.Envelope, addr *net.UDPAddr) {
	data, err := wire.Marshal(env)
	if err != nil || len(data) > MaxFrameSize {
		return
	}
	s.conn.WriteToUDP(data, addr)
}

func (s *Service) sweepStale() {
	cutoff := time.Now().Add(-s.cfg.PeerTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, kp := range s.known {
		if kp.lastSeen.Before(cutoff) {
			delete(s.known, id)
		}
	}
}

// KnownPeers returns a snapshot of every peer this service has heard
// from and not yet expired.
func (s *Service) KnownPeers() []identity.PeerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]identity.PeerRecord, 0, len(s.known))
	for _, kp := range s.known {
		out = append(out, kp.record)
	}
	return out
}

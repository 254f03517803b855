package discovery

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/transport"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/wire"
	"github.com/stretchr/testify/require"
)

type connectCall struct {
	peerID peer.ID
	addr   multiaddr.Multiaddr
	host   string
	port   int
}

type fakeConnector struct {
	mu            sync.Mutex
	calls         []connectCall
	authenticated map[identity.NodeID]bool
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{authenticated: make(map[identity.NodeID]bool)}
}

func (f *fakeConnector) Connect(_ context.Context, remotePeerID peer.ID, addr multiaddr.Multiaddr, host string, port int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, connectCall{peerID: remotePeerID, addr: addr, host: host, port: port})
	return nil
}

func (f *fakeConnector) Authenticated(peerID identity.NodeID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated[peerID]
}

func (f *fakeConnector) snapshot() []connectCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]connectCall(nil), f.calls...)
}

func realTransportID(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	h, err := transport.NewHost(context.Background(), transport.HostConfig{PrivateKey: priv, ListenPort: 0})
	require.NoError(t, err)
	defer h.Close()
	return h.ID().String()
}

func newTestService(t *testing.T, connector Connector) *Service {
	t.Helper()
	svc, err := NewService("self", "127.0.0.1", 9000, realTransportID(t), connector, Config{})
	require.NoError(t, err)
	t.Cleanup(func() { svc.conn.Close() })
	return svc
}

func TestService_LearnConnectsUnauthenticatedPeer(t *testing.T) {
	connector := newFakeConnector()
	svc := newTestService(t, connector)

	transportID := realTransportID(t)
	svc.learn("peer-a", "10.0.0.5", 4000, transportID)

	require.Eventually(t, func() bool { return len(connector.snapshot()) == 1 }, time.Second, time.Millisecond)
	call := connector.snapshot()[0]
	require.Equal(t, "10.0.0.5", call.host)
	require.Equal(t, 4000, call.port)

	peers := svc.KnownPeers()
	require.Len(t, peers, 1)
	require.Equal(t, identity.NodeID("peer-a"), peers[0].PeerID)
}

func TestService_LearnSkipsConnectWhenAlreadyAuthenticated(t *testing.T) {
	connector := newFakeConnector()
	connector.authenticated["peer-a"] = true
	svc := newTestService(t, connector)

	svc.learn("peer-a", "10.0.0.5", 4000, realTransportID(t))

	time.Sleep(20 * time.Millisecond)
	require.Empty(t, connector.snapshot())
	require.Len(t, svc.KnownPeers(), 1, "peer is still recorded even without dialing")
}

func TestService_LearnSkipsUndecodableTransportID(t *testing.T) {
	connector := newFakeConnector()
	svc := newTestService(t, connector)

	svc.learn("peer-a", "10.0.0.5", 4000, "not-a-valid-peer-id")

	time.Sleep(20 * time.Millisecond)
	require.Empty(t, connector.snapshot())
}

func TestService_HandleEnvelopeIgnoresSelfSender(t *testing.T) {
	connector := newFakeConnector()
	svc := newTestService(t, connector)

	env, err := wire.NewDiscoveryResponse(string(svc.localID), wire.DiscoveryResponseBody{Host: "x", Port: 1, TransportID: realTransportID(t)})
	require.NoError(t, err)

	svc.handleEnvelope(&env, &net.UDPAddr{})
	require.Empty(t, svc.KnownPeers())
}

func TestService_DiscoveryRequestRoundTrip(t *testing.T) {
	connector := newFakeConnector()

	rawPeer, err := net.ListenUDP("udp4", &net.UDPAddr{})
	require.NoError(t, err)
	defer rawPeer.Close()
	rawPeerPort := rawPeer.LocalAddr().(*net.UDPAddr).Port

	svc, err := NewService("self", "127.0.0.1", 9000, realTransportID(t), connector, Config{})
	require.NoError(t, err)
	defer svc.conn.Close()
	svc.cfg.Port = rawPeerPort
	svcPort := svc.conn.LocalAddr().(*net.UDPAddr).Port

	svc.wg.Add(1)
	go svc.listenLoop()
	defer func() {
		svc.cancel()
		svc.conn.Close()
		svc.wg.Wait()
	}()

	req, err := wire.NewDiscoveryRequest("peer-a")
	require.NoError(t, err)
	data, err := wire.Marshal(&req)
	require.NoError(t, err)

	_, err = rawPeer.WriteToUDP(data, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: svcPort})
	require.NoError(t, err)

	rawPeer.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, MaxFrameSize)
	n, _, err := rawPeer.ReadFromUDP(buf)
	require.NoError(t, err)

	resp := &wire.Envelope{}
	require.NoError(t, wire.Unmarshal(buf[:n], resp))
	require.Equal(t, wire.KindDiscoveryResponse, resp.Kind)
	require.Equal(t, "self", resp.SenderID)
	require.Equal(t, "127.0.0.1", resp.DiscoveryResponse.Host)
	require.Equal(t, 9000, resp.DiscoveryResponse.Port)
}

func TestService_PeerListResponseLearnsEachEntry(t *testing.T) {
	connector := newFakeConnector()
	svc := newTestService(t, connector)

	body := []wire.PeerRecordWire{
		{PeerID: "peer-a", Host: "h1", Port: 1, TransportID: realTransportID(t)},
		{PeerID: "peer-b", Host: "h2", Port: 2, TransportID: realTransportID(t)},
		{PeerID: "self", Host: "h3", Port: 3, TransportID: realTransportID(t)},
	}
	env, err := wire.NewPeerListResponse("peer-a", body)
	require.NoError(t, err)

	svc.handleEnvelope(&env, &net.UDPAddr{})

	peers := svc.KnownPeers()
	require.Len(t, peers, 2, "self entry must be skipped")
	require.Eventually(t, func() bool { return len(connector.snapshot()) == 2 }, time.Second, time.Millisecond)
}

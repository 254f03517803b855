package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth"
)

// TestMetricsImplementsInterface verifies that Metrics implements
// labyrinth.Metrics.
func TestMetricsImplementsInterface(t *testing.T) {
	var _ labyrinth.Metrics = (*Metrics)(nil)
}

func TestNewMetrics_DefaultNamespace(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer("", registry)

	m.SessionEstablished("inbound")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "labyrinth_sessions_established_total" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected metric with default namespace 'labyrinth'")
	}
}

func TestNewMetrics_CustomNamespace(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer("myapp", registry)

	m.SessionEstablished("outbound")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "myapp_sessions_established_total" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected metric with custom namespace 'myapp'")
	}
}

func TestSessionMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer("test", registry)

	m.SessionEstablished("inbound")
	m.SessionEstablished("inbound")
	m.SessionEstablished("outbound")

	if count := testutil.ToFloat64(m.sessionsEstablished.WithLabelValues("inbound")); count != 2 {
		t.Errorf("inbound sessions established = %v, want 2", count)
	}
	if count := testutil.ToFloat64(m.sessionsEstablished.WithLabelValues("outbound")); count != 1 {
		t.Errorf("outbound sessions established = %v, want 1", count)
	}

	m.SessionClosed()
	m.SessionClosed()
	if count := testutil.ToFloat64(m.sessionsClosed); count != 2 {
		t.Errorf("sessions closed = %v, want 2", count)
	}
}

func TestHandshakeMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer("test", registry)

	m.HandshakeDuration(0.5)
	m.HandshakeDuration(1.0)
	m.HandshakeDuration(0.1)

	families, _ := registry.Gather()
	var histFound bool
	for _, mf := range families {
		if mf.GetName() == "test_handshake_duration_seconds" {
			histFound = true
			metrics := mf.GetMetric()
			if len(metrics) == 0 {
				t.Error("expected histogram metrics")
				break
			}
			hist := metrics[0].GetHistogram()
			if hist.GetSampleCount() != 3 {
				t.Errorf("histogram count = %d, want 3", hist.GetSampleCount())
			}
		}
	}
	if !histFound {
		t.Error("handshake_duration_seconds histogram not found")
	}

	m.HandshakeFailed("signature")
	m.HandshakeFailed("timeout")
	m.HandshakeFailed("signature")

	if count := testutil.ToFloat64(m.handshakesFailed.WithLabelValues("signature")); count != 2 {
		t.Errorf("signature failures = %v, want 2", count)
	}
	if count := testutil.ToFloat64(m.handshakesFailed.WithLabelValues("timeout")); count != 1 {
		t.Errorf("timeout failures = %v, want 1", count)
	}
}

func TestDeliveryMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer("test", registry)

	m.ChunkSent(100)
	m.ChunkSent(200)

	if count := testutil.ToFloat64(m.chunksSent); count != 2 {
		t.Errorf("chunks sent = %v, want 2", count)
	}
	if bytes := testutil.ToFloat64(m.chunkBytesSent); bytes != 300 {
		t.Errorf("chunk bytes sent = %v, want 300", bytes)
	}

	m.ChunkRetransmitted()
	m.ChunkRetransmitted()
	if count := testutil.ToFloat64(m.chunksRetransmitted); count != 2 {
		t.Errorf("chunks retransmitted = %v, want 2", count)
	}

	m.ChunkAcknowledged()
	if count := testutil.ToFloat64(m.chunksAcknowledged); count != 1 {
		t.Errorf("chunks acknowledged = %v, want 1", count)
	}
}

func TestRoutingMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer("test", registry)

	m.RouteLost()
	m.RouteLost()
	if count := testutil.ToFloat64(m.routesLost); count != 2 {
		t.Errorf("routes lost = %v, want 2", count)
	}

	m.RoutingTableSize(42)
	if count := testutil.ToFloat64(m.routingTableSize); count != 42 {
		t.Errorf("routing table size = %v, want 42", count)
	}

	m.RoutingTableSize(10)
	if count := testutil.ToFloat64(m.routingTableSize); count != 10 {
		t.Errorf("routing table size after shrink = %v, want 10", count)
	}
}

func TestRecoveryMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer("test", registry)

	m.RecoveryAttempted()
	m.RecoveryAttempted()
	m.RecoverySucceeded()
	m.RecoveryFailed()

	if count := testutil.ToFloat64(m.recoveryAttempted); count != 2 {
		t.Errorf("recovery attempted = %v, want 2", count)
	}
	if count := testutil.ToFloat64(m.recoverySucceeded); count != 1 {
		t.Errorf("recovery succeeded = %v, want 1", count)
	}
	if count := testutil.ToFloat64(m.recoveryFailed); count != 1 {
		t.Errorf("recovery failed = %v, want 1", count)
	}

	m.ActivePeers(7)
	if count := testutil.ToFloat64(m.activePeers); count != 7 {
		t.Errorf("active peers = %v, want 7", count)
	}
}

func TestEventMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer("test", registry)

	m.EventEmitted("PeerConnected")
	m.EventEmitted("PeerConnected")
	m.EventEmitted("PeerDisconnected")

	if count := testutil.ToFloat64(m.eventsEmitted.WithLabelValues("PeerConnected")); count != 2 {
		t.Errorf("PeerConnected events = %v, want 2", count)
	}
	if count := testutil.ToFloat64(m.eventsEmitted.WithLabelValues("PeerDisconnected")); count != 1 {
		t.Errorf("PeerDisconnected events = %v, want 1", count)
	}

	m.EventDropped()
	m.EventDropped()
	if count := testutil.ToFloat64(m.eventsDropped); count != 2 {
		t.Errorf("events dropped = %v, want 2", count)
	}
}

func TestNewMetricsWithNilRegisterer(t *testing.T) {
	m := NewMetricsWithRegisterer("test", nil)

	m.SessionEstablished("inbound")
	m.SessionClosed()
	m.HandshakeDuration(0.5)
	m.HandshakeFailed("timeout")
	m.ChunkSent(100)
	m.ChunkRetransmitted()
	m.ChunkAcknowledged()
	m.RouteLost()
	m.RoutingTableSize(5)
	m.RecoveryAttempted()
	m.RecoverySucceeded()
	m.RecoveryFailed()
	m.ActivePeers(3)
	m.EventEmitted("PeerConnected")
	m.EventDropped()
}

func TestConcurrentMetricUpdates(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer("test", registry)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				m.SessionEstablished("inbound")
				m.SessionClosed()
				m.ChunkSent(100)
				m.ChunkAcknowledged()
				m.EventEmitted("PeerConnected")
				m.RoutingTableSize(j)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	if count := testutil.ToFloat64(m.sessionsEstablished.WithLabelValues("inbound")); count != 1000 {
		t.Errorf("concurrent sessions established = %v, want 1000", count)
	}
	if count := testutil.ToFloat64(m.chunksSent); count != 1000 {
		t.Errorf("concurrent chunks sent = %v, want 1000", count)
	}
}

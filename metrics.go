package labyrinth

// Metrics defines the metrics collection interface for the node. It is
// designed to be compatible with Prometheus and other metrics systems.
//
// Implementations must be safe for concurrent use.
//
// The node itself calls only HandshakeDuration and SessionEstablished,
// once per session promoted to authenticated; no component of this
// module calls the other methods.
//
// Metric naming convention:
//   - Counters: <name>_total (e.g., sessions_established_total)
//   - Histograms: <name>_seconds or <name>_bytes (e.g., handshake_duration_seconds)
//   - Gauges: current_<name> (e.g., current_active_peers)
type Metrics interface {
	// Session metrics

	// SessionEstablished increments when a peer session is promoted to
	// authenticated. Labels: direction (inbound, outbound)
	SessionEstablished(direction string)

	// SessionClosed increments when an authenticated session ends.
	SessionClosed()

	// HandshakeDuration records the duration of a successful handshake.
	HandshakeDuration(seconds float64)

	// HandshakeFailed records a handshake that did not authenticate.
	// Labels: reason (signature, timeout, unknown-challenge)
	HandshakeFailed(reason string)

	// Delivery metrics

	// ChunkSent records a fragment being sent.
	ChunkSent(bytes int)

	// ChunkRetransmitted records a fragment retransmission after an
	// acknowledgement timeout.
	ChunkRetransmitted()

	// ChunkAcknowledged records a fragment's acknowledgement.
	ChunkAcknowledged()

	// Routing metrics

	// RouteLost records an envelope dropped for lack of a route, or for
	// exceeding the hop-count limit.
	RouteLost()

	// RoutingTableSize records the current size of the routing table.
	RoutingTableSize(n int)

	// Recovery metrics

	// RecoveryAttempted records a reconnection attempt against an
	// unhealthy peer.
	RecoveryAttempted()

	// RecoverySucceeded records a peer returning to healthy after being
	// tracked as unhealthy.
	RecoverySucceeded()

	// RecoveryFailed records recovery being abandoned for a peer after
	// exhausting its reconnection attempts.
	RecoveryFailed()

	// ActivePeers records the current count of authenticated peers.
	ActivePeers(n int)

	// Event metrics

	// EventEmitted records a network event being emitted.
	// Labels: kind (the event kind)
	EventEmitted(kind string)

	// EventDropped records an event being dropped due to buffer full.
	EventDropped()
}

// NopMetrics is a no-op metrics implementation that discards all metrics.
// It is the default when no metrics collector is configured.
type NopMetrics struct{}

// Ensure NopMetrics implements Metrics.
var _ Metrics = NopMetrics{}

// SessionEstablished implements Metrics.SessionEstablished (no-op).
func (NopMetrics) SessionEstablished(direction string) {}

// SessionClosed implements Metrics.SessionClosed (no-op).
func (NopMetrics) SessionClosed() {}

// HandshakeDuration implements Metrics.HandshakeDuration (no-op).
func (NopMetrics) HandshakeDuration(seconds float64) {}

// HandshakeFailed implements Metrics.HandshakeFailed (no-op).
func (NopMetrics) HandshakeFailed(reason string) {}

// ChunkSent implements Metrics.ChunkSent (no-op).
func (NopMetrics) ChunkSent(bytes int) {}

// ChunkRetransmitted implements Metrics.ChunkRetransmitted (no-op).
func (NopMetrics) ChunkRetransmitted() {}

// ChunkAcknowledged implements Metrics.ChunkAcknowledged (no-op).
func (NopMetrics) ChunkAcknowledged() {}

// RouteLost implements Metrics.RouteLost (no-op).
func (NopMetrics) RouteLost() {}

// RoutingTableSize implements Metrics.RoutingTableSize (no-op).
func (NopMetrics) RoutingTableSize(n int) {}

// RecoveryAttempted implements Metrics.RecoveryAttempted (no-op).
func (NopMetrics) RecoveryAttempted() {}

// RecoverySucceeded implements Metrics.RecoverySucceeded (no-op).
func (NopMetrics) RecoverySucceeded() {}

// RecoveryFailed implements Metrics.RecoveryFailed (no-op).
func (NopMetrics) RecoveryFailed() {}

// ActivePeers implements Metrics.ActivePeers (no-op).
func (NopMetrics) ActivePeers(n int) {}

// EventEmitted implements Metrics.EventEmitted (no-op).
func (NopMetrics) EventEmitted(kind string) {}

// EventDropped implements Metrics.EventDropped (no-op).
func (NopMetrics) EventDropped() {}

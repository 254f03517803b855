// Package prometheus provides a Prometheus implementation of the
// labyrinth.Metrics interface.
//
// All metrics are registered with the configured Prometheus registerer
// and follow Prometheus naming conventions.
//
// # Metric Names
//
// All metrics use the configured namespace prefix (default: "labyrinth").
//
// # Counters
//
//	labyrinth_sessions_established_total{direction="inbound|outbound"}
//	labyrinth_sessions_closed_total
//	labyrinth_handshakes_failed_total{reason="signature|timeout|unknown-challenge"}
//	labyrinth_chunks_sent_total
//	labyrinth_chunks_retransmitted_total
//	labyrinth_chunks_acknowledged_total
//	labyrinth_routes_lost_total
//	labyrinth_recovery_attempted_total
//	labyrinth_recovery_succeeded_total
//	labyrinth_recovery_failed_total
//	labyrinth_events_emitted_total{kind="<kind>"}
//	labyrinth_events_dropped_total
//	labyrinth_chunk_bytes_sent_total
//
// # Histograms
//
//	labyrinth_handshake_duration_seconds
//
// # Gauges
//
//	labyrinth_current_active_peers
//	labyrinth_current_routing_table_size
//
// # Example Usage
//
//	import (
//	    "github.com/sagacious-satadru/Nexus-Cipher-Labyrinth"
//	    prommetrics "github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/prometheus"
//	    "github.com/prometheus/client_golang/prometheus/promhttp"
//	)
//
//	func main() {
//	    metrics := prommetrics.NewMetrics("mynode")
//
//	    cfg, _ := labyrinth.NewConfig(
//	        labyrinth.WithMetrics(metrics),
//	    )
//
//	    node, err := labyrinth.New(cfg)
//	    // ...
//
//	    http.Handle("/metrics", promhttp.Handler())
//	    http.ListenAndServe(":9090", nil)
//	}
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth"
)

// DefaultNamespace is the default namespace for all metrics.
const DefaultNamespace = "labyrinth"

// Metrics implements the labyrinth.Metrics interface using Prometheus
// metrics. Safe for concurrent use.
type Metrics struct {
	sessionsEstablished *prometheus.CounterVec
	sessionsClosed      prometheus.Counter
	handshakeDuration   prometheus.Histogram
	handshakesFailed    *prometheus.CounterVec

	chunksSent          prometheus.Counter
	chunkBytesSent      prometheus.Counter
	chunksRetransmitted prometheus.Counter
	chunksAcknowledged  prometheus.Counter

	routesLost       prometheus.Counter
	routingTableSize prometheus.Gauge

	recoveryAttempted  prometheus.Counter
	recoverySucceeded  prometheus.Counter
	recoveryFailed     prometheus.Counter
	activePeers        prometheus.Gauge

	eventsEmitted *prometheus.CounterVec
	eventsDropped prometheus.Counter
}

// Ensure Metrics implements labyrinth.Metrics.
var _ labyrinth.Metrics = (*Metrics)(nil)

// NewMetrics creates a new Prometheus metrics collector with the given
// namespace, registered with the default Prometheus registry. If
// namespace is empty, DefaultNamespace is used. Panics on registration
// conflicts; use NewMetricsWithRegisterer with a custom registry to
// avoid that.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates a new Prometheus metrics collector
// registered with registerer. If registerer is nil, metrics are
// constructed but not registered, which is useful for tests.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		sessionsEstablished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_established_total",
				Help:      "Total number of sessions promoted to authenticated, by direction",
			},
			[]string{"direction"},
		),
		sessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Total number of authenticated sessions that ended",
		}),
		handshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Histogram of successful handshake durations",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		handshakesFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handshakes_failed_total",
				Help:      "Total number of handshakes that failed to authenticate, by reason",
			},
			[]string{"reason"},
		),
		chunksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_sent_total",
			Help:      "Total number of delivery fragments sent",
		}),
		chunkBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_bytes_sent_total",
			Help:      "Total bytes sent across all delivery fragments",
		}),
		chunksRetransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_retransmitted_total",
			Help:      "Total number of fragment retransmissions after an acknowledgement timeout",
		}),
		chunksAcknowledged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_acknowledged_total",
			Help:      "Total number of fragment acknowledgements received",
		}),
		routesLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_lost_total",
			Help:      "Total number of envelopes dropped for lack of a route or exceeding the hop limit",
		}),
		routingTableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_routing_table_size",
			Help:      "Current number of entries in the routing table",
		}),
		recoveryAttempted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_attempted_total",
			Help:      "Total number of reconnection attempts against unhealthy peers",
		}),
		recoverySucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_succeeded_total",
			Help:      "Total number of peers that returned to healthy after being tracked as unhealthy",
		}),
		recoveryFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_failed_total",
			Help:      "Total number of peers whose recovery was abandoned after exhausting reconnect attempts",
		}),
		activePeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_active_peers",
			Help:      "Current count of authenticated peers",
		}),
		eventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_emitted_total",
				Help:      "Total number of network events emitted, by kind",
			},
			[]string{"kind"},
		),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped because the live event buffer was full",
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.sessionsEstablished,
			m.sessionsClosed,
			m.handshakeDuration,
			m.handshakesFailed,
			m.chunksSent,
			m.chunkBytesSent,
			m.chunksRetransmitted,
			m.chunksAcknowledged,
			m.routesLost,
			m.routingTableSize,
			m.recoveryAttempted,
			m.recoverySucceeded,
			m.recoveryFailed,
			m.activePeers,
			m.eventsEmitted,
			m.eventsDropped,
		)
	}

	return m
}

// SessionEstablished implements labyrinth.Metrics.
func (m *Metrics) SessionEstablished(direction string) {
	m.sessionsEstablished.WithLabelValues(direction).Inc()
}

// SessionClosed implements labyrinth.Metrics.
func (m *Metrics) SessionClosed() {
	m.sessionsClosed.Inc()
}

// HandshakeDuration implements labyrinth.Metrics.
func (m *Metrics) HandshakeDuration(seconds float64) {
	m.handshakeDuration.Observe(seconds)
}

// HandshakeFailed implements labyrinth.Metrics.
func (m *Metrics) HandshakeFailed(reason string) {
	m.handshakesFailed.WithLabelValues(reason).Inc()
}

// ChunkSent implements labyrinth.Metrics.
func (m *Metrics) ChunkSent(bytes int) {
	m.chunksSent.Inc()
	m.chunkBytesSent.Add(float64(bytes))
}

// ChunkRetransmitted implements labyrinth.Metrics.
func (m *Metrics) ChunkRetransmitted() {
	m.chunksRetransmitted.Inc()
}

// ChunkAcknowledged implements labyrinth.Metrics.
func (m *Metrics) ChunkAcknowledged() {
	m.chunksAcknowledged.Inc()
}

// RouteLost implements labyrinth.Metrics.
func (m *Metrics) RouteLost() {
	m.routesLost.Inc()
}

// RoutingTableSize implements labyrinth.Metrics.
func (m *Metrics) RoutingTableSize(n int) {
	m.routingTableSize.Set(float64(n))
}

// RecoveryAttempted implements labyrinth.Metrics.
func (m *Metrics) RecoveryAttempted() {
	m.recoveryAttempted.Inc()
}

// RecoverySucceeded implements labyrinth.Metrics.
func (m *Metrics) RecoverySucceeded() {
	m.recoverySucceeded.Inc()
}

// RecoveryFailed implements labyrinth.Metrics.
func (m *Metrics) RecoveryFailed() {
	m.recoveryFailed.Inc()
}

// ActivePeers implements labyrinth.Metrics.
func (m *Metrics) ActivePeers(n int) {
	m.activePeers.Set(float64(n))
}

// EventEmitted implements labyrinth.Metrics.
func (m *Metrics) EventEmitted(kind string) {
	m.eventsEmitted.WithLabelValues(kind).Inc()
}

// EventDropped implements labyrinth.Metrics.
func (m *Metrics) EventDropped() {
	m.eventsDropped.Inc()
}

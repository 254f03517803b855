package labyrinth

import (
	"time"

	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/handshake"
)

// SessionStateCounts breaks down every live transport-level session by
// its position in the handshake lifecycle.
type SessionStateCounts struct {
	Unauthenticated  int
	AwaitingResponse int
	AwaitingConfirm  int
	Authenticated    int
}

// NetworkStats is a point-in-time snapshot of this node's network
// health: the liveness supervisor's message/error/latency counters
// alongside a breakdown of sessions by handshake state.
type NetworkStats struct {
	ActivePeers          int
	SessionsByState      SessionStateCounts
	AverageLatencyMillis float64
	TotalMessages        uint64
	TotalErrors          uint64
	ErrorRatePercent     float64
	RoutingTableSize     int
	SampledAt            time.Time
}

// NetworkStats returns the most recently sampled network stats. The
// liveness supervisor refreshes the message/latency portion on
// MetricsSampleInterval; the session-state breakdown and routing table
// size are computed fresh on every call.
func (n *Node) NetworkStats() NetworkStats {
	sup := n.liveness.Stats()
	return NetworkStats{
		ActivePeers:          sup.ActivePeers,
		SessionsByState:      countSessionsByState(n.registry.SessionsByState()),
		AverageLatencyMillis: sup.AverageLatencyMillis,
		TotalMessages:        sup.TotalMessages,
		TotalErrors:          sup.TotalErrors,
		ErrorRatePercent:     sup.ErrorRatePercent,
		RoutingTableSize:     n.routing.Table().Size(),
		SampledAt:            time.Now(),
	}
}

func countSessionsByState(counts map[handshake.State]int) SessionStateCounts {
	return SessionStateCounts{
		Unauthenticated:  counts[handshake.Unauthenticated],
		AwaitingResponse: counts[handshake.AwaitingResponse],
		AwaitingConfirm:  counts[handshake.AwaitingConfirm],
		Authenticated:    counts[handshake.Authenticated],
	}
}

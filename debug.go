package labyrinth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DebugSnapshot captures the complete in-memory state of a Node for
// troubleshooting: the session table, routing table, in-flight
// transfers, and recent network events.
type DebugSnapshot struct {
	NodeID      string   `json:"node_id"`
	PeerID      string   `json:"peer_id"`
	PublicKey   string   `json:"public_key"`
	Version     string   `json:"version"`
	ListenAddrs []string `json:"listen_addrs"`

	Sessions DebugSessions `json:"sessions"`
	Routing  DebugRouting  `json:"routing"`
	Delivery DebugDelivery `json:"delivery"`
	Events   DebugEvents   `json:"events"`

	CapturedAt time.Time `json:"captured_at"`
}

// DebugSessions summarizes the Connection Registry's session table.
type DebugSessions struct {
	ByState       SessionStateCounts `json:"by_state"`
	Authenticated []string           `json:"authenticated"`
}

// DebugRouting summarizes the Routing Engine's next-hop table.
type DebugRouting struct {
	TableSize int `json:"table_size"`
}

// DebugDelivery summarizes the Reliable Delivery Layer's in-flight
// transfers.
type DebugDelivery struct {
	OutgoingGroups int `json:"outgoing_groups"`
	IncomingGroups int `json:"incoming_groups"`
}

// DebugEvents summarizes the event log.
type DebugEvents struct {
	LogLength int `json:"log_length"`
}

// Snapshot captures the node's current state for debugging and
// introspection.
func (n *Node) Snapshot() DebugSnapshot {
	snap := DebugSnapshot{
		NodeID:    string(n.NodeID()),
		PeerID:    n.PeerID().String(),
		PublicKey: fmt.Sprintf("%x", n.PublicKey()),
		Version:   CurrentVersion().String(),
		Sessions: DebugSessions{
			ByState: countSessionsByState(n.registry.SessionsByState()),
		},
		Routing: DebugRouting{
			TableSize: n.routing.Table().Size(),
		},
		Events:     DebugEvents{LogLength: len(n.events.Snapshot())},
		CapturedAt: time.Now(),
	}

	for _, addr := range n.Addrs() {
		snap.ListenAddrs = append(snap.ListenAddrs, addr.String())
	}
	for _, rec := range n.registry.AllPeers() {
		snap.Sessions.Authenticated = append(snap.Sessions.Authenticated, string(rec.PeerID))
	}
	snap.Delivery.OutgoingGroups, snap.Delivery.IncomingGroups = n.delivery.PendingGroups()

	return snap
}

// SnapshotJSON returns the node's debug snapshot as formatted JSON.
func (n *Node) SnapshotJSON() (string, error) {
	data, err := json.MarshalIndent(n.Snapshot(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal debug snapshot: %w", err)
	}
	return string(data), nil
}

// SnapshotString returns a human-readable rendering of the node's debug
// snapshot.
func (n *Node) SnapshotString() string {
	snap := n.Snapshot()
	var sb strings.Builder

	sb.WriteString("=== Labyrinth Node Debug Snapshot ===\n\n")

	sb.WriteString("IDENTITY:\n")
	sb.WriteString(fmt.Sprintf("  Node ID:    %s\n", snap.NodeID))
	sb.WriteString(fmt.Sprintf("  Peer ID:    %s\n", snap.PeerID))
	if len(snap.PublicKey) >= 16 {
		sb.WriteString(fmt.Sprintf("  Public Key: %s...\n", snap.PublicKey[:16]))
	}
	sb.WriteString(fmt.Sprintf("  Version:    %s\n", snap.Version))
	sb.WriteString("\n")

	sb.WriteString("LISTEN ADDRESSES:\n")
	if len(snap.ListenAddrs) == 0 {
		sb.WriteString("  (none)\n")
	} else {
		for _, addr := range snap.ListenAddrs {
			sb.WriteString(fmt.Sprintf("  - %s\n", addr))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("SESSIONS:\n")
	sb.WriteString(fmt.Sprintf("  Unauthenticated:   %d\n", snap.Sessions.ByState.Unauthenticated))
	sb.WriteString(fmt.Sprintf("  AwaitingResponse:  %d\n", snap.Sessions.ByState.AwaitingResponse))
	sb.WriteString(fmt.Sprintf("  AwaitingConfirm:   %d\n", snap.Sessions.ByState.AwaitingConfirm))
	sb.WriteString(fmt.Sprintf("  Authenticated:     %d\n", snap.Sessions.ByState.Authenticated))
	sb.WriteString("\n")

	sb.WriteString("ROUTING:\n")
	sb.WriteString(fmt.Sprintf("  Table entries: %d\n", snap.Routing.TableSize))
	sb.WriteString("\n")

	sb.WriteString("DELIVERY:\n")
	sb.WriteString(fmt.Sprintf("  Outgoing groups: %d\n", snap.Delivery.OutgoingGroups))
	sb.WriteString(fmt.Sprintf("  Incoming groups: %d\n", snap.Delivery.IncomingGroups))
	sb.WriteString("\n")

	sb.WriteString("EVENTS:\n")
	sb.WriteString(fmt.Sprintf("  Log length: %d\n", snap.Events.LogLength))
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Captured at: %s\n", snap.CapturedAt.Format(time.RFC3339)))
	sb.WriteString("======================================\n")

	return sb.String()
}

package labyrinth

import "github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/eventdispatch"

// EventKind identifies the category of a NetworkEvent. It aliases the
// internal event-dispatch package's Kind directly rather than
// duplicating the enum: Events() and Snapshot() return values built by
// internal/liveness, internal/routing, and internal/session, and a
// separate public enum would need to be kept in lockstep with theirs.
type EventKind = eventdispatch.Kind

// Event kinds re-exported for callers that do not want to import
// internal/eventdispatch directly.
const (
	PeerConnected     = eventdispatch.PeerConnected
	PeerDisconnected  = eventdispatch.PeerDisconnected
	PeerUnhealthy     = eventdispatch.PeerUnhealthy
	RouteDiscovered   = eventdispatch.RouteDiscovered
	RouteLost         = eventdispatch.RouteLost
	RecoveryAttempted = eventdispatch.RecoveryAttempted
	RecoverySucceeded = eventdispatch.RecoverySucceeded
	RecoveryFailed    = eventdispatch.RecoveryFailed
)

// NetworkEvent is an append-only record of something that happened to a
// peer or route.
type NetworkEvent = eventdispatch.Event

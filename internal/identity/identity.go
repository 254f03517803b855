// Package identity provides the node and peer identity value types shared
// across the node: the opaque node identifier and the immutable peer
// address record.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NodeID is an opaque, globally unique identifier assigned at node
// creation. It is immutable for the lifetime of the node.
type NodeID string

// String returns the string form of the identifier.
func (n NodeID) String() string {
	return string(n)
}

// NewNodeID generates a fresh, cryptographically random node identifier.
func NewNodeID() (NodeID, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate node id: %w", err)
	}
	return NodeID(hex.EncodeToString(buf)), nil
}

// PeerRecord is an immutable value carrying a peer's identity and reachable
// address. Two records are equal iff all three fields match.
type PeerRecord struct {
	PeerID NodeID
	Host   string
	Port   int
}

// NewPeerRecord constructs a PeerRecord. The returned value should be
// treated as immutable by callers.
func NewPeerRecord(peerID NodeID, host string, port int) PeerRecord {
	return PeerRecord{PeerID: peerID, Host: host, Port: port}
}

// Equal reports whether two records carry the same peer-id, host, and port.
func (p PeerRecord) Equal(other PeerRecord) bool {
	return p.PeerID == other.PeerID && p.Host == other.Host && p.Port == other.Port
}

// String renders the record for logs and debug output.
func (p PeerRecord) String() string {
	return fmt.Sprintf("%s@%s:%d", p.PeerID, p.Host, p.Port)
}

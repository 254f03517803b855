package routing

import (
	"sync"

	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
)

// Table is the concurrent mapping from a target node-id to the set of
// next-hop node-ids believed to reach it. A next-hop entry is meaningful
// only while the Connection Registry reports an Authenticated session to
// it, or while it is being probed via DiscoverRoute; the Table itself
// does not enforce that — callers remove stale entries on forward
// failure.
type Table struct {
	mu       sync.RWMutex
	nextHops map[identity.NodeID]map[identity.NodeID]struct{}
}

// NewTable creates an empty routing table.
func NewTable() *Table {
	return &Table{nextHops: make(map[identity.NodeID]map[identity.NodeID]struct{})}
}

// Add records nextHop as a viable path to target.
func (t *Table) Add(target, nextHop identity.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.nextHops[target]
	if !ok {
		set = make(map[identity.NodeID]struct{})
		t.nextHops[target] = set
	}
	set[nextHop] = struct{}{}
}

// Remove drops nextHop as a path to target, pruning the target entry
// entirely once its next-hop set is empty.
func (t *Table) Remove(target, nextHop identity.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.nextHops[target]
	if !ok {
		return
	}
	delete(set, nextHop)
	if len(set) == 0 {
		delete(t.nextHops, target)
	}
}

// Contains reports whether any next-hop is known for target.
func (t *Table) Contains(target identity.NodeID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nextHops[target]) > 0
}

// NextHops returns up to limit next-hops known for target, in unspecified
// order. limit <= 0 means unlimited.
func (t *Table) NextHops(target identity.NodeID, limit int) []identity.NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set := t.nextHops[target]
	if len(set) == 0 {
		return nil
	}
	out := make([]identity.NodeID, 0, len(set))
	for hop := range set {
		out = append(out, hop)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Size returns the number of targets with at least one known next-hop.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nextHops)
}

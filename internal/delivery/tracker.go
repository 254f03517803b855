package delivery

import (
	"sync"
	"time"

	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/pool"
)

// outgoingTracker tracks acknowledgment of one payload-group this node
// sent, retaining the original chunk bytes (pooled, to keep a large send
// from generating one GC-visible allocation per chunk) so a
// RetransmitRequest can be satisfied with the real chunk rather than
// whatever empty placeholder the request itself carried.
type outgoingTracker struct {
	mu         sync.Mutex
	groupID    string
	target     identity.NodeID
	pool       *pool.BufferPool
	chunks     []*[]byte
	acked      []bool
	retryCount int
	createdAt  time.Time
	released   bool
}

func newOutgoingTracker(groupID string, target identity.NodeID, bp *pool.BufferPool, chunks []*[]byte) *outgoingTracker {
	return &outgoingTracker{
		groupID:   groupID,
		target:    target,
		pool:      bp,
		chunks:    chunks,
		acked:     make([]bool, len(chunks)),
		createdAt: time.Now(),
	}
}

// release returns every retained chunk buffer to the pool. Safe to call
// more than once; only the first call has any effect.
func (t *outgoingTracker) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	for _, c := range t.chunks {
		t.pool.Put(c)
	}
}

// ack marks index as acknowledged. It is idempotent: re-acking an
// already-set index reports false so callers do not double-release flow
// control credit.
func (t *outgoingTracker) ack(index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.acked) || t.acked[index] {
		return false
	}
	t.acked[index] = true
	return true
}

func (t *outgoingTracker) isComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, a := range t.acked {
		if !a {
			return false
		}
	}
	return true
}

func (t *outgoingTracker) missing() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []int
	for i, a := range t.acked {
		if !a {
			out = append(out, i)
		}
	}
	return out
}

func (t *outgoingTracker) incrementRetry() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retryCount++
	return t.retryCount
}

func (t *outgoingTracker) retries() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retryCount
}

func (t *outgoingTracker) age() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.createdAt)
}

func (t *outgoingTracker) chunk(index int) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.chunks) {
		return nil, false
	}
	return *t.chunks[index], true
}

func (t *outgoingTracker) total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.chunks)
}

// reassemblyBuffer accumulates inbound chunks for one payload-group until
// every index has arrived. Chunk storage is pooled for the same reason as
// outgoingTracker.
type reassemblyBuffer struct {
	mu        sync.Mutex
	total     int
	pool      *pool.BufferPool
	chunks    []*[]byte
	received  []bool
	count     int
	createdAt time.Time
	released  bool
}

func newReassemblyBuffer(total int, bp *pool.BufferPool) *reassemblyBuffer {
	return &reassemblyBuffer{
		total:     total,
		pool:      bp,
		chunks:    make([]*[]byte, total),
		received:  make([]bool, total),
		createdAt: time.Now(),
	}
}

func (b *reassemblyBuffer) addChunk(index int, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= b.total || b.received[index] {
		return
	}
	buf := b.pool.GetExact(len(data))
	copy(*buf, data)
	b.chunks[index] = buf
	b.received[index] = true
	b.count++
}

func (b *reassemblyBuffer) isComplete() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count == b.total
}

// assemble concatenates chunks in index order and returns their buffers
// to the pool. Callers must only call this once isComplete reports true,
// and must not call release afterward.
func (b *reassemblyBuffer) assemble() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	size := 0
	for _, c := range b.chunks {
		if c != nil {
			size += len(*c)
		}
	}
	out := make([]byte, 0, size)
	for _, c := range b.chunks {
		if c != nil {
			out = append(out, (*c)...)
		}
	}
	b.released = true
	for _, c := range b.chunks {
		b.pool.Put(c)
	}
	return out
}

// release returns any retained chunk buffers to the pool without
// assembling them, for a group discarded incomplete by the timeout
// sweep. Safe to call more than once.
func (b *reassemblyBuffer) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	for _, c := range b.chunks {
		if c != nil {
			b.pool.Put(c)
		}
	}
}

func (b *reassemblyBuffer) age() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Since(b.createdAt)
}

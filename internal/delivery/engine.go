// Package delivery implements reliable delivery of byte payloads larger
// than fit in a single envelope: chunking, checksum verification,
// acknowledgment, retransmission and timeout-driven cleanup of stalled
// transfers.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/flow"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/pool"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/wire"
)

// ChunkSize is the default maximum payload carried by a single DataChunk.
const ChunkSize = 1 << 20 // 1MiB

// MaxRetries is the default bound on how many times a group is
// retransmitted, whether in response to a RetransmitRequest or a
// timeout sweep, before it is abandoned.
const MaxRetries = 3

// ChunkTimeout is the default duration a group may sit incomplete —
// either unacknowledged on the sending side or partially assembled on
// the receiving side — before the timeout sweep acts on it.
const ChunkTimeout = 30 * time.Second

// SweepInterval is the default period of the timeout sweep.
const SweepInterval = 30 * time.Second

// Config tunes a Layer's chunking, retry, and timeout behavior. A
// zero-value Config falls back to ChunkSize, ChunkTimeout, MaxRetries,
// and SweepInterval.
type Config struct {
	ChunkSize     int
	ChunkTimeout  time.Duration
	MaxRetries    int
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = ChunkSize
	}
	if c.ChunkTimeout <= 0 {
		c.ChunkTimeout = ChunkTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = MaxRetries
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = SweepInterval
	}
	return c
}

// Router is the subset of the Routing Engine the delivery layer needs:
// route a payload toward target, whether that means one hop or many.
type Router interface {
	Route(target identity.NodeID, payload wire.Envelope) error
}

// DeliverFunc hands a fully reassembled payload up to the application.
type DeliverFunc func(sender identity.NodeID, data []byte)

// FailFunc is notified when a group is abandoned after exhausting
// retries. It is optional; nil disables notification.
type FailFunc func(groupID string, target identity.NodeID, err error)

// Layer implements chunked send, chunk/ack/retransmit/complete handling,
// and the timeout sweep for stalled transfers.
type Layer struct {
	localID identity.NodeID
	router  Router
	deliver DeliverFunc
	onFail  FailFunc
	cfg     Config

	pool *pool.BufferPool
	flow *flow.Controller

	mu       sync.Mutex
	outgoing map[string]*outgoingTracker
	incoming map[string]*reassemblyBuffer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLayer creates a delivery layer for localID. flowCtl paces outbound
// chunks so a single large send cannot flood the wire; pass nil to use a
// default controller. cfg's zero value uses ChunkSize, ChunkTimeout, and
// MaxRetries.
func NewLayer(localID identity.NodeID, router Router, deliver DeliverFunc, onFail FailFunc, flowCtl *flow.Controller, cfg Config) *Layer {
	if flowCtl == nil {
		flowCtl = flow.NewController(flow.DefaultHighWatermark, flow.DefaultLowWatermark)
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Layer{
		localID:  localID,
		router:   router,
		deliver:  deliver,
		onFail:   onFail,
		cfg:      cfg.withDefaults(),
		pool:     pool.NewBufferPool(),
		flow:     flowCtl,
		outgoing: make(map[string]*outgoingTracker),
		incoming: make(map[string]*reassemblyBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
	l.wg.Add(1)
	go l.sweepLoop()
	return l
}

// Send fragments data into chunks of at most ChunkSize bytes and routes
// each toward target, returning the fresh group-id assigned to the
// transfer. Delivery is asynchronous: completion is signalled only to
// the remote side's DeliverFunc, not to the caller of Send.
func (l *Layer) Send(ctx context.Context, target identity.NodeID, data []byte) (string, error) {
	groupID, err := wire.NewMessageID()
	if err != nil {
		return "", fmt.Errorf("delivery: assign group id: %w", err)
	}

	chunks := l.splitChunks(data)
	tracker := newOutgoingTracker(groupID, target, l.pool, chunks)

	l.mu.Lock()
	l.outgoing[groupID] = tracker
	l.mu.Unlock()

	for i := range chunks {
		chunk, _ := tracker.chunk(i)
		if err := l.flow.Acquire(ctx); err != nil {
			return groupID, fmt.Errorf("delivery: acquire flow credit: %w", err)
		}
		if err := l.sendChunk(target, groupID, len(chunks), i, chunk); err != nil {
			l.flow.Release()
			return groupID, err
		}
	}
	return groupID, nil
}

func (l *Layer) splitChunks(data []byte) []*[]byte {
	if len(data) == 0 {
		return []*[]byte{l.pool.GetExact(0)}
	}
	total := (len(data) + l.cfg.ChunkSize - 1) / l.cfg.ChunkSize
	chunks := make([]*[]byte, total)
	for i := 0; i < total; i++ {
		start := i * l.cfg.ChunkSize
		end := start + l.cfg.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		buf := l.pool.GetExact(end - start)
		copy(*buf, data[start:end])
		chunks[i] = buf
	}
	return chunks
}

func (l *Layer) sendChunk(target identity.NodeID, groupID string, total, index int, data []byte) error {
	env, err := wire.NewData(string(l.localID), wire.DataBody{
		GroupID:  groupID,
		Total:    total,
		Index:    index,
		Data:     data,
		Checksum: wire.Checksum(data),
		State:    wire.DataChunk,
	})
	if err != nil {
		return fmt.Errorf("delivery: build chunk envelope: %w", err)
	}
	return l.router.Route(target, env)
}

// HandleData dispatches an inbound Data envelope by its state.
func (l *Layer) HandleData(from identity.NodeID, env *wire.Envelope) error {
	body := env.Data
	if body == nil {
		return fmt.Errorf("delivery: data envelope missing body")
	}
	sender := identity.NodeID(env.SenderID)
	switch body.State {
	case wire.DataChunk:
		return l.handleChunk(sender, body)
	case wire.Acknowledgment:
		l.handleAck(body)
		return nil
	case wire.RetransmitRequest:
		return l.handleRetransmit(body)
	case wire.Complete:
		l.handleComplete(body)
		return nil
	default:
		return fmt.Errorf("delivery: unknown data state %s", body.State)
	}
}

func (l *Layer) handleChunk(sender identity.NodeID, body *wire.DataBody) error {
	if !bytes.Equal(wire.Checksum(body.Data), body.Checksum) {
		return l.sendControl(sender, body.GroupID, body.Total, body.Index, wire.RetransmitRequest)
	}

	l.mu.Lock()
	buf, ok := l.incoming[body.GroupID]
	if !ok {
		buf = newReassemblyBuffer(body.Total, l.pool)
		l.incoming[body.GroupID] = buf
	}
	l.mu.Unlock()

	buf.addChunk(body.Index, body.Data)
	if err := l.sendControl(sender, body.GroupID, body.Total, body.Index, wire.Acknowledgment); err != nil {
		return err
	}

	if !buf.isComplete() {
		return nil
	}

	assembled := buf.assemble()
	l.mu.Lock()
	delete(l.incoming, body.GroupID)
	l.mu.Unlock()

	l.deliver(sender, assembled)
	return l.sendControl(sender, body.GroupID, body.Total, 0, wire.Complete)
}

func (l *Layer) handleAck(body *wire.DataBody) {
	l.mu.Lock()
	tracker := l.outgoing[body.GroupID]
	l.mu.Unlock()
	if tracker == nil {
		return
	}

	if tracker.ack(body.Index) {
		l.flow.Release()
	}

	if tracker.isComplete() {
		l.mu.Lock()
		delete(l.outgoing, body.GroupID)
		l.mu.Unlock()
		tracker.release()
	}
}

// handleRetransmit resends the actual original chunk for the requested
// index, located from the tracker's retained chunk bytes by (group-id,
// index). It deliberately does not resend whatever bytes arrived on the
// RetransmitRequest envelope itself: that body carries no payload,
// resending it would retransmit an empty chunk forever.
func (l *Layer) handleRetransmit(body *wire.DataBody) error {
	l.mu.Lock()
	tracker := l.outgoing[body.GroupID]
	l.mu.Unlock()
	if tracker == nil {
		return nil
	}

	if tracker.incrementRetry() > l.cfg.MaxRetries {
		l.abandonOutgoing(tracker, fmt.Errorf("delivery: group %s exceeded retry limit", body.GroupID))
		return nil
	}

	chunk, ok := tracker.chunk(body.Index)
	if !ok {
		return nil
	}
	return l.sendChunk(tracker.target, body.GroupID, tracker.total(), body.Index, chunk)
}

func (l *Layer) handleComplete(body *wire.DataBody) {
	l.mu.Lock()
	buf := l.incoming[body.GroupID]
	delete(l.incoming, body.GroupID)
	tracker := l.outgoing[body.GroupID]
	delete(l.outgoing, body.GroupID)
	l.mu.Unlock()
	if buf != nil {
		buf.release()
	}
	if tracker != nil {
		tracker.release()
	}
}

func (l *Layer) sendControl(target identity.NodeID, groupID string, total, index int, state wire.DataState) error {
	env, err := wire.NewData(string(l.localID), wire.DataBody{
		GroupID: groupID,
		Total:   total,
		Index:   index,
		State:   state,
	})
	if err != nil {
		return fmt.Errorf("delivery: build control envelope: %w", err)
	}
	return l.router.Route(target, env)
}

func (l *Layer) abandonOutgoing(tracker *outgoingTracker, err error) {
	l.mu.Lock()
	delete(l.outgoing, tracker.groupID)
	l.mu.Unlock()
	for range tracker.missing() {
		l.flow.Release()
	}
	tracker.release()
	if l.onFail != nil {
		l.onFail(tracker.groupID, tracker.target, err)
	}
}

func (l *Layer) sweepLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Layer) sweep() {
	l.mu.Lock()
	outgoing := make([]*outgoingTracker, 0, len(l.outgoing))
	for _, t := range l.outgoing {
		outgoing = append(outgoing, t)
	}
	incoming := make(map[string]*reassemblyBuffer, len(l.incoming))
	for id, b := range l.incoming {
		incoming[id] = b
	}
	l.mu.Unlock()

	for _, tracker := range outgoing {
		if tracker.age() < l.cfg.ChunkTimeout || tracker.isComplete() {
			continue
		}
		if tracker.incrementRetry() > l.cfg.MaxRetries {
			l.abandonOutgoing(tracker, fmt.Errorf("delivery: group %s timed out", tracker.groupID))
			continue
		}
		for _, index := range tracker.missing() {
			chunk, ok := tracker.chunk(index)
			if !ok {
				continue
			}
			_ = l.sendChunk(tracker.target, tracker.groupID, tracker.total(), index, chunk)
		}
	}

	for id, buf := range incoming {
		if buf.age() < l.cfg.ChunkTimeout || buf.isComplete() {
			continue
		}
		l.mu.Lock()
		delete(l.incoming, id)
		l.mu.Unlock()
		buf.release()
	}
}

// Shutdown stops the timeout sweep.
func (l *Layer) Shutdown() {
	l.cancel()
	l.wg.Wait()
}

// PendingGroups returns the number of outgoing transfers awaiting
// acknowledgment and incoming transfers awaiting remaining chunks, for
// the Node Facade's debug snapshot.
func (l *Layer) PendingGroups() (outgoing, incoming int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.outgoing), len(l.incoming)
}

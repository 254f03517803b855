// Package liveness implements the Liveness Supervisor: a health sweep
// over authenticated peers, bounded-retry reconnection with exponential
// backoff, and a periodically refreshed metrics snapshot.
package liveness

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/eventdispatch"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
)

// HealthCheckInterval is how often every authenticated peer's liveness is
// evaluated.
const HealthCheckInterval = 5 * time.Second

// MetricsSampleInterval is how often the cached NetworkStats snapshot is
// refreshed.
const MetricsSampleInterval = 1 * time.Second

// HealthyThreshold is the maximum silence before a peer is considered
// unhealthy.
const HealthyThreshold = 30 * time.Second

// MaxReconnectAttempts bounds how many times an unhealthy peer is
// redialed before recovery is abandoned.
const MaxReconnectAttempts = 5

// backoffBase is the multiplier in the no-jitter exponential backoff
// formula: backoffBase * 2^attempts milliseconds.
const backoffBase = 1000 * time.Millisecond

// Config tunes the supervisor's sweep cadence and reconnection budget.
// A zero-value Config falls back to HealthCheckInterval,
// MetricsSampleInterval, HealthyThreshold, and MaxReconnectAttempts.
type Config struct {
	HealthCheckInterval   time.Duration
	MetricsSampleInterval time.Duration
	HealthyThreshold      time.Duration
	MaxReconnectAttempts  int
}

func (c Config) withDefaults() Config {
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = HealthCheckInterval
	}
	if c.MetricsSampleInterval <= 0 {
		c.MetricsSampleInterval = MetricsSampleInterval
	}
	if c.HealthyThreshold <= 0 {
		c.HealthyThreshold = HealthyThreshold
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = MaxReconnectAttempts
	}
	return c
}

// Connector is the subset of the Connection Registry the supervisor
// needs: enumerate authenticated peers, read their last-activity time,
// recover the transport id to redial them by, and trigger the redial.
type Connector interface {
	AllPeers() []identity.PeerRecord
	Count() int
	LastSeen(peerID identity.NodeID) (time.Time, bool)
	TransportFor(peerID identity.NodeID) (peer.ID, bool)
	Connect(ctx context.Context, remotePeerID peer.ID, addr multiaddr.Multiaddr, host string, port int) error
}

// EventSink receives NetworkEvents raised by the supervisor.
type EventSink interface {
	Emit(eventdispatch.Event)
}

// Stats is a point-in-time snapshot of network health, refreshed on
// MetricsSampleInterval and read without further computation.
type Stats struct {
	ActivePeers          int
	AverageLatencyMillis float64
	TotalMessages        uint64
	TotalErrors          uint64
	ErrorRatePercent     float64
}

type recoveryState struct {
	attempts    int
	nextAttempt time.Time
	abandoned   bool
}

// Supervisor runs the health sweep and metrics sampling loops.
type Supervisor struct {
	registry Connector
	events   EventSink
	cfg      Config

	mu        sync.Mutex
	recovery  map[identity.NodeID]*recoveryState
	latencies map[identity.NodeID]time.Duration

	totalMessages uint64
	totalErrors   uint64
	cached        atomic.Value // Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSupervisor creates a supervisor over registry, raising events
// through events. cfg's zero value uses HealthCheckInterval,
// MetricsSampleInterval, HealthyThreshold, and MaxReconnectAttempts.
func NewSupervisor(registry Connector, events EventSink, cfg Config) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		registry:  registry,
		events:    events,
		cfg:       cfg.withDefaults(),
		recovery:  make(map[identity.NodeID]*recoveryState),
		latencies: make(map[identity.NodeID]time.Duration),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.cached.Store(Stats{})
	return s
}

// Start begins the health sweep and metrics sampling loops.
func (s *Supervisor) Start() {
	s.wg.Add(2)
	go s.healthLoop()
	go s.metricsLoop()
}

// Stop halts both loops and waits for them to exit.
func (s *Supervisor) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Supervisor) healthLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkHealth()
		}
	}
}

func (s *Supervisor) metricsLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.MetricsSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.cached.Store(s.computeStats())
		}
	}
}

func (s *Supervisor) checkHealth() {
	now := time.Now()
	for _, rec := range s.registry.AllPeers() {
		lastSeen, ok := s.registry.LastSeen(rec.PeerID)
		if ok && now.Sub(lastSeen) < s.cfg.HealthyThreshold {
			s.onHealthy(rec.PeerID)
			continue
		}
		s.onUnhealthy(rec, now)
	}
}

func (s *Supervisor) onHealthy(peerID identity.NodeID) {
	s.mu.Lock()
	_, wasTracked := s.recovery[peerID]
	delete(s.recovery, peerID)
	s.mu.Unlock()

	if wasTracked {
		s.emit(eventdispatch.Event{
			Kind:        eventdispatch.RecoverySucceeded,
			PeerID:      string(peerID),
			Timestamp:   time.Now(),
			Description: "peer activity resumed",
		})
	}
}

func (s *Supervisor) onUnhealthy(rec identity.PeerRecord, now time.Time) {
	s.emit(eventdispatch.Event{
		Kind:        eventdispatch.PeerUnhealthy,
		PeerID:      string(rec.PeerID),
		Timestamp:   now,
		Description: "no activity within health threshold",
	})

	s.mu.Lock()
	state, ok := s.recovery[rec.PeerID]
	if !ok {
		state = &recoveryState{}
		s.recovery[rec.PeerID] = state
	}
	abandoned := state.abandoned
	attempts := state.attempts
	nextAttempt := state.nextAttempt
	s.mu.Unlock()

	if abandoned {
		return
	}

	if attempts >= s.cfg.MaxReconnectAttempts {
		s.mu.Lock()
		state.abandoned = true
		s.mu.Unlock()
		s.emit(eventdispatch.Event{
			Kind:        eventdispatch.RecoveryFailed,
			PeerID:      string(rec.PeerID),
			Timestamp:   now,
			Description: fmt.Sprintf("exhausted %d reconnection attempts", s.cfg.MaxReconnectAttempts),
		})
		return
	}

	if !nextAttempt.IsZero() && now.Before(nextAttempt) {
		return
	}

	s.attemptReconnect(rec)

	s.mu.Lock()
	state.attempts++
	state.nextAttempt = now.Add(backoffDelay(state.attempts))
	s.mu.Unlock()
}

func (s *Supervisor) attemptReconnect(rec identity.PeerRecord) {
	transportID, ok := s.registry.TransportFor(rec.PeerID)
	if !ok {
		return
	}
	addr, err := multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%d", rec.Host, rec.Port))
	if err != nil {
		return
	}
	_ = s.registry.Connect(s.ctx, transportID, addr, rec.Host, rec.Port)
	s.emit(eventdispatch.Event{
		Kind:        eventdispatch.RecoveryAttempted,
		PeerID:      string(rec.PeerID),
		Timestamp:   time.Now(),
		Description: "redialing unhealthy peer",
	})
}

// backoffDelay implements 1000 * 2^attempts ms with no jitter.
func backoffDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 30 {
		attempts = 30 // guard against overflow; unreachable under MaxReconnectAttempts
	}
	return backoffBase * time.Duration(1<<uint(attempts))
}

// RecordMessage updates the message/error counters the next metrics
// sample will reflect.
func (s *Supervisor) RecordMessage(isError bool) {
	atomic.AddUint64(&s.totalMessages, 1)
	if isError {
		atomic.AddUint64(&s.totalErrors, 1)
	}
}

// RecordLatency records a fresh round-trip sample for peerID.
func (s *Supervisor) RecordLatency(peerID identity.NodeID, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies[peerID] = d
}

func (s *Supervisor) computeStats() Stats {
	s.mu.Lock()
	var sum time.Duration
	for _, d := range s.latencies {
		sum += d
	}
	count := len(s.latencies)
	s.mu.Unlock()

	var avgMs float64
	if count > 0 {
		avgMs = float64(sum.Milliseconds()) / float64(count)
	}

	totalMsgs := atomic.LoadUint64(&s.totalMessages)
	totalErrs := atomic.LoadUint64(&s.totalErrors)
	var errRate float64
	if totalMsgs > 0 {
		errRate = float64(totalErrs) * 100 / float64(totalMsgs)
	}

	return Stats{
		ActivePeers:          s.registry.Count(),
		AverageLatencyMillis: avgMs,
		TotalMessages:        totalMsgs,
		TotalErrors:          totalErrs,
		ErrorRatePercent:     errRate,
	}
}

// Stats returns the most recently sampled metrics snapshot.
func (s *Supervisor) Stats() Stats {
	return s.cached.Load().(Stats)
}

func (s *Supervisor) emit(ev eventdispatch.Event) {
	if s.events == nil {
		return
	}
	s.events.Emit(ev)
}

// Package routing implements multi-hop message forwarding: the next-hop
// table, the loop/duplicate suppression cache, the four forwarding
// strategies, and path learning from observed routes.
package routing

import (
	"fmt"
	"time"

	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/eventdispatch"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/wire"
)

// DefaultMaxHops bounds how many times an envelope may be forwarded
// before it is dropped as exceeding its TTL.
const DefaultMaxHops = 10

// DefaultMaxPaths is how many distinct next-hops Multipath forwards to.
const DefaultMaxPaths = 3

// PeerSender is the subset of the Connection Registry the Routing Engine
// needs: send to a specific authenticated peer, and enumerate all of
// them for Flood.
type PeerSender interface {
	SendTo(peerID identity.NodeID, env *wire.Envelope) error
	AllPeers() []identity.PeerRecord
}

// EventSink receives NetworkEvents raised by the engine.
type EventSink interface {
	Emit(eventdispatch.Event)
}

// DeliverFunc hands a fully-routed payload envelope to the local
// application/delivery layer.
type DeliverFunc func(payload *wire.Envelope)

// Config tunes the engine's hop limit and loop/duplicate suppression
// window. A zero-value Config falls back to DefaultMaxHops and
// DefaultMessageTTL.
type Config struct {
	MaxHops          int
	RecentMessageTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxHops <= 0 {
		c.MaxHops = DefaultMaxHops
	}
	if c.RecentMessageTTL <= 0 {
		c.RecentMessageTTL = DefaultMessageTTL
	}
	return c
}

// Engine implements route() and handle_routing(): the local-origination
// entrypoint and the forwarded-envelope entrypoint, both routed through
// the same strategy dispatch.
type Engine struct {
	localID identity.NodeID
	sender  PeerSender
	deliver DeliverFunc
	events  EventSink

	table    *Table
	cache    *RecentCache
	maxHops  int
	maxPaths int
}

// NewEngine creates a routing engine for localID. deliver is invoked for
// every payload addressed to this node, whether routed to it or received
// as a bare Data envelope. cfg's zero value uses DefaultMaxHops and
// DefaultMessageTTL.
func NewEngine(localID identity.NodeID, sender PeerSender, deliver DeliverFunc, events EventSink, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		localID:  localID,
		sender:   sender,
		deliver:  deliver,
		events:   events,
		table:    NewTable(),
		cache:    NewRecentCache(cfg.RecentMessageTTL),
		maxHops:  cfg.MaxHops,
		maxPaths: DefaultMaxPaths,
	}
}

// Table exposes the engine's next-hop table for inspection (e.g. the
// Node Facade's debug snapshot).
func (e *Engine) Table() *Table { return e.table }

// Route is the first-hop entrypoint: an application-level send for
// target. If target is the local node, payload is delivered immediately
// without touching the network.
func (e *Engine) Route(target identity.NodeID, payload wire.Envelope) error {
	if target == e.localID {
		e.deliver(&payload)
		return nil
	}
	if e.cache.CheckAndInsert(payload.MessageID) {
		return nil
	}

	strategy := e.selectStrategy(target)
	env, err := wire.NewRouting(string(e.localID), string(target), []string{string(e.localID)}, strategy, payload)
	if err != nil {
		return fmt.Errorf("routing: wrap payload: %w", err)
	}
	e.forward(&env, "")
	return nil
}

// HandleEnvelope is called for every Data or Routing envelope the
// Connection Registry accepts from an authenticated session.
func (e *Engine) HandleEnvelope(fromPeer identity.NodeID, env *wire.Envelope) error {
	switch env.Kind {
	case wire.KindData:
		e.deliver(env)
		return nil
	case wire.KindRouting:
		return e.handleRouting(fromPeer, env)
	default:
		return fmt.Errorf("routing: unexpected envelope kind %s", env.Kind)
	}
}

func (e *Engine) handleRouting(fromPeer identity.NodeID, env *wire.Envelope) error {
	body := env.Routing
	if body == nil || body.Payload == nil {
		return fmt.Errorf("routing: routing envelope missing payload")
	}

	if e.cache.CheckAndInsert(body.Payload.MessageID) {
		return nil
	}

	hopCount := len(body.Route) - 1
	if hopCount >= e.maxHops {
		return nil
	}

	if identity.NodeID(body.TargetID) == e.localID {
		e.deliver(body.Payload)
		return nil
	}

	if body.Strategy == wire.DiscoverRoute {
		e.learnRoute(body.Route)
	}

	newRoute := append(append([]string{}, body.Route...), string(e.localID))
	forwardBody := *body
	forwardBody.Route = newRoute
	forwardEnv := *env
	forwardEnv.Routing = &forwardBody

	e.forward(&forwardEnv, fromPeer)
	return nil
}

func (e *Engine) selectStrategy(target identity.NodeID) wire.Strategy {
	if e.table.Contains(target) {
		return wire.Direct
	}
	return wire.Flood
}

func (e *Engine) forward(env *wire.Envelope, inboundPeer identity.NodeID) {
	body := env.Routing
	target := identity.NodeID(body.TargetID)

	switch body.Strategy {
	case wire.Direct:
		e.forwardDirect(env, target)
	case wire.Flood:
		e.forwardFlood(env, target, inboundPeer)
	case wire.Multipath:
		e.forwardMultipath(env, target)
	case wire.DiscoverRoute:
		e.forwardDirect(env, target)
	default:
		e.forwardFlood(env, target, inboundPeer)
	}
}

func (e *Engine) forwardDirect(env *wire.Envelope, target identity.NodeID) {
	hops := e.table.NextHops(target, 1)
	if len(hops) == 0 {
		return
	}
	e.sendNextHop(env, hops[0], target)
}

func (e *Engine) forwardMultipath(env *wire.Envelope, target identity.NodeID) {
	for _, hop := range e.table.NextHops(target, e.maxPaths) {
		e.sendNextHop(env, hop, target)
	}
}

func (e *Engine) forwardFlood(env *wire.Envelope, target, inboundPeer identity.NodeID) {
	visited := make(map[string]struct{}, len(env.Routing.Route))
	for _, id := range env.Routing.Route {
		visited[id] = struct{}{}
	}

	for _, peer := range e.sender.AllPeers() {
		if peer.PeerID == inboundPeer {
			continue
		}
		if _, ok := visited[string(peer.PeerID)]; ok {
			continue
		}
		e.sendNextHop(env, peer.PeerID, target)
	}
}

func (e *Engine) sendNextHop(env *wire.Envelope, nextHop, target identity.NodeID) {
	if err := e.sender.SendTo(nextHop, env); err != nil {
		e.table.Remove(target, nextHop)
		e.emit(eventdispatch.Event{
			Kind:        eventdispatch.RouteLost,
			PeerID:      string(nextHop),
			Description: fmt.Sprintf("forward to %s for target %s failed: %v", nextHop, target, err),
			Timestamp:   time.Now(),
		})
	}
}

func (e *Engine) learnRoute(route []string) {
	for i := 0; i < len(route)-1; i++ {
		e.table.Add(identity.NodeID(route[i]), identity.NodeID(route[i+1]))
	}
	if len(route) >= 2 {
		e.emit(eventdispatch.Event{
			Kind:        eventdispatch.RouteDiscovered,
			Description: fmt.Sprintf("learned %d hops from observed route", len(route)-1),
			Timestamp:   time.Now(),
		})
	}
}

func (e *Engine) emit(ev eventdispatch.Event) {
	if e.events != nil {
		e.events.Emit(ev)
	}
}

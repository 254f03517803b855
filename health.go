package labyrinth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/liveness"
)

// CheckResult represents the result of a single health check.
type CheckResult struct {
	// Name is the name of the check.
	Name string `json:"name"`

	// Healthy indicates whether the check passed.
	Healthy bool `json:"healthy"`

	// Message provides additional context about the check result.
	Message string `json:"message,omitempty"`

	// Duration is how long the check took.
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// HealthStatus represents the overall health status of the node.
type HealthStatus struct {
	// Healthy indicates whether all checks passed.
	Healthy bool `json:"healthy"`

	// Checks contains the results of individual checks.
	Checks []CheckResult `json:"checks"`

	// Timestamp is when the health check was performed.
	Timestamp time.Time `json:"timestamp"`
}

// IsHealthy returns true if the node is started and its session
// transport is accepting connections. This is a quick check suitable
// for liveness probes.
func (n *Node) IsHealthy() bool {
	n.startMu.Lock()
	started := n.started
	n.startMu.Unlock()

	return started && n.host != nil
}

// Health performs detailed health checks and returns the results. This
// is suitable for readiness probes and debugging.
//
// Checks performed:
//   - node_started: whether the node has been started
//   - session_transport: whether the transport host is accessible
//   - discovery: whether the Discovery Service is running
//   - peer_reachability: whether every authenticated peer has been
//     heard from within the liveness threshold, some have gone quiet,
//     or there are none (informational, does not affect overall health)
func (n *Node) Health() HealthStatus {
	status := HealthStatus{
		Healthy:   true,
		Checks:    make([]CheckResult, 0, 4),
		Timestamp: time.Now(),
	}

	start := time.Now()
	n.startMu.Lock()
	started := n.started
	n.startMu.Unlock()
	status.Checks = append(status.Checks, CheckResult{
		Name:     "node_started",
		Healthy:  started,
		Message:  boolToMessage(started, "node is running", "node is not started"),
		Duration: time.Since(start),
	})
	if !started {
		status.Healthy = false
	}

	start = time.Now()
	hostOK := n.host != nil
	status.Checks = append(status.Checks, CheckResult{
		Name:     "session_transport",
		Healthy:  hostOK,
		Message:  boolToMessage(hostOK, "session transport is listening", "session transport is not available"),
		Duration: time.Since(start),
	})
	if !hostOK {
		status.Healthy = false
	}

	start = time.Now()
	discoveryOK := started && n.discovery != nil
	status.Checks = append(status.Checks, CheckResult{
		Name:     "discovery",
		Healthy:  discoveryOK,
		Message:  boolToMessage(discoveryOK, "discovery service is running", "discovery service is not running"),
		Duration: time.Since(start),
	})
	if !discoveryOK {
		status.Healthy = false
	}

	start = time.Now()
	reachable, total := n.peerReachability()
	reachMsg := "no authenticated peers"
	if total > 0 {
		reachMsg = boolToMessage(reachable == total, "all authenticated peers are reachable", "some authenticated peers have gone quiet")
	}
	status.Checks = append(status.Checks, CheckResult{
		Name:     "peer_reachability",
		Healthy:  true, // informational only
		Message:  reachMsg,
		Duration: time.Since(start),
	})

	return status
}

// peerReachability returns how many of the Connection Registry's
// authenticated peers have been heard from within the liveness
// supervisor's health threshold, and the total authenticated count.
func (n *Node) peerReachability() (reachable, total int) {
	now := time.Now()
	for _, rec := range n.registry.AllPeers() {
		total++
		if lastSeen, ok := n.registry.LastSeen(rec.PeerID); ok && now.Sub(lastSeen) < liveness.HealthyThreshold {
			reachable++
		}
	}
	return reachable, total
}

// boolToMessage returns trueMsg if b is true, otherwise falseMsg.
func boolToMessage(b bool, trueMsg, falseMsg string) string {
	if b {
		return trueMsg
	}
	return falseMsg
}

// HealthHandler returns an http.Handler that serves detailed health
// check responses. The handler responds with:
//   - 200 OK if the node is healthy
//   - 503 Service Unavailable if the node is unhealthy
//
// The response body contains a JSON representation of HealthStatus.
//
// Example usage:
//
//	http.Handle("/health", labyrinth.HealthHandler(node))
func HealthHandler(node *Node) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := node.Health()

		w.Header().Set("Content-Type", "application/json")
		if status.Healthy {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(status)
	})
}

// LivenessHandler returns an http.Handler that serves liveness check
// responses. Unlike HealthHandler, this does not perform detailed
// checks, so it is cheap enough to poll frequently.
//
// Example usage:
//
//	http.Handle("/live", labyrinth.LivenessHandler(node))
func LivenessHandler(node *Node) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		healthy := node.IsHealthy()

		w.Header().Set("Content-Type", "application/json")
		if healthy {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"healthy":true}`))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"healthy":false}`))
		}
	})
}

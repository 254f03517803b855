package labyrinth

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/cloudflare/circl/sign/dilithium"
	"github.com/sagacious-satadru/Nexus-Cipher-Labyrinth/internal/identity"
)

// dilithiumMode is the ML-DSA parameter set used for the application-level
// signing key. It must match the mode internal/signature is built against.
var dilithiumMode = dilithium.Mode3

// Default configuration values.
const (
	DefaultDiscoveryPort               = 54321
	DefaultMaxHops                     = 10
	DefaultChunkSize                   = 1 << 20
	DefaultChunkTimeout                = 30 * time.Second
	DefaultMaxChunkRetries             = 3
	DefaultSweepInterval               = 30 * time.Second
	DefaultHealthSweepInterval         = 5 * time.Second
	DefaultMetricsSampleInterval       = 1 * time.Second
	DefaultMaxReconnectAttempts        = 5
	DefaultRecentMessageTTL            = 5 * time.Minute
	DefaultEventLogCapacity            = 1000
	DefaultDiscoveryBroadcastInterval  = 30 * time.Second
	DefaultDiscoveryStaleSweepInterval = 5 * time.Minute
)

// Config holds the configuration for a mesh node.
type Config struct {
	// NodeID is this node's opaque identifier. Generated if empty.
	NodeID identity.NodeID

	// ListenPort is the TCP port the session transport listens on.
	// 0 selects a kernel-assigned port.
	ListenPort int

	// DiscoveryPort is the UDP port the discovery service broadcasts and
	// listens on.
	DiscoveryPort int

	// TransportKey is the Ed25519 private key securing the libp2p
	// transport identity. This is independent from SigningKeySeed; it
	// secures the muxed connection, not the mesh session carried inside
	// it. Generated if nil.
	TransportKey ed25519.PrivateKey

	// SigningKeySeed seeds the application-level ML-DSA signing key used
	// by the handshake engine. If empty, a fresh key is generated. If
	// provided, it must be exactly dilithiumMode.SeedSize() bytes.
	SigningKeySeed []byte

	// MaxHops bounds how many times an envelope may be relayed before
	// the routing engine drops it.
	MaxHops int

	// ChunkSize is the maximum payload size, in bytes, of a single
	// fragment in the reliable delivery layer.
	ChunkSize int

	// ChunkTimeout is how long the delivery layer waits for an
	// unacknowledged chunk before retransmitting it.
	ChunkTimeout time.Duration

	// MaxChunkRetries bounds how many times a transfer (payload group)
	// is retransmitted before the transfer is abandoned.
	MaxChunkRetries int

	// SweepInterval is how often the delivery layer's timeout sweep
	// checks for stalled transfers.
	SweepInterval time.Duration

	// HealthSweepInterval is how often the liveness supervisor evaluates
	// peer health.
	HealthSweepInterval time.Duration

	// MetricsSampleInterval is how often the liveness supervisor
	// refreshes its cached stats snapshot.
	MetricsSampleInterval time.Duration

	// MaxReconnectAttempts bounds how many times the liveness supervisor
	// redials an unhealthy peer before abandoning recovery.
	MaxReconnectAttempts int

	// RecentMessageTTL is how long the routing engine remembers an
	// envelope id for loop and duplicate suppression.
	RecentMessageTTL time.Duration

	// EventLogCapacity bounds the in-memory ring of recent network
	// events kept for debug snapshots.
	EventLogCapacity int

	// DiscoveryBroadcastInterval is how often the discovery service
	// broadcasts its presence.
	DiscoveryBroadcastInterval time.Duration

	// DiscoveryStaleSweepInterval is how often the discovery service
	// evicts peers it has not heard from.
	DiscoveryStaleSweepInterval time.Duration

	// Logger is the logger for the node. If nil, a NopLogger is used.
	Logger Logger

	// Metrics is the metrics collector for the node. If nil, a
	// NopMetrics is used.
	Metrics Metrics
}

// Validate checks that the configuration is valid and returns an error
// describing any problems found.
func (c *Config) Validate() error {
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("%w: listen port out of range", ErrConfiguration)
	}
	if c.DiscoveryPort < 0 || c.DiscoveryPort > 65535 {
		return fmt.Errorf("%w: discovery port out of range", ErrConfiguration)
	}
	if c.TransportKey != nil && len(c.TransportKey) != ed25519.PrivateKeySize {
		return fmt.Errorf("%w: transport key must be %d bytes, got %d",
			ErrConfiguration, ed25519.PrivateKeySize, len(c.TransportKey))
	}
	if len(c.SigningKeySeed) != 0 && len(c.SigningKeySeed) != dilithiumMode.SeedSize() {
		return fmt.Errorf("%w: signing key seed must be %d bytes, got %d",
			ErrConfiguration, dilithiumMode.SeedSize(), len(c.SigningKeySeed))
	}
	if c.MaxHops < 1 {
		return fmt.Errorf("%w: max hops must be at least 1", ErrConfiguration)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk size must be positive", ErrConfiguration)
	}
	if c.ChunkTimeout < 0 {
		return fmt.Errorf("%w: chunk timeout cannot be negative", ErrConfiguration)
	}
	if c.MaxChunkRetries < 0 {
		return fmt.Errorf("%w: max chunk retries cannot be negative", ErrConfiguration)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("%w: sweep interval cannot be negative", ErrConfiguration)
	}
	if c.HealthSweepInterval <= 0 {
		return fmt.Errorf("%w: health sweep interval must be positive", ErrConfiguration)
	}
	if c.MetricsSampleInterval <= 0 {
		return fmt.Errorf("%w: metrics sample interval must be positive", ErrConfiguration)
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("%w: max reconnect attempts cannot be negative", ErrConfiguration)
	}
	if c.RecentMessageTTL <= 0 {
		return fmt.Errorf("%w: recent message ttl must be positive", ErrConfiguration)
	}
	if c.EventLogCapacity < 0 {
		return fmt.Errorf("%w: event log capacity cannot be negative", ErrConfiguration)
	}
	if c.DiscoveryBroadcastInterval <= 0 {
		return fmt.Errorf("%w: discovery broadcast interval must be positive", ErrConfiguration)
	}
	if c.DiscoveryStaleSweepInterval <= 0 {
		return fmt.Errorf("%w: discovery stale sweep interval must be positive", ErrConfiguration)
	}
	return nil
}

// applyDefaults sets default values for any unset optional fields and
// materializes key material left unset by the caller.
func (c *Config) applyDefaults() error {
	if c.NodeID == "" {
		id, err := identity.NewNodeID()
		if err != nil {
			return fmt.Errorf("generate node id: %w", err)
		}
		c.NodeID = id
	}
	if c.DiscoveryPort == 0 {
		c.DiscoveryPort = DefaultDiscoveryPort
	}
	if c.TransportKey == nil {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("generate transport key: %w", err)
		}
		c.TransportKey = priv
	}
	if c.MaxHops == 0 {
		c.MaxHops = DefaultMaxHops
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkTimeout == 0 {
		c.ChunkTimeout = DefaultChunkTimeout
	}
	if c.MaxChunkRetries == 0 {
		c.MaxChunkRetries = DefaultMaxChunkRetries
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.HealthSweepInterval == 0 {
		c.HealthSweepInterval = DefaultHealthSweepInterval
	}
	if c.MetricsSampleInterval == 0 {
		c.MetricsSampleInterval = DefaultMetricsSampleInterval
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.RecentMessageTTL == 0 {
		c.RecentMessageTTL = DefaultRecentMessageTTL
	}
	if c.EventLogCapacity == 0 {
		c.EventLogCapacity = DefaultEventLogCapacity
	}
	if c.DiscoveryBroadcastInterval == 0 {
		c.DiscoveryBroadcastInterval = DefaultDiscoveryBroadcastInterval
	}
	if c.DiscoveryStaleSweepInterval == 0 {
		c.DiscoveryStaleSweepInterval = DefaultDiscoveryStaleSweepInterval
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
	return nil
}

// ConfigOption is a functional option for configuring a Node.
type ConfigOption func(*Config)

// WithNodeID sets the node's identifier explicitly rather than generating
// one.
func WithNodeID(id identity.NodeID) ConfigOption {
	return func(c *Config) {
		c.NodeID = id
	}
}

// WithListenPort sets the TCP port the session transport listens on.
func WithListenPort(port int) ConfigOption {
	return func(c *Config) {
		c.ListenPort = port
	}
}

// WithDiscoveryPort sets the UDP port used for peer discovery.
func WithDiscoveryPort(port int) ConfigOption {
	return func(c *Config) {
		c.DiscoveryPort = port
	}
}

// WithTransportKey sets the Ed25519 key securing the libp2p transport
// identity.
func WithTransportKey(key ed25519.PrivateKey) ConfigOption {
	return func(c *Config) {
		c.TransportKey = key
	}
}

// WithSigningKeySeed seeds the application-level ML-DSA signing key. seed
// must be dilithiumMode.SeedSize() bytes.
func WithSigningKeySeed(seed []byte) ConfigOption {
	return func(c *Config) {
		c.SigningKeySeed = seed
	}
}

// WithMaxHops sets the relay hop-count limit.
func WithMaxHops(n int) ConfigOption {
	return func(c *Config) {
		c.MaxHops = n
	}
}

// WithChunkSize sets the maximum fragment size for reliable delivery.
func WithChunkSize(n int) ConfigOption {
	return func(c *Config) {
		c.ChunkSize = n
	}
}

// WithChunkTimeout sets the unacknowledged-chunk retransmit timeout.
func WithChunkTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.ChunkTimeout = d
	}
}

// WithMaxChunkRetries sets the per-transfer retransmission limit.
func WithMaxChunkRetries(n int) ConfigOption {
	return func(c *Config) {
		c.MaxChunkRetries = n
	}
}

// WithSweepInterval sets how often the delivery layer's timeout sweep
// checks for stalled transfers.
func WithSweepInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.SweepInterval = d
	}
}

// WithHealthSweepInterval sets how often peer health is evaluated.
func WithHealthSweepInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.HealthSweepInterval = d
	}
}

// WithMetricsSampleInterval sets how often the stats snapshot refreshes.
func WithMetricsSampleInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.MetricsSampleInterval = d
	}
}

// WithMaxReconnectAttempts sets the bound on reconnection attempts before
// recovery is abandoned for a peer.
func WithMaxReconnectAttempts(n int) ConfigOption {
	return func(c *Config) {
		c.MaxReconnectAttempts = n
	}
}

// WithRecentMessageTTL sets how long envelope ids are remembered for loop
// and duplicate suppression.
func WithRecentMessageTTL(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.RecentMessageTTL = d
	}
}

// WithEventLogCapacity sets the size of the in-memory recent-events ring.
func WithEventLogCapacity(n int) ConfigOption {
	return func(c *Config) {
		c.EventLogCapacity = n
	}
}

// WithDiscoveryBroadcastInterval sets how often discovery announces this
// node's presence.
func WithDiscoveryBroadcastInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.DiscoveryBroadcastInterval = d
	}
}

// WithDiscoveryStaleSweepInterval sets how often discovery evicts peers
// it has not heard from.
func WithDiscoveryStaleSweepInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.DiscoveryStaleSweepInterval = d
	}
}

// WithLogger sets the logger for the node. It must be safe for
// concurrent use.
func WithLogger(l Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMetrics sets the metrics collector for the node. It must be safe
// for concurrent use.
func WithMetrics(m Metrics) ConfigOption {
	return func(c *Config) {
		c.Metrics = m
	}
}

// NewConfig builds a Config from the given options, generating any unset
// key material and applying defaults. It does not validate the result;
// call Validate explicitly if the caller supplied values that need
// checking.
func NewConfig(opts ...ConfigOption) (*Config, error) {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}
	return c, nil
}

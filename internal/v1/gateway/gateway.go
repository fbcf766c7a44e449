package gateway

import (
	"time"

	"github.com/open-collab/gateway/internal/v1/throttle"
	"github.com/open-collab/gateway/internal/v1/version"
)

// Config holds the gateway's runtime tunables.
type Config struct {
	// MaxNumberOfClientsPerDocument caps concurrent clients per room.
	MaxNumberOfClientsPerDocument int
	// MaxTokenLifetime bounds how long a connection is honored past
	// connect, regardless of the token's own expiry.
	MaxTokenLifetime time.Duration
	// IsTokenExpiryEnabled gates whether connect_document arms the
	// connection's expiration timer from the clients' token deadlines. It
	// does not change claim validation.
	IsTokenExpiryEnabled bool
	// ServerVersions is the server's most-preferred-first protocol range
	// list, used for connect_document negotiation.
	ServerVersions []string
}

// DefaultConfig returns the platform's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxNumberOfClientsPerDocument: 1_000_000,
		MaxTokenLifetime:              time.Hour,
		IsTokenExpiryEnabled:          true,
		ServerVersions:                version.DefaultServerVersions,
	}
}

// Gateway wires the connect/submitOp/submitSignal/disconnect/presence
// pipeline to a concrete set of collaborators. One Gateway instance is
// shared by every Connection; it holds no per-socket state itself.
type Gateway struct {
	Config Config

	Tokens    TokenLib
	Tenants   TenantManager
	Registry  ClientRegistry
	Orderers  OrdererManager
	Metrics   MetricSink
	Transport Transport

	ConnectThrottle  *throttle.Guard
	SubmitOpThrottle *throttle.Guard
}

// New constructs a Gateway from its collaborators and configuration. Any
// throttle guard may be nil, in which case that check is skipped
// entirely — useful for tests and for deployments that rely on an
// upstream load balancer for connection throttling.
func New(cfg Config, tokens TokenLib, tenants TenantManager, registry ClientRegistry, orderers OrdererManager, metrics MetricSink, transport Transport, connectThrottle, submitOpThrottle *throttle.Guard) *Gateway {
	return &Gateway{
		Config:           cfg,
		Tokens:           tokens,
		Tenants:          tenants,
		Registry:         registry,
		Orderers:         orderers,
		Metrics:          metrics,
		Transport:        transport,
		ConnectThrottle:  connectThrottle,
		SubmitOpThrottle: submitOpThrottle,
	}
}

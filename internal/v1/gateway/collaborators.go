package gateway

import (
	"context"
	"time"

	"github.com/open-collab/gateway/internal/v1/auth"
	"github.com/open-collab/gateway/internal/v1/sanitize"
)

// TokenLib validates a bearer token's claims against the document being
// connected to, and checks the claims' remaining lifetime. auth.TokenLib
// satisfies this structurally.
type TokenLib interface {
	ValidateClaims(token, tenantID, documentID string) (*auth.Claims, error)
	ValidateExpiration(claims *auth.Claims, maxLifetime time.Duration) (time.Duration, error)
}

// TenantManager independently verifies that a token is valid for a
// tenant, beyond the claims signature check TokenLib already performed.
type TenantManager interface {
	VerifyToken(ctx context.Context, tenantID, token string) error
}

// StatusCoder is implemented by a TenantManager's rejection error when it
// can attribute an upstream HTTP status code to the rejection, so the
// connect pipeline can propagate that code instead of assuming a fixed
// one.
type StatusCoder interface {
	StatusCode() int
}

// ClientRegistry is the durable, cross-replica record of which clients
// are present in which room.
type ClientRegistry interface {
	GetClients(ctx context.Context, tenantID, documentID string) ([]ClientDescriptor, error)
	AddClient(ctx context.Context, tenantID, documentID string, client ClientDescriptor) error
	RemoveClient(ctx context.Context, tenantID, documentID, clientID string) error
}

// Orderer is a single client's channel to the document-ordering backend.
// Connect must succeed before any Order call; onError fires at most once,
// asynchronously, the first time the backend reports a fault.
// MaxMessageSize and ServiceConfiguration reflect the backend's own
// limits for this document and are only meaningful after Connect succeeds.
type Orderer interface {
	Connect(ctx context.Context, clientID string, onError func(error)) error
	Order(ctx context.Context, ops []sanitize.Op) error
	Disconnect(ctx context.Context, clientID string) error
	MaxMessageSize() int
	ServiceConfiguration() map[string]any
}

// OrdererManager resolves the Orderer responsible for a tenant/document
// pair, creating or reusing a backend connection as needed.
type OrdererManager interface {
	GetOrderer(ctx context.Context, tenantID, documentID string) (Orderer, error)
}

// OrdererForgetter is implemented by OrdererManagers that cache Orderers
// across callers and need telling when a document has no clients left, so
// the next connect renegotiates instead of reusing a stale cache entry.
// Implementing it is optional: managers with no such cache need not.
type OrdererForgetter interface {
	Forget(tenantID, documentID string)
}

// MetricSink records latency spans from the traces of round-trip ops,
// which HandleSubmitOp hands to it instead of the orderer. It never blocks
// the caller on a write failure.
type MetricSink interface {
	WriteLatencyMetric(name string, traces []sanitize.Trace)
}

// Socket is a single transport-level connection. The gateway never reads
// from or writes raw bytes to it directly — only emits named events and
// manages its room membership.
type Socket interface {
	ID() string
	Emit(event string, payload any) error
	Join(room string) error
	Leave(room string)
	Close() error
}

// Transport fans an event out to every socket currently joined to room,
// optionally skipping one sender.
type Transport interface {
	Broadcast(room, event string, payload any, excludeSocketID string)
}

package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"k8s.io/utils/set"

	"github.com/open-collab/gateway/internal/v1/auth"
	"github.com/open-collab/gateway/internal/v1/logging"
	"github.com/open-collab/gateway/internal/v1/room"
	"github.com/open-collab/gateway/internal/v1/throttle"
	"github.com/open-collab/gateway/internal/v1/version"
)

// readerMaxMessageSize and readerServiceConfiguration are handed to
// clients connecting in read mode, who never get an orderer connection
// of their own to source these values from.
const readerMaxMessageSize = 1024

var readerServiceConfiguration = map[string]any{
	"blockSize":      1024,
	"maxMessageSize": readerMaxMessageSize,
	"summary":        false,
}

// HandleConnectDocument runs the connect_document pipeline: throttle,
// token presence and validation, tenant verification, room join,
// scope-authoritative descriptor composition, protocol negotiation,
// quota, registration, expiration arming, and (for writers) orderer
// attachment. It returns a *CallerError for any caller-attributable
// rejection; any other error is an internal fault that the caller should
// log at error level and answer with an opaque 500, never the fault's own detail.
func (g *Gateway) HandleConnectDocument(ctx context.Context, conn *Connection, req ConnectRequest) (*ConnectResponse, error) {
	// 1. Throttle.
	if err := g.ConnectThrottle.Check(ctx, throttle.ConnectKey(req.TenantID)); err != nil {
		return nil, asThrottleCallerError(err)
	}

	// 2. Token presence.
	if req.Token == "" {
		return nil, NewCallerError(403, "Must provide an authorization token")
	}

	// 3. Token claim validation.
	claims, err := g.Tokens.ValidateClaims(req.Token, req.TenantID, req.DocumentID)
	if err != nil {
		return nil, NewCallerError(401, "Invalid token")
	}

	// 4. Tenant verification.
	if err := g.Tenants.VerifyToken(ctx, req.TenantID, req.Token); err != nil {
		code := 401
		var coder StatusCoder
		if errors.As(err, &coder) {
			code = coder.StatusCode()
		}
		return nil, NewCallerError(code, "Token rejected by tenant")
	}

	// 5. Mint clientId and room.
	clientID := uuid.NewString()
	r := room.Room{TenantID: req.TenantID, DocumentID: req.DocumentID}

	// 6. Transport room join. Any failure is an internal fault.
	if err := conn.socket.Join(r.ID()); err != nil {
		return nil, fmt.Errorf("join document room: %w", err)
	}
	if err := conn.socket.Join(room.ClientChannel(clientID)); err != nil {
		conn.socket.Leave(r.ID())
		return nil, fmt.Errorf("join client channel: %w", err)
	}

	// 7. Compose the effective scope set. This is the authoritative
	// filter: a client that does not assert details.type=="summarizer"
	// never keeps a SummaryWrite scope, no matter what its token grants.
	scopes := effectiveScopes(claims.Scopes, req.Client)
	descriptor := ClientDescriptor{
		ClientID: clientID,
		User:     claims.User,
		Scopes:   scopeStrings(scopes),
	}

	// 8. Protocol negotiation.
	negotiated, err := version.Negotiate(g.Config.ServerVersions, req.Versions)
	if err != nil {
		conn.socket.Leave(r.ID())
		conn.socket.Leave(room.ClientChannel(clientID))
		return nil, NewCallerError(400, err.Error())
	}

	// 9. Quota.
	existing, err := g.Registry.GetClients(ctx, req.TenantID, req.DocumentID)
	if err != nil {
		conn.socket.Leave(r.ID())
		conn.socket.Leave(room.ClientChannel(clientID))
		return nil, fmt.Errorf("list existing clients: %w", err)
	}
	if len(existing) >= g.Config.MaxNumberOfClientsPerDocument {
		conn.socket.Leave(r.ID())
		conn.socket.Leave(room.ClientChannel(clientID))
		return nil, &CallerError{Code: 429, Message: "Too Many Clients Connected to Document", RetryAfter: 300}
	}

	// 10. Register client.
	if err := g.Registry.AddClient(ctx, req.TenantID, req.DocumentID, descriptor); err != nil {
		conn.socket.Leave(r.ID())
		conn.socket.Leave(room.ClientChannel(clientID))
		return nil, fmt.Errorf("register client: %w", err)
	}

	// 12. Mode selection. Writer iff the effective scopes grant write
	// capability and the client actually asked to write; a write-capable
	// client that requested mode=="read" is still a reader.
	writerCapable := scopes.Has(auth.ScopeDocWrite) || scopes.Has(auth.ScopeSummaryWrite)
	mode := "read"
	var orderer Orderer
	if writerCapable && req.Mode == "write" {
		mode = "write"
		orderer, err = g.Orderers.GetOrderer(ctx, req.TenantID, req.DocumentID)
		if err == nil {
			err = orderer.Connect(ctx, clientID, func(orderErr error) {
				logging.Error(ctx, "orderer reported an async fault, closing socket")
				conn.mu.Lock()
				conn.rearmExpiration(0)
				conn.mu.Unlock()
				_ = conn.socket.Close()
			})
		}
		if err != nil {
			_ = g.Registry.RemoveClient(ctx, req.TenantID, req.DocumentID, clientID)
			conn.socket.Leave(r.ID())
			conn.socket.Leave(room.ClientChannel(clientID))
			return nil, fmt.Errorf("attach orderer: %w", err)
		}
	}

	// 13. Populate per-socket state.
	conn.mu.Lock()
	conn.clients[clientID] = &clientState{room: r, claims: claims, scopes: scopes, mode: mode}
	if orderer != nil {
		conn.orderers[clientID] = orderer
	}
	// 11. Expiration arm.
	if g.Config.IsTokenExpiryEnabled {
		conn.recomputeExpiration()
	}
	conn.mu.Unlock()

	// 14. Respond.
	resp := &ConnectResponse{
		ClientID:                      clientID,
		Mode:                          mode,
		Version:                       negotiated,
		ExistingClients:               existing,
		MaxNumberOfClientsPerDocument: g.Config.MaxNumberOfClientsPerDocument,
	}
	if orderer != nil {
		resp.MaxMessageSize = orderer.MaxMessageSize()
		resp.ServiceConfiguration = orderer.ServiceConfiguration()
	} else {
		resp.MaxMessageSize = readerMaxMessageSize
		resp.ServiceConfiguration = readerServiceConfiguration
	}

	// 15. Announce join.
	g.Transport.Broadcast(r.ID(), "signal", RoomJoinSignal{ClientID: clientID, Details: descriptor}, conn.socket.ID())

	return resp, nil
}

// effectiveScopes copies claims into a fresh set, dropping SummaryWrite
// unless client asserts type=="summarizer". The server never trusts a
// client-asserted scope; this is the sole place that decision is made.
func effectiveScopes(claims set.Set[auth.Scope], client *ClientDetails) set.Set[auth.Scope] {
	isSummarizer := client != nil && client.Type == "summarizer"
	out := set.New[auth.Scope]()
	for _, s := range claims.UnsortedList() {
		if s == auth.ScopeSummaryWrite && !isSummarizer {
			continue
		}
		out.Insert(s)
	}
	return out
}

// asThrottleCallerError maps a throttle.Error to a 429 CallerError,
// leaving any other error (an internal fault from the limiter's own
// plumbing) untouched so the caller logs and answers with a 500 instead.
func asThrottleCallerError(err error) error {
	var throttleErr *throttle.Error
	if errors.As(err, &throttleErr) {
		return NewCallerError(429, "Too many requests")
	}
	return fmt.Errorf("throttle check: %w", err)
}

package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"k8s.io/utils/set"

	"github.com/open-collab/gateway/internal/v1/auth"
	"github.com/open-collab/gateway/internal/v1/sanitize"
)

// fakeTokenLib maps bearer tokens to preset claims, as if every token had
// already been issued by a test fixture.
type fakeTokenLib struct {
	byToken map[string]*auth.Claims
	expired map[string]bool
}

func newFakeTokenLib() *fakeTokenLib {
	return &fakeTokenLib{byToken: make(map[string]*auth.Claims), expired: make(map[string]bool)}
}

func (f *fakeTokenLib) withClient(token, tenantID, documentID, user string, scopes ...auth.Scope) *fakeTokenLib {
	s := set.New[auth.Scope]()
	s.Insert(scopes...)
	f.byToken[token] = &auth.Claims{TenantID: tenantID, DocumentID: documentID, User: user, Scopes: s}
	return f
}

func (f *fakeTokenLib) ValidateClaims(token, tenantID, documentID string) (*auth.Claims, error) {
	claims, ok := f.byToken[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	if claims.TenantID != tenantID || claims.DocumentID != documentID {
		return nil, errors.New("tenant/document mismatch")
	}
	return claims, nil
}

func (f *fakeTokenLib) ValidateExpiration(claims *auth.Claims, maxLifetime time.Duration) (time.Duration, error) {
	if f.expired[claims.User] {
		return 0, errors.New("expired")
	}
	return maxLifetime, nil
}

type fakeTenantManager struct {
	reject     bool
	statusCode int
}

type fakeStatusError struct {
	code int
}

func (e *fakeStatusError) Error() string   { return "tenant rejected token" }
func (e *fakeStatusError) StatusCode() int { return e.code }

func (f *fakeTenantManager) VerifyToken(_ context.Context, _, _ string) error {
	if f.reject {
		if f.statusCode != 0 {
			return &fakeStatusError{code: f.statusCode}
		}
		return errors.New("tenant rejected token")
	}
	return nil
}

type fakeRegistry struct {
	mu      sync.Mutex
	clients map[string][]ClientDescriptor
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{clients: make(map[string][]ClientDescriptor)}
}

func (f *fakeRegistry) key(tenantID, documentID string) string { return tenantID + "/" + documentID }

func (f *fakeRegistry) GetClients(_ context.Context, tenantID, documentID string) ([]ClientDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ClientDescriptor, len(f.clients[f.key(tenantID, documentID)]))
	copy(out, f.clients[f.key(tenantID, documentID)])
	return out, nil
}

func (f *fakeRegistry) AddClient(_ context.Context, tenantID, documentID string, client ClientDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(tenantID, documentID)
	f.clients[k] = append(f.clients[k], client)
	return nil
}

func (f *fakeRegistry) RemoveClient(_ context.Context, tenantID, documentID, clientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(tenantID, documentID)
	filtered := f.clients[k][:0]
	for _, c := range f.clients[k] {
		if c.ClientID != clientID {
			filtered = append(filtered, c)
		}
	}
	f.clients[k] = filtered
	return nil
}

type fakeOrderer struct {
	mu             sync.Mutex
	connected      []string
	ordered        [][]sanitize.Op
	disconnect     []string
	connectErr     error
	maxMessageSize int
	serviceConfig  map[string]any
}

func (f *fakeOrderer) Connect(_ context.Context, clientID string, _ func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = append(f.connected, clientID)
	return nil
}

func (f *fakeOrderer) Order(_ context.Context, ops []sanitize.Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ordered = append(f.ordered, ops)
	return nil
}

func (f *fakeOrderer) Disconnect(_ context.Context, clientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnect = append(f.disconnect, clientID)
	return nil
}

func (f *fakeOrderer) MaxMessageSize() int {
	if f.maxMessageSize == 0 {
		return 65536
	}
	return f.maxMessageSize
}

func (f *fakeOrderer) ServiceConfiguration() map[string]any {
	return f.serviceConfig
}

type fakeOrdererManager struct {
	orderer *fakeOrderer
	err     error

	mu          sync.Mutex
	forgetCalls []string
}

func (f *fakeOrdererManager) GetOrderer(_ context.Context, _, _ string) (Orderer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.orderer, nil
}

func (f *fakeOrdererManager) Forget(tenantID, documentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgetCalls = append(f.forgetCalls, tenantID+"/"+documentID)
}

type fakeMetricSink struct {
	mu     sync.Mutex
	writes map[string]int
}

func newFakeMetricSink() *fakeMetricSink { return &fakeMetricSink{writes: make(map[string]int)} }

func (f *fakeMetricSink) WriteLatencyMetric(name string, _ []sanitize.Trace) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes[name]++
}

type fakeSocket struct {
	id      string
	mu      sync.Mutex
	joined  map[string]bool
	closed  bool
	joinErr error
}

func newFakeSocket(id string) *fakeSocket {
	return &fakeSocket{id: id, joined: make(map[string]bool)}
}

func (f *fakeSocket) ID() string                  { return f.id }
func (f *fakeSocket) Emit(_ string, _ any) error { return nil }
func (f *fakeSocket) Join(room string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joined[room] = true
	return nil
}
func (f *fakeSocket) Leave(room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.joined, room)
}
func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
func (f *fakeSocket) hasJoined(room string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joined[room]
}

type broadcastCall struct {
	room, event string
	payload     any
	exclude     string
}

type fakeTransport struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func newFakeTransport() *fakeTransport { return &fakeTransport{} }

func (f *fakeTransport) Broadcast(room, event string, payload any, excludeSocketID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, broadcastCall{room: room, event: event, payload: payload, exclude: excludeSocketID})
}

func newTestGateway(tokens *fakeTokenLib, tenants *fakeTenantManager, registry *fakeRegistry, orderers *fakeOrdererManager, metrics *fakeMetricSink, transport *fakeTransport) *Gateway {
	cfg := DefaultConfig()
	return New(cfg, tokens, tenants, registry, orderers, metrics, transport, nil, nil)
}

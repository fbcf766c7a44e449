package orderer

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/open-collab/gateway/internal/v1/gateway"
)

// Manager dials the orderer backend once and hands out one gateway.Orderer
// per tenant/document pair, reused across every writer that attaches to
// that document.
type Manager struct {
	conn *grpc.ClientConn

	mu    sync.Mutex
	cache map[string]*Client
}

// NewManager dials addr with creds. A nil creds dials plaintext
// (development) using insecure credentials.
func NewManager(addr string, creds credentials.TransportCredentials) (*Manager, error) {
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dial orderer at %s: %w", addr, err)
	}
	return &Manager{conn: conn, cache: make(map[string]*Client)}, nil
}

// GetOrderer satisfies gateway.OrdererManager.
func (m *Manager) GetOrderer(_ context.Context, tenantID, documentID string) (gateway.Orderer, error) {
	key := tenantID + "/" + documentID

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cache[key]; ok {
		return c, nil
	}
	c := newClient(m.conn, tenantID, documentID)
	m.cache[key] = c
	return c, nil
}

// Forget drops the cached Client for tenantID/documentID, e.g. once its
// last client disconnects, so a later reconnect renegotiates maxMessageSize
// and serviceConfiguration from scratch rather than trusting stale values.
func (m *Manager) Forget(tenantID, documentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, tenantID+"/"+documentID)
}

// Close shuts down the underlying gRPC connection.
func (m *Manager) Close() error {
	return m.conn.Close()
}

package registry

import (
	"context"
	"sync"

	"github.com/open-collab/gateway/internal/v1/gateway"
)

// MemoryStore is an in-process gateway.ClientRegistry for single-replica
// deployments and tests, with no cross-replica visibility.
type MemoryStore struct {
	mu    sync.RWMutex
	byKey map[string]map[string]gateway.ClientDescriptor
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: make(map[string]map[string]gateway.ClientDescriptor)}
}

func (m *MemoryStore) GetClients(_ context.Context, tenantID, documentID string) ([]gateway.ClientDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := m.byKey[key(tenantID, documentID)]
	out := make([]gateway.ClientDescriptor, 0, len(clients))
	for _, d := range clients {
		out = append(out, d)
	}
	return out, nil
}

func (m *MemoryStore) AddClient(_ context.Context, tenantID, documentID string, client gateway.ClientDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(tenantID, documentID)
	if m.byKey[k] == nil {
		m.byKey[k] = make(map[string]gateway.ClientDescriptor)
	}
	m.byKey[k][client.ClientID] = client
	return nil
}

func (m *MemoryStore) RemoveClient(_ context.Context, tenantID, documentID, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.byKey[key(tenantID, documentID)], clientID)
	return nil
}

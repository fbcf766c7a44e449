package gateway

import (
	"context"
	"sync"

	"github.com/open-collab/gateway/internal/v1/logging"
)

// HandleDisconnect tears down every clientId this connection's socket
// ever registered: orderer connections are disconnected fire-and-forget
// (they must not block the socket's teardown), while registry removal
// and the room "leave" broadcast are awaited before returning, so the
// registry is guaranteed consistent by the time the caller considers the
// socket fully gone.
func (g *Gateway) HandleDisconnect(ctx context.Context, conn *Connection) {
	conn.mu.Lock()
	clients := conn.clients
	orderers := conn.orderers
	conn.clients = make(map[string]*clientState)
	conn.orderers = make(map[string]Orderer)
	conn.rearmExpiration(0)
	conn.mu.Unlock()

	for clientID, orderer := range orderers {
		go func(clientID string, orderer Orderer) {
			if err := orderer.Disconnect(context.Background(), clientID); err != nil {
				logging.Warn(context.Background(), "orderer disconnect failed during teardown")
			}
		}(clientID, orderer)
	}

	var wg sync.WaitGroup
	for clientID, cs := range clients {
		wg.Add(1)
		go func(clientID string, cs *clientState) {
			defer wg.Done()

			if err := g.Registry.RemoveClient(ctx, cs.room.TenantID, cs.room.DocumentID, clientID); err != nil {
				logging.Error(ctx, "failed to remove client from registry during disconnect")
			}
			g.Transport.Broadcast(cs.room.ID(), "signal", RoomLeaveSignal{ClientID: clientID}, conn.socket.ID())
			g.forgetOrdererIfDocumentEmpty(ctx, cs.room.TenantID, cs.room.DocumentID)
		}(clientID, cs)
	}
	wg.Wait()
}

// forgetOrdererIfDocumentEmpty drops a cached Orderer once its document's
// last client leaves, so a later connect renegotiates MaxMessageSize and
// ServiceConfiguration instead of trusting a stale cache entry.
func (g *Gateway) forgetOrdererIfDocumentEmpty(ctx context.Context, tenantID, documentID string) {
	forgetter, ok := g.Orderers.(OrdererForgetter)
	if !ok {
		return
	}

	remaining, err := g.Registry.GetClients(ctx, tenantID, documentID)
	if err != nil {
		logging.Warn(ctx, "failed to check remaining clients before forgetting orderer")
		return
	}
	if len(remaining) == 0 {
		forgetter.Forget(tenantID, documentID)
	}
}

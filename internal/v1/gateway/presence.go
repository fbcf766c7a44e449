package gateway

import (
	"context"

	"github.com/open-collab/gateway/internal/v1/logging"
)

// HandleGetClients answers a get_clients query by broadcasting the
// registry's current view of the caller's room to that whole room. The
// caller must itself be a room member; an outside query is nacked rather
// than answered.
func (g *Gateway) HandleGetClients(ctx context.Context, conn *Connection, clientID string) *NackMessage {
	conn.mu.Lock()
	cs, known := conn.clients[clientID]
	conn.mu.Unlock()

	if !known {
		return nack(clientID, "get_clients", 400, BadRequestError, "Nonexistent client")
	}

	clients, err := g.Registry.GetClients(ctx, cs.room.TenantID, cs.room.DocumentID)
	if err != nil {
		logging.Error(ctx, "failed to fetch client list for get_clients")
		return nil
	}
	g.Transport.Broadcast(cs.room.ID(), "connected_clients", clients, "")
	return nil
}

// HandlePing answers a ping by broadcasting a pong carrying clientId to
// the caller's room, so every room member can observe the liveness
// check. The caller must itself be a room member.
func (g *Gateway) HandlePing(conn *Connection, clientID string) *NackMessage {
	conn.mu.Lock()
	cs, known := conn.clients[clientID]
	conn.mu.Unlock()

	if !known {
		return nack(clientID, "ping", 400, BadRequestError, "Nonexistent client")
	}

	g.Transport.Broadcast(cs.room.ID(), "pong", clientID, "")
	return nil
}

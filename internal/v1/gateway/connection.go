package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/open-collab/gateway/internal/v1/logging"
)

// Connection is the per-socket state a single transport connection
// accumulates across one or more connect_document calls. clients folds
// room membership, claims, and effective scopes into one map, since a
// clientId's room and claims are always read and written together;
// orderers is a strict subset of clients, since only writers get an
// orderer attached.
//
// A socket's handler methods run serially by construction (one goroutine
// per transport read loop), but the orderer error callback and the
// expiration timer fire from other goroutines, so mutations to the maps
// below go through mu.
type Connection struct {
	gw     *Gateway
	socket Socket

	mu       sync.Mutex
	clients  map[string]*clientState
	orderers map[string]Orderer

	expirationTimer *time.Timer
}

// NewConnection creates the per-socket state for a freshly accepted
// transport connection. Call Close when the transport connection ends.
func NewConnection(gw *Gateway, socket Socket) *Connection {
	return &Connection{
		gw:       gw,
		socket:   socket,
		clients:  make(map[string]*clientState),
		orderers: make(map[string]Orderer),
	}
}

// recomputeExpiration rearms the connection's single expiration timer to
// the soonest deadline across every clientId this socket currently hosts.
// Callers must hold mu.
func (c *Connection) recomputeExpiration() {
	var soonest time.Duration
	found := false
	for _, cs := range c.clients {
		ttl, err := c.gw.Tokens.ValidateExpiration(cs.claims, c.gw.Config.MaxTokenLifetime)
		if err != nil {
			continue
		}
		if !found || ttl < soonest {
			soonest = ttl
			found = true
		}
	}
	if found {
		c.rearmExpiration(soonest)
	} else {
		c.rearmExpiration(0)
	}
}

// rearmExpiration stops the connection's single expiration timer and, if
// newTTL is positive, starts a new one that closes the socket after newTTL;
// a newTTL of zero or less just clears the timer. This is a documented smell
// inherited unmodified: with one timer per socket, a socket hosting clients
// with different token lifetimes only ever honors the earliest one
// (recomputeExpiration passes the soonest), so a longer-lived client's
// session can be torn down early by a shorter-lived sibling sharing the
// same socket.
func (c *Connection) rearmExpiration(newTTL time.Duration) {
	if c.expirationTimer != nil {
		c.expirationTimer.Stop()
		c.expirationTimer = nil
	}
	if newTTL <= 0 {
		return
	}
	c.expirationTimer = time.AfterFunc(newTTL, func() {
		logging.Warn(context.Background(), "connection expired, closing socket")
		_ = c.socket.Close()
	})
}

// Close tears down every orderer this connection attached and stops its
// expiration timer. It does not touch the registry or broadcast a leave
// event — callers that need those as part of an orderly disconnect should
// call HandleDisconnect instead; Close is the last-resort cleanup for a
// socket that is going away regardless.
func (c *Connection) Close() {
	c.mu.Lock()
	timer := c.expirationTimer
	c.expirationTimer = nil
	orderers := c.orderers
	c.orderers = make(map[string]Orderer)
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	for clientID, orderer := range orderers {
		go orderer.Disconnect(context.Background(), clientID)
	}
}

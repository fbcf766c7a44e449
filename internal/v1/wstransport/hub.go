// Package wstransport is a reference gateway.Socket/gateway.Transport
// implementation over WebSocket connections, needed to have a runnable
// process even though the transport itself is an out-of-scope
// collaborator: it owns no document semantics, only connection upgrade,
// room membership, and event fan-out.
package wstransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/open-collab/gateway/internal/v1/bus"
	"github.com/open-collab/gateway/internal/v1/gateway"
)

// Hub is the central coordinator for every socket connected to this
// replica: it owns room membership locally and, when a bus is configured,
// fans events out across replicas so a document room spans every pod.
type Hub struct {
	gw             *gateway.Gateway
	bus            *bus.Service
	allowedOrigins []string

	mu    sync.RWMutex
	rooms map[string]map[string]*Socket

	subMu      sync.Mutex
	subscribed map[string]bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewHub wires a Hub to a Gateway and an optional cross-replica bus (nil
// for single-instance deployments).
func NewHub(gw *gateway.Gateway, busService *bus.Service, allowedOrigins []string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		gw:             gw,
		bus:            busService,
		allowedOrigins: allowedOrigins,
		rooms:          make(map[string]map[string]*Socket),
		subscribed:     make(map[string]bool),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Close stops every cross-replica subscription this Hub opened.
func (h *Hub) Close() {
	h.cancel()
}

func (h *Hub) join(room string, s *Socket) {
	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Socket)
		h.rooms[room] = members
	}
	members[s.ID()] = s
	h.mu.Unlock()

	h.ensureSubscribed(room)
}

func (h *Hub) leave(room string, s *Socket) {
	h.mu.Lock()
	if members, ok := h.rooms[room]; ok {
		delete(members, s.ID())
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

// ensureSubscribed opens the cross-replica subscription for room once,
// the first time any local socket joins it. The subscription outlives
// the room going locally empty, rather than resubscribing on every join.
func (h *Hub) ensureSubscribed(room string) {
	if h.bus == nil {
		return
	}

	h.subMu.Lock()
	if h.subscribed[room] {
		h.subMu.Unlock()
		return
	}
	h.subscribed[room] = true
	h.subMu.Unlock()

	h.bus.Subscribe(h.ctx, room, nil, func(msg bus.PubSubPayload) {
		h.deliverLocal(room, msg.Event, []byte(msg.Payload), msg.OriginSocketID)
	})
}

func (h *Hub) deliverLocal(room, event string, rawPayload []byte, excludeSocketID string) {
	h.mu.RLock()
	members := h.rooms[room]
	targets := make([]*Socket, 0, len(members))
	for id, s := range members {
		if id == excludeSocketID {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		data, err := encodeEnvelope(event, rawPayloadAsIs(rawPayload))
		if err != nil {
			continue
		}
		select {
		case s.send <- data:
		default:
			slog.Warn("socket send buffer full, dropping replayed message", "socketId", s.ID(), "event", event)
		}
	}
}

// rawPayloadAsIs preserves an already-marshaled payload instead of
// double-encoding it through encodeEnvelope's json.Marshal.
type rawPayloadAsIs []byte

func (r rawPayloadAsIs) MarshalJSON() ([]byte, error) { return r, nil }

// Broadcast satisfies gateway.Transport: every socket joined to room on
// this replica gets the event immediately; if a bus is configured, every
// other replica's sockets get it too via pub/sub.
func (h *Hub) Broadcast(room, event string, payload any, excludeSocketID string) {
	h.mu.RLock()
	members := h.rooms[room]
	targets := make([]*Socket, 0, len(members))
	for id, s := range members {
		if id == excludeSocketID {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		_ = s.Emit(event, payload)
	}

	if h.bus != nil {
		_ = h.bus.Publish(context.Background(), room, event, payload, excludeSocketID)
	}
}

var upgrader = websocket.Upgrader{
	WriteBufferPool: &sync.Pool{New: func() any { return make([]byte, 4096) }},
}

// ServeWs upgrades an incoming request to a WebSocket and hands the
// resulting socket off to the gateway's connection state machine.
// Authentication is not performed at upgrade time: connect_document
// carries the token over the socket itself, so every upgrade succeeds
// and HandleConnectDocument does the rejecting.
func (h *Hub) ServeWs(c *gin.Context) {
	upg := upgrader
	upg.CheckOrigin = h.checkOrigin

	conn, err := upg.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", "error", err)
		return
	}

	socket := newSocket(uuid.NewString(), conn, h)
	wsConnection := gateway.NewConnection(h.gw, socket)

	go socket.writePump()
	go socket.readPump(
		func(env envelope) { h.route(c.Request.Context(), wsConnection, socket, env) },
		func() { h.gw.HandleDisconnect(context.Background(), wsConnection) },
	)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}

package wstransport

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn is the subset of *websocket.Conn a Socket needs, narrowed so
// tests can substitute a fake without a real network connection.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

const writeWait = 10 * time.Second

// Socket wraps one WebSocket connection, satisfying gateway.Socket.
// Reads and writes run on two dedicated goroutines connected by a
// buffered send channel, so a slow client never blocks the room
// broadcasting to it.
type Socket struct {
	id   string
	conn wsConn
	send chan []byte
	hub  *Hub

	mu     sync.Mutex
	rooms  map[string]struct{}
	closed bool
}

func newSocket(id string, conn wsConn, hub *Hub) *Socket {
	return &Socket{
		id:    id,
		conn:  conn,
		send:  make(chan []byte, 256),
		hub:   hub,
		rooms: make(map[string]struct{}),
	}
}

func (s *Socket) ID() string { return s.id }

// Emit queues event for delivery to this socket alone. The send channel
// buffer absorbs transient bursts; a socket whose buffer stays full drops
// messages rather than blocking the room it shares with every other
// socket.
func (s *Socket) Emit(event string, payload any) error {
	data, err := encodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	select {
	case s.send <- data:
		return nil
	default:
		slog.Warn("socket send buffer full, dropping message", "socketId", s.id, "event", event)
		return nil
	}
}

// Join adds the socket to room. It cannot fail for this in-memory hub,
// but returns an error to satisfy gateway.Socket, whose contract allows a
// transport-level join to fail and route the caller into the internal-
// fault pipeline.
func (s *Socket) Join(room string) error {
	s.mu.Lock()
	s.rooms[room] = struct{}{}
	s.mu.Unlock()
	s.hub.join(room, s)
	return nil
}

func (s *Socket) Leave(room string) {
	s.mu.Lock()
	delete(s.rooms, room)
	s.mu.Unlock()
	s.hub.leave(room, s)
}

// Close closes the underlying connection. Safe to call multiple times.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	rooms := make([]string, 0, len(s.rooms))
	for r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.rooms = make(map[string]struct{})
	s.mu.Unlock()

	for _, r := range rooms {
		s.hub.leave(r, s)
	}
	return s.conn.Close()
}

func (s *Socket) writePump() {
	defer func() { _ = s.conn.Close() }()
	for message := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			slog.Error("socket write failed", "socketId", s.id, "error", err)
			return
		}
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump reads envelopes off the connection until it closes or errs,
// handing each one to onEnvelope. It runs handleClose exactly once, after
// the loop ends, regardless of why.
func (s *Socket) readPump(onEnvelope func(envelope), handleClose func()) {
	defer handleClose()

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env envelope
		if err := decodeEnvelope(data, &env); err != nil {
			slog.Warn("failed to decode envelope", "socketId", s.id, "error", err)
			continue
		}
		onEnvelope(env)
	}
}

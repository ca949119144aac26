package http

import (
	"log"
	"sync"

	"trivia-room-service/internal/app"
)

// Hub tracks live websocket connections by connection id and implements
// app.EventSink. Room machinery addresses connections only through it, so
// the core never touches a socket.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*client
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*client)}
}

// Send routes an event to the connection's write pump. Unknown connection
// ids are dropped silently (the participant is detached); a full buffer
// drops the event rather than blocking the room.
func (h *Hub) Send(connID string, event app.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case c.send <- event:
	default:
		log.Printf("ws: dropping %s event for slow connection %s", event.Type, connID)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
}

// remove unregisters the connection and closes its send channel. Closing
// under the write lock keeps Send from racing the close.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c.id]; !ok {
		return
	}
	delete(h.conns, c.id)
	close(c.send)
}

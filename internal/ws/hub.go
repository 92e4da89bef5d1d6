package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"messaging-service/internal/bus"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// client wraps a websocket connection with a write lock; envelopes arrive
// from many request goroutines but gorilla allows a single writer.
type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// clientFrame is what clients actually receive; the routing fields of the
// bus envelope are stripped.
type clientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub holds this instance's live connections, one per user, and writes bus
// envelopes to the matching sockets. A reconnect evicts the prior connection.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates an empty hub and subscribes it to the event bus.
func NewHub(eventBus bus.EventBus) *Hub {
	h := &Hub{clients: make(map[string]*client)}
	eventBus.Subscribe(h.Deliver)
	return h
}

// Add registers a user's connection. Any previous connection for the same
// user is closed and replaced.
func (h *Hub) Add(userID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	prev := h.clients[userID]
	h.clients[userID] = &client{conn: conn, info: info}
	h.mu.Unlock()

	if prev != nil && prev.conn != nil {
		_ = prev.conn.Close()
	}
}

// Remove drops the user's connection if conn still owns it. A stale remove
// from an evicted connection is a no-op.
func (h *Hub) Remove(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[userID]; ok && current.conn == conn {
		delete(h.clients, userID)
	}
}

// IsConnected reports whether the user has a live connection on this
// instance.
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Deliver writes an envelope to the addressed connection, or to every
// connection except the excluded user for a broadcast. Events addressed to a
// user without a live connection here are dropped.
func (h *Hub) Deliver(env models.Envelope) {
	payload, err := json.Marshal(clientFrame{Event: env.Event, Data: env.Data})
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}

	if env.To != "" {
		h.mu.RLock()
		c := h.clients[env.To]
		h.mu.RUnlock()
		if c == nil {
			observability.IncRealtimeDropped(env.Event)
			return
		}
		h.writeTo(env.To, c, payload)
		return
	}

	h.mu.RLock()
	targets := make(map[string]*client, len(h.clients))
	for userID, c := range h.clients {
		if userID == env.Exclude {
			continue
		}
		targets[userID] = c
	}
	h.mu.RUnlock()

	for userID, c := range targets {
		h.writeTo(userID, c, payload)
	}
}

func (h *Hub) writeTo(userID string, c *client, payload []byte) {
	if err := c.write(payload); err != nil {
		log.Printf("websocket write error user=%s: %v", userID, err)
		_ = c.conn.Close()
		h.Remove(userID, c.conn)
	}
}

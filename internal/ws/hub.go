package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sandwich_hub/internal/events"
)

const defaultWriteTimeout = 5 * time.Second

// client is one open socket. mu serializes data frames.
type client struct {
	id     string
	userID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

// Hub fans events out to every connected client. Delivery is best effort:
// a client whose write fails or times out is dropped.
type Hub struct {
	mu           sync.RWMutex
	clients      map[*client]struct{}
	writeTimeout time.Duration
	log          *slog.Logger
}

var _ events.Publisher = (*Hub)(nil)

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:      make(map[*client]struct{}),
		writeTimeout: defaultWriteTimeout,
		log:          log,
	}
}

func (h *Hub) register(userID string, conn *websocket.Conn) *client {
	c := &client{id: uuid.NewString(), userID: userID, conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("ws client connected", "client_id", c.id, "user_id", userID, "clients", n)
	return c
}

// unregister removes c and closes its socket. It reports whether c was still registered.
func (h *Hub) unregister(c *client) bool {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
		h.log.Info("ws client disconnected", "client_id", c.id, "user_id", c.userID)
	}
	return ok
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish writes ev to every connected client before returning.
func (h *Hub) Publish(_ context.Context, ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("ws marshal event", "event", ev.Name, "error", err)
		return
	}
	msg, err := websocket.NewPreparedMessage(websocket.TextMessage, payload)
	if err != nil {
		h.log.Error("ws prepare event", "event", ev.Name, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := h.write(c, msg); err != nil {
			h.log.Warn("ws dropping client", "client_id", c.id, "user_id", c.userID, "event", ev.Name, "error", err)
			h.unregister(c)
		}
	}
}

func (h *Hub) write(c *client, msg *websocket.PreparedMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WritePreparedMessage(msg)
}

// Close says goodbye to every client and empties the hub.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		_ = c.conn.Close()
	}
}

// Package hub fans conversation activity out to dashboard WebSocket
// clients. Dashboards are observers only: a slow or dead dashboard is
// dropped, never allowed to stall the device path.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Event is one dashboard update.
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Timestamp int64       `json:"ts"`
	Data      interface{} `json:"data,omitempty"`
}

// conn is the subset of the WebSocket connection the hub uses. Tests
// substitute a fake.
type conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type client struct {
	id   string
	conn conn

	mu sync.Mutex
}

func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages dashboard connections.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client

	eventsSent atomic.Uint64
	dropped    atomic.Uint64
}

// New creates a dashboard hub.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger.With("component", "hub"),
		clients: make(map[string]*client),
	}
}

// RegisterRoutes mounts the dashboard WebSocket endpoint on a Fiber app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/dashboard", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/dashboard", websocket.New(func(c *websocket.Conn) {
		id := h.add(c)
		defer h.remove(id)

		// Dashboards do not send anything meaningful; the read loop only
		// notices disconnects.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

// Broadcast sends one event to every connected dashboard.
func (h *Hub) Broadcast(eventType, sessionID string, data interface{}) {
	ev := Event{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal dashboard event failed", "type", eventType, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(payload); err != nil {
			h.dropped.Add(1)
			h.logger.Debug("dropping dashboard client", "id", c.id, "error", err)
			h.remove(c.id)
			continue
		}
		h.eventsSent.Add(1)
	}
}

// Clients returns the number of connected dashboards.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// EventsSent returns the total events delivered.
func (h *Hub) EventsSent() uint64 {
	return h.eventsSent.Load()
}

func (h *Hub) add(c conn) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.clients[id] = &client{id: id, conn: c}
	h.mu.Unlock()
	h.logger.Info("dashboard connected", "id", id)
	return id
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
		h.logger.Info("dashboard disconnected", "id", id)
	}
}

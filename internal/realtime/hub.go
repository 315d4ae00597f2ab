// Package realtime pushes story lifecycle events to websocket subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maauso/story-api/internal/story"
)

const writeTimeout = 5 * time.Second

// Message is the JSON frame sent to subscribers.
type Message struct {
	Type      string    `json:"type"`
	StoryID   string    `json:"story_id"`
	UserID    string    `json:"user_id"`
	MediaType string    `json:"media_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// sendBuffer is how many frames may queue for a slow subscriber before it
// is dropped.
const sendBuffer = 16

// Hub tracks websocket subscribers and broadcasts story events to them.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// client is one subscriber. Frames are queued on send and written by its
// own goroutine, so a stalled connection never blocks publishers.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Compile-time check that Hub implements story.Notifier.
var _ story.Notifier = (*Hub)(nil)

// NewHub creates a hub accepting connections from allowedOrigins
// ("*" allows any origin).
func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the subscriber registered until
// the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	defer h.unregister(c)

	go h.writePump(c)

	// subscribers only listen; reading detects disconnects
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// Publish queues ev for every subscriber without waiting on the network.
// Subscribers whose queue is full are dropped.
func (h *Hub) Publish(_ context.Context, ev story.Event) {
	if ev.Story == nil {
		return
	}

	data, err := json.Marshal(Message{
		Type:      string(ev.Type),
		StoryID:   ev.Story.ID,
		UserID:    ev.Story.UserID,
		MediaType: string(ev.Story.MediaType),
		CreatedAt: ev.Story.CreatedAt,
	})
	if err != nil {
		h.logger.Error("failed to marshal story event", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Info("dropping slow websocket subscriber")
			h.drop(c)
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.drop(c)
	}
}

// writePump delivers queued frames to one connection until its queue is
// closed or a write fails.
func (h *Hub) writePump(c *client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Info("dropping websocket subscriber", slog.String("error", err.Error()))
			h.unregister(c)
			return
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.logger.Debug("websocket subscriber connected", slog.Int("subscribers", len(h.clients)))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop removes c and closes its queue and connection. Callers hold h.mu.
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	_ = c.conn.Close()
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

package notification

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/citywatch/citywatch-api/internal/pkg/metrics"
)

// Connection is one staff websocket
type Connection struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans feed messages out to the staff connected to this instance.
// Cross-instance delivery comes from every instance subscribing to the
// event bus.
type Hub struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
}

// NewHub creates a new staff feed hub
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
	}
}

// Run manages connections until ctx is done (call in goroutine)
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			h.mu.Unlock()
			metrics.FeedConnections.Inc()
			log.Debug().Str("user_id", conn.UserID.String()).Msg("Staff connected to moderation feed")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				close(conn.Send)
				metrics.FeedConnections.Dec()
			}
			h.mu.Unlock()
			log.Debug().Str("user_id", conn.UserID.String()).Msg("Staff disconnected from moderation feed")
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.connections {
		delete(h.connections, conn)
		close(conn.Send)
		metrics.FeedConnections.Dec()
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Broadcast sends msg to every local connection. Slow connections drop
// the frame rather than block the feed.
func (h *Hub) Broadcast(msg *FeedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections {
		select {
		case conn.Send <- data:
			metrics.Notifications.WithLabelValues("feed", "sent").Inc()
		default:
			metrics.Notifications.WithLabelValues("feed", "dropped").Inc()
			log.Warn().Str("user_id", conn.UserID.String()).Msg("Moderation feed send buffer full")
		}
	}
	return nil
}

// ConnectionCount returns number of local connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

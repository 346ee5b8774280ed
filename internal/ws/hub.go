package ws

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/slateos/backend/internal/infrastructure/logging"
	"github.com/slateos/backend/internal/infrastructure/monitoring"
	"github.com/slateos/backend/internal/shared/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Hub broadcasts registry lifecycle events (visibility switches,
// evictions, ownership changes) to connected UI clients. Publish never
// blocks the registry: slow clients drop events rather than stalling
// admission or eviction.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chan types.Event
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHub creates an event hub
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		clients: make(map[string]chan types.Event),
		logger:  logger.Named("ws"),
	}
}

// WithMetrics adds metrics tracking to the hub
func (h *Hub) WithMetrics(m *monitoring.Metrics) *Hub {
	h.metrics = m
	return h
}

// Publish fans an event out to every connected client. Non-blocking:
// a client with a full queue misses the event.
func (h *Hub) Publish(event types.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.clients {
		select {
		case ch <- event:
		default:
			h.logger.Debug("dropped event for slow client",
				zap.String("client_id", id),
				zap.String("event", event.Type),
			)
		}
	}
}

// HandleConnection upgrades the request and streams events until the
// client disconnects
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	clientID := uuid.New().String()
	events := make(chan types.Event, 32)

	h.mu.Lock()
	h.clients[clientID] = events
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}

	defer func() {
		h.mu.Lock()
		delete(h.clients, clientID)
		h.mu.Unlock()
		if h.metrics != nil {
			h.metrics.WSConnections.Dec()
		}
	}()

	// Reader goroutine: we ignore client payloads but need ReadMessage to
	// observe the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(types.Event{Type: "connected", Data: map[string]interface{}{"client_id": clientID}}); err != nil {
		return
	}

	for {
		select {
		case event := <-events:
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("websocket write failed",
					zap.String("client_id", clientID),
					zap.Error(err),
				)
				return
			}
		case <-done:
			return
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

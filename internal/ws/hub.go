// Package ws pushes terminal payment statuses to browsers that keep a socket
// open instead of polling. The poll endpoint remains the source of truth;
// a dropped socket loses nothing.
package ws

import (
	"net/http"
	"sync"

	"lipia-service/internal/domain/payment"
	"lipia-service/internal/pkg/identity"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type statusEvent struct {
	CorrelationID string                `json:"correlation_id"`
	Status        payment.SessionStatus `json:"status"`
}

type Hub struct {
	verifier *identity.Verifier
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	watches map[string]map[*websocket.Conn]struct{}
}

func NewHub(verifier *identity.Verifier, logger *zap.Logger) *Hub {
	return &Hub{
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		watches: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// HandleConnection upgrades the request and registers it as a watcher of one
// correlation id. The socket receives a single status event when the session
// reaches a terminal state, then closes.
func (h *Hub) HandleConnection(c *gin.Context) {
	token := c.Query("token")
	if _, err := h.verifier.Verify(token); err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	correlationID := c.Query("correlation_id")
	if correlationID == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.register(correlationID, conn)

	// Read loop exists only to detect the peer going away.
	go func() {
		defer h.unregister(correlationID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish sends the terminal status to every watcher of the correlation id
// and closes their sockets.
func (h *Hub) Publish(correlationID string, status payment.SessionStatus) {
	h.mu.Lock()
	conns := h.watches[correlationID]
	delete(h.watches, correlationID)
	h.mu.Unlock()

	if len(conns) == 0 {
		return
	}

	event := statusEvent{CorrelationID: correlationID, Status: status}
	for conn := range conns {
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Warn("failed to push status event", zap.Error(err))
		}
		conn.Close()
	}
}

func (h *Hub) register(correlationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watches[correlationID] == nil {
		h.watches[correlationID] = make(map[*websocket.Conn]struct{})
	}
	h.watches[correlationID][conn] = struct{}{}
}

func (h *Hub) unregister(correlationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.watches[correlationID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.watches, correlationID)
		}
	}
	conn.Close()
}

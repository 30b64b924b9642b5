package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mikeyg42/sentinel/internal/alert"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// AlertHub fans finalized alert records out to websocket subscribers. It
// implements alert.Publisher, so the dispatcher treats it like any other
// sink: disconnected (no clients) means skipped, a failed write drops
// only the broken client.
type AlertHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	logger  *zap.Logger
}

func NewAlertHub(logger *zap.Logger) *AlertHub {
	return &AlertHub{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger.Named("alerthub"),
	}
}

// ServeHTTP upgrades the connection and holds it until the client goes
// away. Subscribers only receive; inbound messages are discarded.
func (h *AlertHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("alert subscriber connected", zap.Int("total", total))

	// Read pump: drains control frames and detects disconnect.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *AlertHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("alert subscriber disconnected", zap.Int("total", total))
}

// Publish implements alert.Publisher.
func (h *AlertHub) Publish(record alert.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn("dropping broken subscriber", zap.Error(err))
			delete(h.clients, conn)
			conn.Close()
		}
	}
	return nil
}

// IsConnected implements alert.Publisher; the hub counts as connected
// only while someone is listening.
func (h *AlertHub) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) > 0
}

// ClientCount reports the current number of subscribers.
func (h *AlertHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *AlertHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

// Package websocket streams a visitor's auth state to the browser so pages
// can react to sign-in, sign-out and profile changes without polling.
package websocket

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ekaai-backend/internal/authctx"
	"ekaai-backend/internal/logger"
	"ekaai-backend/internal/middleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Message is what each frame carries.
type Message struct {
	Type    string        `json:"type"`
	Payload authctx.State `json:"payload"`
}

type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

func NewHub(frontendURL string) *Hub {
	origin := strings.TrimRight(frontendURL, "/")
	return &Hub{
		connections: make(map[string][]*websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return o == "" || o == origin
			},
		},
		log: logger.Named("websocket"),
	}
}

// HandleWebSocket sends the current auth state, then every change, until the
// browser goes away.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuth(r.Context())
	visitorID := middleware.GetVisitorID(r.Context())
	if ac == nil || visitorID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.registerConnection(visitorID, conn)
	states, stop := ac.Watch()

	// Reader: only needed to notice the close and answer pongs.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer h.unregisterConnection(visitorID, conn)
		defer stop()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-closed:
				return
			case st, ok := <-states:
				if !ok {
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "session expired"),
						time.Now().Add(writeWait))
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(Message{Type: "auth_state", Payload: st}); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()
}

// Connections is the number of open sockets for a visitor.
func (h *Hub) Connections(visitorID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[visitorID])
}

// CloseAll disconnects every socket, for shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conns := range h.connections {
		for _, c := range conns {
			c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			c.Close()
		}
		delete(h.connections, id)
	}
}

func (h *Hub) registerConnection(visitorID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[visitorID] = append(h.connections[visitorID], conn)
	h.log.Debug("websocket connected", zap.String("visitor_id", visitorID), zap.Int("total", len(h.connections[visitorID])))
}

func (h *Hub) unregisterConnection(visitorID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[visitorID]
	for i, c := range conns {
		if c == conn {
			h.connections[visitorID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.connections[visitorID]) == 0 {
		delete(h.connections, visitorID)
	}

	h.log.Debug("websocket disconnected", zap.String("visitor_id", visitorID))
}

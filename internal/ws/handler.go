package ws

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/quizroom/quizroom-api/internal/middleware"
	"go.uber.org/zap"
)

// DefaultRoom is used when the client does not name a room
const DefaultRoom = "group"

// Handler upgrades gate-authenticated requests to chat connections
type Handler struct {
	hub      *Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler. allowedOrigins is the
// comma-separated origin list the frontend is served from; empty allows
// same-origin only.
func NewHandler(hub *Hub, allowedOrigins string, logger *zap.Logger) *Handler {
	origins := make(map[string]bool)
	for _, origin := range strings.Split(allowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins[origin] = true
		}
	}

	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return origins[origin]
			},
		},
	}
}

// ServeChat handles GET /ws/chat. The auth gate runs before this handler,
// so the claims on the context are already verified.
func (h *Handler) ServeChat(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r)
	if claims == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	room := strings.TrimSpace(r.URL.Query().Get("room"))
	if room == "" {
		room = DefaultRoom
	}

	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		username = claims.Email
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.Warn("chat_upgrade_failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:      h.hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		room:     room,
		username: username,
		logger:   h.logger,
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

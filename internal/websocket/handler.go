// internal/websocket/handler.go
package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// VerifyFunc authenticates a raw bearer token and resolves the identity and
// session it belongs to.
type VerifyFunc func(ctx context.Context, token string) (identityID int64, sessionID string, err error)

type Handler struct {
	hub      *Hub
	verify   VerifyFunc
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, verify VerifyFunc, logger *zap.Logger) *Handler {
	return &Handler{
		hub:    hub,
		verify: verify,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades an authenticated request to a websocket connection.
// Browsers cannot set headers on websocket dials, so the token rides in a
// query parameter.
func (h *Handler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	identityID, sessionID, err := h.verify(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, identityID, sessionID)
	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

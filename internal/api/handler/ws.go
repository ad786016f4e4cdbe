package handler

import (
	"complaints/backend/internal/eventhub"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict origins once the dashboard domains are configurable.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades an authenticated request to the live event feed.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	user := currentUser(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Printf("WARN: WebSocket upgrade failed for user %s: %v", user.ID, err)
		return
	}

	audience := eventhub.Audience{UserID: user.ID, Role: user.Role}
	if user.EntityID != nil {
		audience.EntityID = *user.EntityID
	}
	client := eventhub.NewWebSocketClient(h.Hub, conn, audience)

	if !h.Hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	client.Run()
}

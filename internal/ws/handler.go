package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mehrbod2002/masjidmap/internal/api/respond"
	"github.com/mehrbod2002/masjidmap/internal/apperrors"
	"github.com/mehrbod2002/masjidmap/internal/middleware"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
)

type WebSocketHandler struct {
	hub       *Hub
	accounts  service.AccountService
	jwtSecret string
	upgrader  websocket.Upgrader
}

func NewWebSocketHandler(hub *Hub, accounts service.AccountService, jwtSecret string, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		accounts:  accounts,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// HandleConnection upgrades an authenticated connection to the moderation feed.
// Browsers cannot set headers on websocket handshakes, so the token travels in ?token=.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	accountID, err := middleware.ParseJWT(c.Query("token"), h.jwtSecret)
	if err != nil {
		respond.Error(c, err)
		return
	}
	caller, err := h.accounts.ResolveCaller(c.Request.Context(), accountID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client, ok := h.hub.RegisterClient(conn, *caller)
	if !ok {
		conn.Close()
		return
	}

	go h.readPump(client)
	go h.writePump(client)
}

func (h *WebSocketHandler) readPump(client *models.Client) {
	defer func() {
		h.hub.UnregisterClient(client)
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.hub.logger.WithError(err).WithField("client_id", client.ID).Warn("websocket closed unexpectedly")
			}
			break
		}

		var socketMsg models.SocketMessage
		if err := json.Unmarshal(message, &socketMsg); err != nil {
			h.hub.Reply(client, models.ErrorResponse{Error: "Invalid message format"})
			continue
		}

		switch socketMsg.Action {
		case "subscribe":
			if !client.Subscribe(socketMsg.Topic) {
				h.hub.Reply(client, models.ErrorResponse{Error: string(apperrors.KindPermission) + ": cannot subscribe to " + socketMsg.Topic})
				continue
			}
			h.hub.Reply(client, models.SubscriptionResponse{
				Status:  "success",
				Message: "Subscribed to " + socketMsg.Topic,
				Topics:  client.SubscribedTopics(),
			})

		case "unsubscribe":
			client.Unsubscribe(socketMsg.Topic)
			h.hub.Reply(client, models.SubscriptionResponse{
				Status:  "success",
				Message: "Unsubscribed from " + socketMsg.Topic,
				Topics:  client.SubscribedTopics(),
			})

		default:
			h.hub.Reply(client, models.ErrorResponse{Error: "Unknown action"})
		}
	}
}

func (h *WebSocketHandler) writePump(client *models.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

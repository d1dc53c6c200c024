package ws

import (
	"context"
	"sync"

	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/sirupsen/logrus"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub fans change request events out to connected moderation clients.
type Hub struct {
	clients map[string]*models.Client

	register chan *models.Client

	unregister chan *models.Client

	broadcast chan *models.RequestEvent

	mu sync.RWMutex

	done chan struct{}

	logger logrus.FieldLogger
}

func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[string]*models.Client),
		register:   make(chan *models.Client),
		unregister: make(chan *models.Client),
		broadcast:  make(chan *models.RequestEvent, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns client membership until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event *models.RequestEvent) {
	topics := event.Topics()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		for _, topic := range topics {
			if !client.IsSubscribed(topic) {
				continue
			}
			select {
			case client.Send <- event:
			default:
				h.logger.WithField("client_id", client.ID).Warn("client buffer full, skipping event")
			}
			break
		}
	}
}

// RegisterClient adds a client; it returns false once the hub has stopped.
func (h *Hub) RegisterClient(conn *websocket.Conn, caller models.Caller) (*models.Client, bool) {
	client := models.NewClient(uuid.New().String(), caller, conn)
	select {
	case h.register <- client:
		return client, true
	case <-h.done:
		return nil, false
	}
}

func (h *Hub) UnregisterClient(client *models.Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Reply queues a direct message to one client if it is still registered.
func (h *Hub) Reply(client *models.Client, msg interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	select {
	case client.Send <- msg:
	default:
		h.logger.WithField("client_id", client.ID).Warn("client buffer full, skipping reply")
	}
}

// Publish queues an event for delivery without blocking the caller.
func (h *Hub) Publish(event *models.RequestEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.WithField("type", event.Type).Warn("event queue full, dropping event")
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

package models

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	EventRequestSubmitted = "request.submitted"
	EventRequestResolved  = "request.resolved"
	EventRequestWithdrawn = "request.withdrawn"
)

// TopicRequests carries every request event and is reserved for the main admin.
const TopicRequests = "requests"

// AccountTopic carries events about the requests of a single account.
func AccountTopic(id primitive.ObjectID) string {
	return "account:" + id.Hex()
}

type RequestEvent struct {
	Type    string         `json:"type"`
	Request *ChangeRequest `json:"request"`
	At      time.Time      `json:"at"`
}

// Topics lists the topics an event is delivered on.
func (e *RequestEvent) Topics() []string {
	return []string{TopicRequests, AccountTopic(e.Request.RequestedBy)}
}

type Client struct {
	ID        string
	AccountID primitive.ObjectID
	Role      Role
	Conn      *websocket.Conn
	Send      chan interface{}
	Topics    map[string]bool
	TopicsMu  sync.RWMutex
}

func NewClient(id string, caller Caller, conn *websocket.Conn) *Client {
	c := &Client{
		ID:        id,
		AccountID: caller.AccountID,
		Role:      caller.Role,
		Conn:      conn,
		Send:      make(chan interface{}, 256),
		Topics:    make(map[string]bool),
	}
	c.Topics[AccountTopic(caller.AccountID)] = true
	if caller.Role == RoleMainAdmin {
		c.Topics[TopicRequests] = true
	}
	return c
}

// CanSubscribe reports whether the client is allowed to follow topic.
func (c *Client) CanSubscribe(topic string) bool {
	if topic == TopicRequests {
		return c.Role == RoleMainAdmin
	}
	return topic == AccountTopic(c.AccountID)
}

func (c *Client) Subscribe(topic string) bool {
	if !c.CanSubscribe(topic) {
		return false
	}
	c.TopicsMu.Lock()
	c.Topics[topic] = true
	c.TopicsMu.Unlock()
	return true
}

func (c *Client) Unsubscribe(topic string) {
	c.TopicsMu.Lock()
	delete(c.Topics, topic)
	c.TopicsMu.Unlock()
}

func (c *Client) IsSubscribed(topic string) bool {
	c.TopicsMu.RLock()
	defer c.TopicsMu.RUnlock()
	return c.Topics[topic]
}

func (c *Client) SubscribedTopics() []string {
	c.TopicsMu.RLock()
	defer c.TopicsMu.RUnlock()
	topics := make([]string, 0, len(c.Topics))
	for t := range c.Topics {
		topics = append(topics, t)
	}
	return topics
}

type SocketMessage struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

type SubscriptionResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Topics  []string `json:"topics,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

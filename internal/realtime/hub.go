// Package realtime relays chat events to websocket clients. Clients join
// room topics; process-wide events go to every connected client. Delivery is
// fire-and-forget: a client whose buffer is full misses the event.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event names sent to clients.
const (
	EventStatus          = "status"
	EventChatRoomCreated = "chat_room_created"
	EventNewMessage      = "new_message"
)

// Event is the payload written to websocket clients.
type Event struct {
	Event          string    `json:"event"`
	RoomID         string    `json:"room_id"`
	Message        string    `json:"message"`
	SenderID       string    `json:"sender_id,omitempty"`
	SenderUsername string    `json:"sender_username,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Broadcaster is what the domain services emit through.
type Broadcaster interface {
	// Emit delivers to every connected client.
	Emit(event Event)
	// EmitToRoom delivers to clients that joined the room.
	EmitToRoom(roomID string, event Event)
}

// RoomTopic is the hub topic for a chat room.
func RoomTopic(roomID string) string {
	return "room:" + roomID
}

// Client is one websocket connection.
type Client struct {
	ID       string
	UserID   string
	Username string
	Topics   []string
	Send     chan []byte
}

// NewClient allocates a client with a buffered send queue.
func NewClient(id, userID, username string) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Username: username,
		Topics:   []string{},
		Send:     make(chan []byte, 256),
	}
}

// Hub tracks connected clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> set of clients
	all     map[*Client]struct{}
	log     *logrus.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		log:     log,
	}
}

// Register adds a client and subscribes it to its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		h.addLocked(topic, client)
	}
}

// Unregister drops the client from every topic and closes its send queue.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.removeLocked(topic, client)
	}
	delete(h.all, client)
	close(client.Send)
}

// Subscribe adds a topic to a registered client. Subscribing twice is a no-op.
func (h *Hub) Subscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[topic][client]; ok {
		return
	}
	h.addLocked(topic, client)
	client.Topics = append(client.Topics, topic)
}

// Unsubscribe removes a topic from a registered client.
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(topic, client)
	remaining := client.Topics[:0]
	for _, t := range client.Topics {
		if t != topic {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

func (h *Hub) addLocked(topic string, client *Client) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

func (h *Hub) removeLocked(topic string, client *Client) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

// Emit sends an event to every connected client.
func (h *Hub) Emit(event Event) {
	data, ok := h.encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.all {
		deliver(client, data)
	}
}

// EmitToRoom sends an event to the clients that joined roomID.
func (h *Hub) EmitToRoom(roomID string, event Event) {
	data, ok := h.encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[RoomTopic(roomID)] {
		deliver(client, data)
	}
}

func (h *Hub) encode(event Event) ([]byte, bool) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("realtime: failed to marshal event")
		return nil, false
	}
	return data, true
}

func deliver(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		// buffer full, drop
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients subscribed to topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

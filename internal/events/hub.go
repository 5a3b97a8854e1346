// Package events pushes attachment lifecycle events to WebSocket clients
// subscribed to an owner.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/welldanyogia/webrana-cms-backend/internal/attachment"
	"github.com/welldanyogia/webrana-cms-backend/internal/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeEvent       MessageType = "event"
	MessageTypeError       MessageType = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      MessageType       `json:"type"`
	OwnerType string            `json:"owner_type,omitempty"`
	OwnerID   uint              `json:"owner_id,omitempty"`
	Event     *attachment.Event `json:"event,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Hub maintains the set of active clients and fans events out to the
// clients subscribed to each owner
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Owner subscriptions: owner key -> set of clients
	subscriptions map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest
	broadcast   chan *broadcastMessage

	// done is closed once Run has returned
	done chan struct{}

	mu     sync.RWMutex
	logger *slog.Logger
}

type subscriptionRequest struct {
	client *Client
	owner  string
}

type broadcastMessage struct {
	owner   string
	message []byte
}

var _ attachment.Notifier = (*Hub)(nil)

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan *subscriptionRequest),
		unsubscribe:   make(chan *subscriptionRequest),
		broadcast:     make(chan *broadcastMessage, 256),
		done:          make(chan struct{}),
		logger:        logger,
	}
}

// Run starts the hub's main loop and closes every client when ctx ends
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[*Client]bool)
			h.subscriptions = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.debug("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for owner, subscribers := range h.subscriptions {
					delete(subscribers, client)
					if len(subscribers) == 0 {
						delete(h.subscriptions, owner)
					}
				}
			}
			h.mu.Unlock()
			h.debug("client unregistered")

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.client]; ok {
				if h.subscriptions[req.owner] == nil {
					h.subscriptions[req.owner] = make(map[*Client]bool)
				}
				h.subscriptions[req.owner][req.client] = true
			}
			h.mu.Unlock()
			h.debug("client subscribed", slog.String("owner", req.owner))

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.owner]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.owner)
				}
			}
			h.mu.Unlock()
			h.debug("client unsubscribed", slog.String("owner", req.owner))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.subscriptions[msg.owner] {
				select {
				case client.send <- msg.message:
				default:
					// Client buffer full, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) debug(msg string, attrs ...any) {
	if h.logger != nil {
		h.logger.Debug(msg, attrs...)
	}
}

// Register adds a client to the hub. After shutdown the client's send
// channel is closed straight away so its write pump ends.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client from the hub; it is a no-op after shutdown
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe subscribes a client to an owner's events
func (h *Hub) Subscribe(client *Client, owner models.Owner) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, owner: owner.Key()}:
	case <-h.done:
	}
}

// Unsubscribe unsubscribes a client from an owner's events
func (h *Hub) Unsubscribe(client *Client, owner models.Owner) {
	select {
	case h.unsubscribe <- &subscriptionRequest{client: client, owner: owner.Key()}:
	case <-h.done:
	}
}

// SubscriberCount returns the number of clients subscribed to owner
func (h *Hub) SubscriberCount(owner models.Owner) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[owner.Key()])
}

// Publish queues event for the owner's subscribers. It drops the event
// rather than block when the queue is full.
func (h *Hub) Publish(event attachment.Event) {
	data, err := json.Marshal(WSMessage{
		Type:      MessageTypeEvent,
		OwnerType: string(event.Owner.Type),
		OwnerID:   event.Owner.ID,
		Event:     &event,
	})
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal event", slog.Any("error", err))
		}
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{owner: event.Owner.Key(), message: data}:
	default:
		if h.logger != nil {
			h.logger.Warn("event queue full, dropping event",
				slog.String("type", string(event.Type)),
				slog.String("owner", event.Owner.Key()))
		}
	}
}

// Package ws pushes schedule change events to connected calendar views
// over WebSocket so every open view stays current without polling.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"trainerdesk/internal/application/scheduler"
)

// Envelope is the wire format for every pushed message.
type Envelope struct {
	Type      string                `json:"type"`
	Timestamp time.Time             `json:"timestamp"`
	Event     scheduler.ChangeEvent `json:"event"`
}

// Hub maintains the set of active WebSocket clients and broadcasts
// schedule change events to all of them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a new hub. Call Run in a goroutine before use.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run is the hub's event loop. It owns the clients map; register,
// unregister and broadcast all funnel through here.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("ws_event", "event", "client_connected", "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("ws_event", "event", "client_disconnected", "total", total)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client send buffer full; drop the connection.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastChange pushes a schedule change event to every connected
// client. Safe to call from any goroutine; drops the event if the
// broadcast buffer is full rather than blocking the scheduler.
func (h *Hub) BroadcastChange(ev scheduler.ChangeEvent) {
	data, err := json.Marshal(Envelope{
		Type:      "schedule." + ev.Kind,
		Timestamp: time.Now().UTC(),
		Event:     ev,
	})
	if err != nil {
		slog.Error("ws_marshal_failed", "error", err, "kind", ev.Kind)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		slog.Warn("ws_broadcast_dropped", "kind", ev.Kind)
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client represents one connected calendar view.
type Client struct {
	hub  *Hub
	send chan []byte
}

// NewClient creates a client bound to the given hub.
func NewClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		send: make(chan []byte, 256),
	}
}

// Send returns the client's outbound message channel.
func (c *Client) Send() chan []byte {
	return c.send
}

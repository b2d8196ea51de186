package stream

import (
	"sync"

	"github.com/google/uuid"

	"taglink/logging"
)

// Client represents one connected streaming client. Events are consumed by
// the client's own writer goroutine; the hub never blocks on a slow client.
type Client struct {
	ID     string
	Events chan Event
}

// NewClient creates a client with a buffered event channel.
func NewClient() *Client {
	return &Client{
		ID:     uuid.NewString(),
		Events: make(chan Event, 64),
	}
}

// Hub tracks connected clients and broadcasts events to all of them.
// Registration and broadcast are serialized through one goroutine, matching
// the single-writer model of the poll loop.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	mu         sync.RWMutex
	done       chan struct{}
}

// NewHub creates a hub and starts its dispatch goroutine.
func NewHub() *Hub {
	hub := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Events)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.Events <- event:
				default:
					// A full buffer means the client writer has stalled;
					// dropping here keeps the other clients on cadence.
					logging.DebugLog("sse", "client %s buffer full, dropping %s event", client.ID, event.Type)
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.Events)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds a client to the connected set. Events broadcast after this
// call will be queued for the client.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client; subsequent broadcasts silently skip it.
// Safe to call more than once for the same client.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast sends an event to every currently registered client.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		logging.DebugLog("sse", "broadcast channel full, dropping %s event", event.Type)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop disconnects all clients and stops the dispatch goroutine.
func (h *Hub) Stop() {
	close(h.done)
}

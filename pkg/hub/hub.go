package hub

import (
	"context"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/teslashibe/go-avatar/internal/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Name for logging
	name string

	// Registered clients, owned by the Run goroutine
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Client count for readers outside Run
	mu    sync.RWMutex
	count int

	running bool
}

// New creates a new Hub
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop until ctx is done.
// This should be called in a goroutine
func (h *Hub) Run(ctx context.Context) {
	h.setRunning(true)
	defer func() {
		for client := range h.clients {
			h.drop(client)
		}
		h.setRunning(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setCount()
			log.Debug("🔌 client connected", "hub", h.name, "total", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
			log.Debug("🔌 client disconnected", "hub", h.name, "remaining", len(h.clients))

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
					// Message queued successfully
				default:
					// Client's buffer is full - they're too slow
					h.drop(client)
					log.Warn("⚠️ dropped slow client", "hub", h.name)
				}
			}
		}
	}
}

// drop removes a client and closes its queue. Only called from Run.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

func (h *Hub) setRunning(running bool) {
	h.mu.Lock()
	h.running = running
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		// Broadcast channel full - drop message
		log.Debug("⚠️ broadcast channel full, dropping message", "hub", h.name)
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastBinary broadcasts binary data (rendered frames)
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Done is closed once Run has returned and every client queue is closed
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

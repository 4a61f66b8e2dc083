// Package websocket provides WebSocket connection management and message broadcasting.
package websocket

import (
	"log"
	"sync"
)

// envelope is a message queued for delivery. PropertyID zero reaches every
// client; otherwise only clients watching that property receive it.
type envelope struct {
	propertyID int64
	data       []byte
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages to clients
	broadcast chan envelope

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once

	// Mutex for thread-safe client access
	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop until Stop is called.
// This should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", count)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if msg.propertyID != 0 && !client.Watches(msg.propertyID) {
					continue
				}
				if !client.Deliver(msg.data) {
					// Client send buffer full, close connection
					client.close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message []byte) {
	h.enqueue(envelope{data: message})
}

// Publish sends a message about one property to the clients watching it.
func (h *Hub) Publish(propertyID int64, message []byte) {
	h.enqueue(envelope{propertyID: propertyID, data: message})
}

func (h *Hub) enqueue(msg envelope) {
	select {
	case h.broadcast <- msg:
	default:
		log.Println("Broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client represents a WebSocket client connection. A client without
// subscriptions watches every property.
type Client struct {
	hub  *Hub
	send chan []byte

	mu         sync.RWMutex
	properties map[int64]bool
	closed     bool
}

// NewClient creates a new WebSocket client.
func NewClient(hub *Hub) *Client {
	return &Client{
		hub:        hub,
		send:       make(chan []byte, 256),
		properties: make(map[int64]bool),
	}
}

// Send returns the send channel for the client.
func (c *Client) Send() chan []byte {
	return c.send
}

// Deliver queues a message without blocking. It reports false when the
// client is closed or its buffer is full.
func (c *Client) Deliver(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Subscribe restricts property events to the given properties, in addition
// to earlier subscriptions.
func (c *Client) Subscribe(propertyIDs ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range propertyIDs {
		c.properties[id] = true
	}
}

// Unsubscribe removes properties. Removing the last one makes the client
// watch every property again.
func (c *Client) Unsubscribe(propertyIDs ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range propertyIDs {
		delete(c.properties, id)
	}
}

// Subscriptions returns the watched property ids, empty meaning all.
func (c *Client) Subscriptions() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int64, 0, len(c.properties))
	for id := range c.properties {
		ids = append(ids, id)
	}
	return ids
}

// Watches reports whether events about a property reach the client.
func (c *Client) Watches(propertyID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.properties) == 0 || c.properties[propertyID]
}

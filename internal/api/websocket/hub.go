package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub tracks open UI connections per browser session.
type Hub struct {
	// Registered clients, keyed by session id
	sessions map[string]map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	quit     chan struct{}
	stopOnce sync.Once

	// Mutex for thread-safe operations
	mu sync.RWMutex

	logger *zap.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		sessions:   make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

// Run starts the hub's main event loop. It returns after Stop.
func (h *Hub) Run() {
	h.logger.Info("WebSocket Hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.sessions[client.sessionID] == nil {
				h.sessions[client.sessionID] = make(map[*Client]bool)
			}
			h.sessions[client.sessionID][client] = true
			total := h.countLocked()
			h.mu.Unlock()
			h.logger.Info("WebSocket client registered",
				zap.String("remote_addr", client.remoteAddr()),
				zap.String("session", client.sessionID),
				zap.Int("total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if h.removeLocked(client) {
				h.logger.Info("WebSocket client unregistered",
					zap.String("remote_addr", client.remoteAddr()),
					zap.String("session", client.sessionID),
					zap.Int("total_clients", h.countLocked()))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.Error("Failed to marshal broadcast message",
					zap.Error(err))
				continue
			}

			h.mu.RLock()
			for _, clients := range h.sessions {
				for client := range clients {
					h.deliver(client, data)
				}
			}
			h.mu.RUnlock()

		case <-h.quit:
			h.logger.Info("WebSocket Hub stopped")
			return
		}
	}
}

// Stop ends Run and closes every open connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)

		h.mu.RLock()
		defer h.mu.RUnlock()
		for _, clients := range h.sessions {
			for client := range clients {
				client.conn.Close()
			}
		}
	})
}

func (h *Hub) attach(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) detach(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
		h.mu.Lock()
		if !h.removeLocked(c) {
			c.closeSend()
		}
		h.mu.Unlock()
	}
}

// removeLocked drops c and closes its send channel. It reports whether c was
// registered.
func (h *Hub) removeLocked(c *Client) bool {
	clients, ok := h.sessions[c.sessionID]
	if !ok || !clients[c] {
		return false
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.sessions, c.sessionID)
	}
	c.closeSend()
	return true
}

func (h *Hub) countLocked() int {
	n := 0
	for _, clients := range h.sessions {
		n += len(clients)
	}
	return n
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("Client send buffer full, message dropped",
			zap.String("remote_addr", c.remoteAddr()),
			zap.String("session", c.sessionID))
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
		// Message queued for broadcast
	default:
		h.logger.Warn("Hub broadcast channel full, message dropped",
			zap.String("message_type", string(msg.Type)))
	}
}

// SendToSession delivers msg to every open tab of one session and returns
// how many connections it was queued for.
func (h *Hub) SendToSession(sessionID string, msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal session message", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.sessions[sessionID]
	for client := range clients {
		h.deliver(client, data)
	}
	return len(clients)
}

// EndSession tells every tab of the session that it has been logged out.
func (h *Hub) EndSession(sessionID, reason, redirect string) int {
	n := h.SendToSession(sessionID, NewSessionEndedMessage(reason, redirect))
	if n > 0 {
		h.logger.Info("Session ended on open connections",
			zap.String("session", sessionID),
			zap.Int("connections", n))
	}
	return n
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

// SessionClientCount returns the number of connections for one session.
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

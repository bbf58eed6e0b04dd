package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/KevinKickass/FleetView/internal/ui"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Send channel buffer size
	sendBufferSize = 256
)

// LoginRedirect is where pages go after a session_ended message.
const LoginRedirect = "/login"

// A nil CheckOrigin only accepts same-host origins.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client represents one open dashboard tab.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	sendOnce   sync.Once
	logger     *zap.Logger
	sessionID  string
	dispatcher *ui.Dispatcher
}

func (c *Client) closeSend() {
	c.sendOnce.Do(func() { close(c.send) })
}

func (c *Client) remoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// readPump reads browser events and answers with state updates. It is the
// only goroutine touching the dispatcher.
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.hub.detach(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	updates, err := c.dispatcher.Start(ctx)
	if err != nil {
		c.fail(err)
		return
	}
	c.queueUpdates(updates)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error",
					zap.Error(err),
					zap.String("remote_addr", c.remoteAddr()))
			}
			return
		}

		var ev ui.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.queue(NewMessage(MessageTypeError, ui.ErrorView{Message: "malformed event"}))
			continue
		}

		updates, err := c.dispatcher.Handle(ctx, ev)
		if err != nil {
			c.fail(err)
			return
		}
		c.queueUpdates(updates)
	}
}

func (c *Client) fail(err error) {
	if errors.Is(err, ui.ErrSessionEnded) {
		c.logger.Info("Session no longer authenticated",
			zap.String("session", c.sessionID))
		c.queue(NewSessionEndedMessage("expired", LoginRedirect))
		return
	}
	c.logger.Error("Dispatcher failed", zap.Error(err), zap.String("session", c.sessionID))
	c.queue(NewMessage(MessageTypeError, ui.ErrorView{Message: err.Error()}))
}

func (c *Client) queueUpdates(updates []ui.Update) {
	for _, u := range updates {
		c.queue(FromUpdate(u))
	}
}

func (c *Client) queue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err), zap.String("message_type", string(msg.Type)))
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("Client send buffer full, message dropped",
			zap.String("remote_addr", c.remoteAddr()),
			zap.String("message_type", string(msg.Type)))
	}
}

// writePump handles writing messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Coalesce queued messages into current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and attaches a client for sessionID that
// drives dispatcher.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, sessionID string, dispatcher *ui.Dispatcher) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade error",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		logger:     hub.logger,
		sessionID:  sessionID,
		dispatcher: dispatcher,
	}

	if !hub.attach(client) {
		conn.Close()
		return
	}

	// Start read and write pumps in separate goroutines
	go client.writePump()
	go client.readPump()
}

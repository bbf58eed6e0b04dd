package websocket

import (
	"time"

	"github.com/KevinKickass/FleetView/internal/ui"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// UI state updates
	MessageTypeNav   MessageType = "nav"
	MessageTypeViz   MessageType = "viz"
	MessageTypeShell MessageType = "shell"
	MessageTypeError MessageType = "error"

	// Session messages
	MessageTypeSessionEnded MessageType = "session_ended"

	// System messages
	MessageTypeSystemStatus MessageType = "system_status"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data,omitempty"`
}

// SessionEndedData tells the page where to go next.
type SessionEndedData struct {
	Reason   string `json:"reason"`
	Redirect string `json:"redirect"`
}

type SystemStatusData struct {
	Status string `json:"status"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// FromUpdate wraps a dispatcher update.
func FromUpdate(u ui.Update) Message {
	return NewMessage(MessageType(u.Kind), u.Data)
}

func NewSessionEndedMessage(reason, redirect string) Message {
	return NewMessage(MessageTypeSessionEnded, SessionEndedData{Reason: reason, Redirect: redirect})
}

func NewSystemStatusMessage(status string) Message {
	return NewMessage(MessageTypeSystemStatus, SystemStatusData{Status: status})
}

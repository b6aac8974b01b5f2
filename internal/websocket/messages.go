package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/internal/notify"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// Server to client
	MessageTypePairingState          MessageType = "pairing_state"
	MessageTypeNotification          MessageType = "notification"
	MessageTypeNotificationDismissed MessageType = "notification_dismissed"
	MessageTypePong                  MessageType = "pong"
	MessageTypeError                 MessageType = "error"

	// Client to server
	MessageTypePing                MessageType = "ping"
	MessageTypePairingCancel       MessageType = "pairing_cancel"
	MessageTypeNotificationDismiss MessageType = "notification_dismiss"
)

// Error codes sent in ErrorMessage
const (
	ErrorCodeInvalidMessage       = "invalid_message"
	ErrorCodeNoPairingSession     = "no_pairing_session"
	ErrorCodeNotificationNotFound = "notification_not_found"
	ErrorCodeInternal             = "internal_error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// PairingStateMessage carries the latest snapshot of the tenant's pairing session
type PairingStateMessage struct {
	BaseMessage
	Session entities.PairingSession `json:"session"`
}

// NotificationMessage carries a newly posted toast
type NotificationMessage struct {
	BaseMessage
	Notification notify.Notification `json:"notification"`
}

// NotificationDismissedMessage tells clients to hide a toast
type NotificationDismissedMessage struct {
	BaseMessage
	NotificationID string `json:"notification_id"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PairingCancelMessage asks the server to tear down the tenant's pairing session
type PairingCancelMessage struct {
	BaseMessage
}

// NotificationDismissMessage asks the server to dismiss a toast
type NotificationDismissMessage struct {
	BaseMessage
	NotificationID string `json:"notification_id"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming client message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case MessageTypePairingCancel:
		var msg PairingCancelMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid pairing cancel message: %w", err)
		}
		return &msg, nil

	case MessageTypeNotificationDismiss:
		var msg NotificationDismissMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid notification dismiss message: %w", err)
		}
		if msg.NotificationID == "" {
			return nil, fmt.Errorf("notification_id is required")
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}

func CreatePairingStateMessage(session entities.PairingSession) *PairingStateMessage {
	return &PairingStateMessage{
		BaseMessage: newBase(MessageTypePairingState),
		Session:     session,
	}
}

func CreateNotificationMessage(n notify.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage:  newBase(MessageTypeNotification),
		Notification: n,
	}
}

func CreateNotificationDismissedMessage(id string) *NotificationDismissedMessage {
	return &NotificationDismissedMessage{
		BaseMessage:    newBase(MessageTypeNotificationDismissed),
		NotificationID: id,
	}
}

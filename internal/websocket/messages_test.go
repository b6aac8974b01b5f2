package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/internal/notify"
)

func TestMessageValidator_ValidateMessage(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name     string
		message  string
		wantErr  bool
		wantType interface{}
	}{
		{
			name:     "ping",
			message:  `{"type": "ping", "data": "hello"}`,
			wantType: &PingMessage{},
		},
		{
			name:     "pairing cancel",
			message:  `{"type": "pairing_cancel"}`,
			wantType: &PairingCancelMessage{},
		},
		{
			name:     "notification dismiss",
			message:  `{"type": "notification_dismiss", "notification_id": "n-1"}`,
			wantType: &NotificationDismissMessage{},
		},
		{
			name:    "notification dismiss without id",
			message: `{"type": "notification_dismiss"}`,
			wantErr: true,
		},
		{
			name:    "missing type",
			message: `{"data": "x"}`,
			wantErr: true,
		},
		{
			name:    "server only type",
			message: `{"type": "pairing_state"}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			message: `{"type":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			switch tt.wantType.(type) {
			case *PingMessage:
				if _, ok := result.(*PingMessage); !ok {
					t.Errorf("Expected *PingMessage, got %T", result)
				}
			case *PairingCancelMessage:
				if _, ok := result.(*PairingCancelMessage); !ok {
					t.Errorf("Expected *PairingCancelMessage, got %T", result)
				}
			case *NotificationDismissMessage:
				msg, ok := result.(*NotificationDismissMessage)
				if !ok {
					t.Fatalf("Expected *NotificationDismissMessage, got %T", result)
				}
				if msg.NotificationID != "n-1" {
					t.Errorf("Expected notification id n-1, got %s", msg.NotificationID)
				}
			}
		})
	}
}

func TestCreateErrorMessage(t *testing.T) {
	errorMsg := CreateErrorMessage(ErrorCodeNoPairingSession, "no pairing session", "tenant-1")

	if errorMsg.Type != MessageTypeError {
		t.Errorf("Expected type %s, got %s", MessageTypeError, errorMsg.Type)
	}
	if errorMsg.Code != ErrorCodeNoPairingSession {
		t.Errorf("Expected code %s, got %s", ErrorCodeNoPairingSession, errorMsg.Code)
	}
	if errorMsg.Details != "tenant-1" {
		t.Errorf("Expected details tenant-1, got %s", errorMsg.Details)
	}

	timestamp, err := time.Parse(time.RFC3339, errorMsg.Timestamp)
	if err != nil {
		t.Errorf("Invalid timestamp format: %v", err)
	}
	if time.Since(timestamp) > 2*time.Second {
		t.Errorf("Timestamp is not recent: %s", errorMsg.Timestamp)
	}
}

func TestCreatePongMessage(t *testing.T) {
	pongMsg := CreatePongMessage("test-pong-data")

	if pongMsg.Type != MessageTypePong {
		t.Errorf("Expected type %s, got %s", MessageTypePong, pongMsg.Type)
	}
	if pongMsg.Data != "test-pong-data" {
		t.Errorf("Expected data test-pong-data, got %s", pongMsg.Data)
	}
}

func TestPairingStateMessageJSON(t *testing.T) {
	session := entities.NewPairingSession("tenant-1", "Setor 1", "")
	session.State = entities.PairingStateAwaitingCode
	session.Code = &entities.PairingCode{Kind: domain.CodeKindPairCode, Value: "ABCD-1234"}

	data, err := json.Marshal(CreatePairingStateMessage(session.Snapshot()))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded["type"] != string(MessageTypePairingState) {
		t.Errorf("Expected type pairing_state, got %v", decoded["type"])
	}
	s, ok := decoded["session"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected session object, got %T", decoded["session"])
	}
	if s["state"] != "awaiting_code" {
		t.Errorf("Expected state awaiting_code, got %v", s["state"])
	}
	code := s["code"].(map[string]interface{})
	if code["kind"] != "pair_code" || code["value"] != "ABCD-1234" {
		t.Errorf("Unexpected code %v", code)
	}
}

func TestNotificationMessages(t *testing.T) {
	n := notify.Notification{ID: "n-1", TenantID: "tenant-1", Kind: notify.KindUpgrade, Message: "upgrade"}

	posted := CreateNotificationMessage(n)
	if posted.Type != MessageTypeNotification || posted.Notification.ID != "n-1" {
		t.Errorf("Unexpected notification message %+v", posted)
	}

	dismissed := CreateNotificationDismissedMessage("n-1")
	if dismissed.Type != MessageTypeNotificationDismissed || dismissed.NotificationID != "n-1" {
		t.Errorf("Unexpected dismissed message %+v", dismissed)
	}
}

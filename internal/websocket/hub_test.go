package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/internal/notify"
)

// mockCommands records what clients asked for
type mockCommands struct {
	mu        sync.Mutex
	cancelled []string
	dismissed []string
	current   *entities.PairingSession
	active    []notify.Notification
}

func (m *mockCommands) CancelPairing(tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return domain.ErrNoPairingSession
	}
	m.cancelled = append(m.cancelled, tenantID)
	return nil
}

func (m *mockCommands) CurrentPairing(tenantID string) (entities.PairingSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.TenantID != tenantID {
		return entities.PairingSession{}, false
	}
	return *m.current, true
}

func (m *mockCommands) DismissNotification(tenantID, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.active {
		if n.ID == id && n.TenantID == tenantID {
			m.dismissed = append(m.dismissed, id)
			return true
		}
	}
	return false
}

func (m *mockCommands) ActiveNotifications(tenantID string) []notify.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Notification(nil), m.active...)
}

func (m *mockCommands) cancelledTenants() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelled...)
}

func setupTestHub(t *testing.T, commands Commands) (*Hub, *httptest.Server) {
	t.Helper()
	logger := zap.NewNop()

	hub := NewHub(logger)
	hub.Bind(commands)
	go hub.Run()

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocketWithAuth(hub, c, c.QueryParam("tenant"), "user-1", logger)
	})
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		server.Close()
		hub.Shutdown()
	})
	return hub, server
}

func connect(t *testing.T, hub *Hub, server *httptest.Server, tenantID string) *websocket.Conn {
	t.Helper()
	before := hub.ClientCount(tenantID)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?tenant=" + tenantID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount(tenantID) == before {
		if time.Now().After(deadline) {
			t.Fatal("Client was never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Invalid message %s: %v", data, err)
	}
	return msg
}

func expectNoMessage(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Errorf("Unexpected message %s", data)
	}
}

func TestHub_NewHub(t *testing.T) {
	hub := NewHub(zap.NewNop())

	if hub.clients == nil {
		t.Error("Hub clients map not initialized")
	}
	if hub.register == nil {
		t.Error("Hub register channel not initialized")
	}
	if hub.unregister == nil {
		t.Error("Hub unregister channel not initialized")
	}
}

func TestHub_BroadcastIsTenantScoped(t *testing.T) {
	hub, server := setupTestHub(t, &mockCommands{})

	conn1 := connect(t, hub, server, "tenant-1")
	conn2 := connect(t, hub, server, "tenant-2")

	session := entities.NewPairingSession("tenant-1", "Setor 1", "")
	session.State = entities.PairingStateRequesting
	hub.SessionChanged(session.Snapshot())

	msg := readMessage(t, conn1)
	if msg["type"] != string(MessageTypePairingState) {
		t.Errorf("Expected pairing_state, got %v", msg["type"])
	}
	if s := msg["session"].(map[string]interface{}); s["state"] != "requesting" {
		t.Errorf("Expected requesting, got %v", s["state"])
	}

	expectNoMessage(t, conn2)
}

func TestHub_NotificationsForwarded(t *testing.T) {
	hub, server := setupTestHub(t, &mockCommands{})
	conn := connect(t, hub, server, "tenant-1")

	hub.NotificationPosted(notify.Notification{ID: "n-1", TenantID: "tenant-1", Kind: notify.KindSuccess, Message: "ok"})
	msg := readMessage(t, conn)
	if msg["type"] != string(MessageTypeNotification) {
		t.Errorf("Expected notification, got %v", msg["type"])
	}

	hub.NotificationDismissed("tenant-1", "n-1")
	msg = readMessage(t, conn)
	if msg["type"] != string(MessageTypeNotificationDismissed) || msg["notification_id"] != "n-1" {
		t.Errorf("Unexpected message %v", msg)
	}
}

func TestHub_GreetsNewClient(t *testing.T) {
	session := entities.NewPairingSession("tenant-1", "Setor 1", "")
	session.State = entities.PairingStateAwaitingCode
	commands := &mockCommands{
		current: session,
		active:  []notify.Notification{{ID: "n-1", TenantID: "tenant-1", Kind: notify.KindUpgrade}},
	}
	hub, server := setupTestHub(t, commands)

	conn := connect(t, hub, server, "tenant-1")

	if msg := readMessage(t, conn); msg["type"] != string(MessageTypePairingState) {
		t.Errorf("Expected pairing_state first, got %v", msg["type"])
	}
	if msg := readMessage(t, conn); msg["type"] != string(MessageTypeNotification) {
		t.Errorf("Expected notification second, got %v", msg["type"])
	}
}

func TestHub_ClientCommands(t *testing.T) {
	commands := &mockCommands{
		active: []notify.Notification{{ID: "n-1", TenantID: "tenant-1"}},
	}
	hub, server := setupTestHub(t, commands)
	conn := connect(t, hub, server, "tenant-1")

	// Drain the greeting.
	readMessage(t, conn)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","data":"hi"}`))
	if msg := readMessage(t, conn); msg["type"] != string(MessageTypePong) || msg["data"] != "hi" {
		t.Errorf("Expected pong, got %v", msg)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pairing_cancel"}`))
	if msg := readMessage(t, conn); msg["error_code"] != ErrorCodeNoPairingSession {
		t.Errorf("Expected no_pairing_session error, got %v", msg)
	}

	commands.mu.Lock()
	commands.current = entities.NewPairingSession("tenant-1", "Setor 1", "")
	commands.mu.Unlock()
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pairing_cancel"}`))
	deadline := time.Now().Add(2 * time.Second)
	for len(commands.cancelledTenants()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := commands.cancelledTenants(); len(got) != 1 || got[0] != "tenant-1" {
		t.Errorf("Expected one cancel for tenant-1, got %v", got)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"notification_dismiss","notification_id":"missing"}`))
	if msg := readMessage(t, conn); msg["error_code"] != ErrorCodeNotificationNotFound {
		t.Errorf("Expected notification_not_found error, got %v", msg)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`))
	if msg := readMessage(t, conn); msg["error_code"] != ErrorCodeInvalidMessage {
		t.Errorf("Expected invalid_message error, got %v", msg)
	}
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, server := setupTestHub(t, &mockCommands{})
	conn := connect(t, hub, server, "tenant-1")

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount("tenant-1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Client was never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Broadcasting to a tenant without clients is a no-op.
	hub.SessionChanged(entities.PairingSession{TenantID: "tenant-1"})
}

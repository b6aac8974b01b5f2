package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/internal/notify"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Requests are authenticated with a JWT before the upgrade.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Commands is what dashboard clients may ask of the server.
type Commands interface {
	CancelPairing(tenantID string) error
	CurrentPairing(tenantID string) (entities.PairingSession, bool)
	DismissNotification(tenantID, id string) bool
	ActiveNotifications(tenantID string) []notify.Notification
}

// Hub maintains the dashboard clients of every tenant and fans pairing
// session changes and notifications out to them.
type Hub struct {
	// Registered clients, grouped by tenant.
	clients map[string]map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	stop chan struct{}
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	commands  Commands
	validator *MessageValidator

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		validator:  NewMessageValidator(),
		logger:     logger,
	}
}

// Bind sets the handler for client commands. It must be called before Run.
func (h *Hub) Bind(commands Commands) {
	h.commands = commands
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			tenant, ok := h.clients[client.tenantID]
			if !ok {
				tenant = make(map[*Client]struct{})
				h.clients[client.tenantID] = tenant
			}
			tenant[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("tenantID", client.tenantID),
				zap.String("userID", client.userID))
			h.greet(client)

		case client := <-h.unregister:
			h.remove(client)

		case <-h.stop:
			h.mu.Lock()
			for tenantID, tenant := range h.clients {
				for client := range tenant {
					close(client.send)
				}
				delete(h.clients, tenantID)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Shutdown closes every client connection and stops Run.
func (h *Hub) Shutdown() {
	close(h.stop)
	<-h.done
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tenant, ok := h.clients[client.tenantID]
	if !ok {
		return
	}
	if _, ok := tenant[client]; !ok {
		return
	}
	delete(tenant, client)
	close(client.send)
	if len(tenant) == 0 {
		delete(h.clients, client.tenantID)
	}
	h.logger.Info("Client unregistered",
		zap.String("tenantID", client.tenantID),
		zap.String("userID", client.userID))
}

// greet sends a new client the state it missed.
func (h *Hub) greet(client *Client) {
	if h.commands == nil {
		return
	}
	if session, ok := h.commands.CurrentPairing(client.tenantID); ok {
		client.sendJSON(CreatePairingStateMessage(session))
	}
	for _, n := range h.commands.ActiveNotifications(client.tenantID) {
		client.sendJSON(CreateNotificationMessage(n))
	}
}

// ClientCount returns the number of connected clients of a tenant.
func (h *Hub) ClientCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[tenantID])
}

// SessionChanged pushes a pairing session snapshot to the tenant's clients.
func (h *Hub) SessionChanged(session entities.PairingSession) {
	h.broadcast(session.TenantID, CreatePairingStateMessage(session))
}

// NotificationPosted pushes a new toast to the tenant's clients.
func (h *Hub) NotificationPosted(n notify.Notification) {
	h.broadcast(n.TenantID, CreateNotificationMessage(n))
}

// NotificationDismissed tells the tenant's clients to hide a toast.
func (h *Hub) NotificationDismissed(tenantID, id string) {
	h.broadcast(tenantID, CreateNotificationDismissedMessage(id))
}

func (h *Hub) broadcast(tenantID string, msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[tenantID] {
		client.enqueue(payload)
	}
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	tenantID string
	userID   string

	logger *zap.Logger
}

// HandleWebSocketWithAuth upgrades an authenticated dashboard request
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, tenantID, userID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		tenantID: tenantID,
		userID:   userID,
		logger:   logger.With(zap.String("tenantID", tenantID), zap.String("userID", userID)),
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// enqueue hands a payload to the write pump, dropping it when the client
// cannot keep up. Callers hold the hub read lock, so send is still open.
func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("Client send buffer full, dropping message")
	}
}

func (c *Client) sendJSON(msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	c.enqueue(payload)
}

// reply sends a direct response from the read pump.
func (c *Client) reply(msg interface{}) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.tenantID][c]; !ok {
		return
	}
	c.sendJSON(msg)
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
			continue
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
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

// processMessage handles one client command
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid client message", zap.Error(err))
		c.reply(CreateErrorMessage(ErrorCodeInvalidMessage, "invalid message", err.Error()))
		return
	}

	switch msg := parsed.(type) {
	case *PingMessage:
		c.reply(CreatePongMessage(msg.Data))

	case *PairingCancelMessage:
		if c.hub.commands == nil {
			return
		}
		if err := c.hub.commands.CancelPairing(c.tenantID); err != nil {
			if errors.Is(err, domain.ErrNoPairingSession) {
				c.reply(CreateErrorMessage(ErrorCodeNoPairingSession, "no pairing session", ""))
				return
			}
			c.logger.Error("Failed to cancel pairing", zap.Error(err))
			c.reply(CreateErrorMessage(ErrorCodeInternal, "failed to cancel pairing", ""))
		}

	case *NotificationDismissMessage:
		if c.hub.commands == nil {
			return
		}
		if !c.hub.commands.DismissNotification(c.tenantID, msg.NotificationID) {
			c.reply(CreateErrorMessage(ErrorCodeNotificationNotFound, "notification not found", msg.NotificationID))
		}
	}
}

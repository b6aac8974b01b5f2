// Command pairctl drives a pairing session against a running server and
// prints every state change the dashboard would see.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/internal/auth"
	"github.com/satriahrh/lexlink/internal/logger"
	ws "github.com/satriahrh/lexlink/internal/websocket"
)

type envelope struct {
	Type           ws.MessageType           `json:"type"`
	Session        *entities.PairingSession `json:"session,omitempty"`
	Notification   json.RawMessage          `json:"notification,omitempty"`
	NotificationID string                   `json:"notification_id,omitempty"`
	Code           string                   `json:"error_code,omitempty"`
	Message        string                   `json:"message,omitempty"`
}

func main() {
	_ = godotenv.Load()

	var (
		server    = flag.String("server", "localhost:8080", "Server host and port")
		tenantID  = flag.String("tenant", "tenant-dev", "Tenant to pair for")
		name      = flag.String("name", "Atendimento", "Display name of the new line")
		phoneHint = flag.String("phone", "", "Phone number hint for pair code linking")
		secret    = flag.String("secret", os.Getenv("JWT_SECRET"), "JWT secret shared with the server")
	)
	flag.Parse()

	log, err := logger.NewLogger("debug", "console", "pairctl")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if *secret == "" {
		log.Fatal("JWT_SECRET or -secret is required")
	}

	token, err := auth.NewTokenManager(*secret, time.Hour).GenerateUserToken(*tenantID, "pairctl", auth.RoleAdmin)
	if err != nil {
		log.Fatal("Failed to mint token", zap.Error(err))
	}

	// Connect first so no state change is missed
	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws"}
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+token)

	log.Info("Connecting", zap.String("url", u.String()))
	c, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		log.Fatal("dial", zap.Error(err))
	}
	defer c.Close()

	done := make(chan struct{})
	go readMessages(c, log, time.Now(), done)

	client := resty.New().
		SetBaseURL("http://"+*server).
		SetAuthToken(token).
		SetTimeout(10 * time.Second)

	resp, err := client.R().
		SetBody(map[string]string{"display_name": *name, "phone_hint": *phoneHint}).
		Post("/api/v1/pairing")
	if err != nil {
		log.Fatal("Failed to start pairing", zap.Error(err))
	}
	log.Info("Pairing requested",
		zap.Int("status", resp.StatusCode()),
		zap.ByteString("body", resp.Body()))
	if resp.IsError() {
		return
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-done:
	case <-interrupt:
		log.Info("interrupt, cancelling pairing")
		cancel, _ := json.Marshal(ws.PairingCancelMessage{
			BaseMessage: ws.BaseMessage{
				Type:      ws.MessageTypePairingCancel,
				Timestamp: time.Now().Format(time.RFC3339),
			},
		})
		if err := c.WriteMessage(websocket.TextMessage, cancel); err != nil {
			log.Warn("write cancel", zap.Error(err))
		}
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}

// readMessages prints server messages until the session ends or the
// connection drops.
func readMessages(c *websocket.Conn, log *zap.Logger, since time.Time, done chan<- struct{}) {
	defer close(done)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Info("connection closed", zap.Error(err))
			return
		}

		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn("unreadable message", zap.ByteString("raw", data))
			continue
		}

		switch msg.Type {
		case ws.MessageTypePairingState:
			if msg.Session == nil {
				continue
			}
			s := msg.Session
			fields := []zap.Field{
				zap.String("state", string(s.State)),
				zap.Bool("stale", s.Stale),
			}
			if s.Code != nil {
				fields = append(fields, zap.String("codeKind", string(s.Code.Kind)), zap.String("code", s.Code.Value))
			}
			if s.FailureReason != "" {
				fields = append(fields, zap.String("reason", s.FailureReason))
			}
			if s.DeviceID != "" {
				fields = append(fields, zap.String("deviceID", s.DeviceID))
			}
			log.Info("pairing", fields...)

			// A failed session from an earlier run is replayed on connect.
			if s.State.Terminal() && (s.EndedAt == nil || s.EndedAt.After(since)) {
				return
			}
		case ws.MessageTypeNotification:
			log.Info("notification", zap.ByteString("notification", msg.Notification))
		case ws.MessageTypeError:
			log.Warn("server error", zap.String("code", msg.Code), zap.String("message", msg.Message))
		}
	}
}

package api

import (
	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/internal/notify"
	"github.com/satriahrh/lexlink/internal/pairing"
	"github.com/satriahrh/lexlink/internal/websocket"
)

// hubCommands serves dashboard WebSocket commands from the pairing manager
// and the notification sink.
type hubCommands struct {
	manager *pairing.Manager
	sink    *notify.Sink
}

// NewHubCommands binds the hub to the services behind the HTTP API
func NewHubCommands(manager *pairing.Manager, sink *notify.Sink) websocket.Commands {
	return &hubCommands{manager: manager, sink: sink}
}

func (h *hubCommands) CancelPairing(tenantID string) error {
	return h.manager.CancelPairing(tenantID)
}

func (h *hubCommands) CurrentPairing(tenantID string) (entities.PairingSession, bool) {
	return h.manager.Current(tenantID)
}

func (h *hubCommands) DismissNotification(tenantID, id string) bool {
	return h.sink.Dismiss(tenantID, id)
}

func (h *hubCommands) ActiveNotifications(tenantID string) []notify.Notification {
	return h.sink.Active(tenantID)
}

package api

import (
	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/internal/notify"
	"github.com/satriahrh/lexlink/internal/pairing"
)

// StartPairingRequest represents the request payload for starting a pairing session
type StartPairingRequest struct {
	DisplayName string `json:"display_name"`
	PhoneHint   string `json:"phone_hint,omitempty"`
}

// RegisterOfficialRequest represents the request payload for registering a business API line
type RegisterOfficialRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// DeviceListResponse lists the tenant's devices with its QR usage
type DeviceListResponse struct {
	Devices []entities.Device `json:"devices"`
	Usage   pairing.Usage     `json:"usage"`
}

// NotificationListResponse lists the tenant's active notifications
type NotificationListResponse struct {
	Notifications []notify.Notification `json:"notifications"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// PairingErrorResponse is an error that still carries the session it concerns
type PairingErrorResponse struct {
	ErrorResponse
	Session *entities.PairingSession `json:"session,omitempty"`
	Usage   *pairing.Usage           `json:"usage,omitempty"`
}

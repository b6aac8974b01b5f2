package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/lexlink/domain"
)

// DeviceStatus is the connection status of a linked WhatsApp line.
type DeviceStatus string

const (
	DeviceStatusConnected    DeviceStatus = "connected"
	DeviceStatusDisconnected DeviceStatus = "disconnected"
	DeviceStatusConnecting   DeviceStatus = "connecting"
)

// Valid reports whether s is a known status.
func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceStatusConnected, DeviceStatusDisconnected, DeviceStatusConnecting:
		return true
	}
	return false
}

// DeviceType tells a QR-paired multi-device session apart from an official business API channel.
type DeviceType string

const (
	DeviceTypeQR       DeviceType = "qr"
	DeviceTypeOfficial DeviceType = "official"
)

// Valid reports whether t is a known type.
func (t DeviceType) Valid() bool {
	return t == DeviceTypeQR || t == DeviceTypeOfficial
}

// Device represents a WhatsApp line linked by a tenant
type Device struct {
	ID           string       `json:"id" bson:"_id" db:"id"`
	TenantID     string       `json:"tenant_id" bson:"tenant_id" db:"tenant_id"`
	Name         string       `json:"name" bson:"name" db:"name"`
	Phone        string       `json:"phone" bson:"phone" db:"phone"`
	Status       DeviceStatus `json:"status" bson:"status" db:"status"`
	Type         DeviceType   `json:"type" bson:"type" db:"type"`
	BatteryLevel *int         `json:"battery_level,omitempty" bson:"battery_level,omitempty" db:"battery_level"`
	LastActive   time.Time    `json:"last_active" bson:"last_active" db:"last_active"`
	CreatedAt    time.Time    `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// Validate checks the fields every stored device must carry
func (d *Device) Validate() error {
	if d.TenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", domain.ErrInvalidDevice)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidDevice)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidDevice, d.Status)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", domain.ErrInvalidDevice, d.Type)
	}
	if d.BatteryLevel != nil && (*d.BatteryLevel < 0 || *d.BatteryLevel > 100) {
		return fmt.Errorf("%w: battery_level must be between 0 and 100", domain.ErrInvalidDevice)
	}
	return nil
}

// DevicePatch carries the editable fields of a device. Nil fields are left untouched.
type DevicePatch struct {
	Name   *string       `json:"name,omitempty"`
	Phone  *string       `json:"phone,omitempty"`
	Status *DeviceStatus `json:"status,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p DevicePatch) Empty() bool {
	return p.Name == nil && p.Phone == nil && p.Status == nil
}

func (p DevicePatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidDevice)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidDevice, *p.Status)
	}
	return nil
}

// Apply copies the patch onto d.
func (p DevicePatch) Apply(d *Device) {
	if p.Name != nil {
		d.Name = strings.TrimSpace(*p.Name)
	}
	if p.Phone != nil {
		d.Phone = *p.Phone
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
}

package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/lexlink/domain"
)

// PairingState represents the lifecycle position of a pairing session
type PairingState string

const (
	PairingStateNaming          PairingState = "naming"
	PairingStateRequesting      PairingState = "requesting"
	PairingStateAwaitingCode    PairingState = "awaiting_code"
	PairingStateConfirmed       PairingState = "confirmed"
	PairingStateFailed          PairingState = "failed"
	PairingStateCapacityBlocked PairingState = "capacity_blocked"
	PairingStateCancelled       PairingState = "cancelled"
)

// Terminal reports whether no further transition can leave the state.
func (s PairingState) Terminal() bool {
	switch s {
	case PairingStateConfirmed, PairingStateFailed, PairingStateCapacityBlocked, PairingStateCancelled:
		return true
	}
	return false
}

// Waiting reports whether the session is waiting on the linking backend.
func (s PairingState) Waiting() bool {
	return s == PairingStateRequesting || s == PairingStateAwaitingCode
}

// PairingCode is either a QR payload or a numeric pair code, never both.
type PairingCode struct {
	Kind  domain.CodeKind `json:"kind"`
	Value string          `json:"value"`
}

// PairingSession is one attempt to link a WhatsApp line. It lives only in memory.
type PairingSession struct {
	ID            string       `json:"id"`
	TenantID      string       `json:"tenant_id"`
	DisplayName   string       `json:"display_name"`
	PhoneHint     string       `json:"phone_hint,omitempty"`
	State         PairingState `json:"state"`
	Code          *PairingCode `json:"code,omitempty"`
	Stale         bool         `json:"stale"`
	FailureReason string       `json:"failure_reason,omitempty"`
	PersistError  string       `json:"persist_error,omitempty"`
	DeviceID      string       `json:"device_id,omitempty"`
	StartedAt     time.Time    `json:"started_at"`
	LastEventAt   time.Time    `json:"last_event_at"`
	EndedAt       *time.Time   `json:"ended_at,omitempty"`
}

// NewPairingSession creates a session in the naming state
func NewPairingSession(tenantID, displayName, phoneHint string) *PairingSession {
	now := time.Now()
	return &PairingSession{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		DisplayName: strings.TrimSpace(displayName),
		PhoneHint:   strings.TrimSpace(phoneHint),
		State:       PairingStateNaming,
		StartedAt:   now,
		LastEventAt: now,
	}
}

// Validate checks the data supplied while naming
func (s *PairingSession) Validate() error {
	if s.TenantID == "" {
		return errors.New("tenant_id is required")
	}
	if s.DisplayName == "" {
		return domain.ErrInvalidDisplayName
	}
	return nil
}

// IsStale reports whether a requesting session heard nothing from the
// backend within window.
func (s *PairingSession) IsStale(now time.Time, window time.Duration) bool {
	return s.State == PairingStateRequesting && now.Sub(s.LastEventAt) >= window
}

// Snapshot returns a deep copy safe to hand to other goroutines
func (s *PairingSession) Snapshot() PairingSession {
	cp := *s
	if s.Code != nil {
		code := *s.Code
		cp.Code = &code
	}
	if s.EndedAt != nil {
		ended := *s.EndedAt
		cp.EndedAt = &ended
	}
	return cp
}

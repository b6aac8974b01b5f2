package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportUnavailable is logged when the push channel cannot be reached.
	// It only becomes user visible when polling fails as well.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrPairingRejected is reported by the linking backend during a pairing attempt.
	ErrPairingRejected = errors.New("pairing rejected")

	// ErrCapacityExceeded means the tenant reached its QR device cap.
	ErrCapacityExceeded = errors.New("device capacity exceeded")

	ErrPairingTimeout     = errors.New("pairing timed out")
	ErrPairingInProgress  = errors.New("a pairing session is already in progress")
	ErrNoPairingSession   = errors.New("no pairing session")
	ErrInvalidDisplayName = errors.New("display name is required")

	ErrDeviceNotFound = errors.New("device not found")
	ErrInvalidDevice  = errors.New("invalid device")
)

// PersistenceError wraps a failed write to the device store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("device store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

package repositories

import (
	"context"
	"time"

	"github.com/satriahrh/lexlink/domain"
)

// LinkingBackend is the external service that speaks the WhatsApp protocol
type LinkingBackend interface {
	// StartSession asks the backend to begin linking a new line for the tenant.
	// Results arrive asynchronously through a LinkChannel.
	StartSession(ctx context.Context, tenantID, phoneHint string) error
	// Status returns the current linking status for the tenant
	Status(ctx context.Context, tenantID string) (*domain.LinkStatus, error)
}

// LinkChannel is one open transport for a pairing attempt. Events from the
// push channel and the polling fallback are delivered on a single stream.
type LinkChannel interface {
	// Events is never closed; stop reading once Close has been called.
	Events() <-chan domain.LinkEvent
	StartFallbackPolling(interval time.Duration)
	// Close releases the channel. After it returns no further event is delivered.
	Close() error
}

// LinkTransport opens tenant-scoped link channels
type LinkTransport interface {
	Open(ctx context.Context, tenantID string) LinkChannel
}

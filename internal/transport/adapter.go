package transport

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/repositories"
	"github.com/satriahrh/lexlink/internal/monitoring"
)

const (
	DefaultPollInterval      = 3 * time.Second
	DefaultErrorPollInterval = 5 * time.Second
	DefaultMaxPollFailures   = 5
	defaultDialTimeout       = 5 * time.Second
	eventBufferSize          = 16
)

// Config holds configuration for the transport adapter
type Config struct {
	PushURL           string        // Optional: push channel endpoint; polling only when empty
	PollInterval      time.Duration // Optional: used when StartFallbackPolling gets no interval (default: 3s)
	ErrorPollInterval time.Duration // Optional: delay after a failed poll (default: 5s)
	MaxPollFailures   int           // Optional: failed polls before the session is told (default: 5)
	DialTimeout       time.Duration // Optional: push channel handshake timeout (default: 5s)
}

// Adapter opens link channels combining the push channel and the status poller.
type Adapter struct {
	cfg     Config
	backend repositories.LinkingBackend
	dialer  *websocket.Dialer
	logger  *zap.Logger
}

var _ repositories.LinkTransport = (*Adapter)(nil)

// NewAdapter creates a new transport adapter
func NewAdapter(cfg Config, backend repositories.LinkingBackend, logger *zap.Logger) *Adapter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ErrorPollInterval <= 0 {
		cfg.ErrorPollInterval = DefaultErrorPollInterval
	}
	if cfg.MaxPollFailures <= 0 {
		cfg.MaxPollFailures = DefaultMaxPollFailures
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}

	return &Adapter{
		cfg:     cfg,
		backend: backend,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
		},
		logger: logger,
	}
}

// Open implements repositories.LinkTransport. A push channel that cannot be
// reached is not an error: the returned channel relies on polling alone.
func (a *Adapter) Open(ctx context.Context, tenantID string) repositories.LinkChannel {
	h := newHandle(tenantID, a.cfg, a.backend, a.logger.With(zap.String("tenantID", tenantID)))

	if a.cfg.PushURL == "" {
		h.logger.Debug("No push channel configured, relying on polling")
		return h
	}

	conn, err := a.dial(ctx, tenantID)
	if err != nil {
		monitoring.TransportFallbacks.Inc()
		h.logger.Warn("Push channel unavailable, falling back to polling",
			zap.Error(fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)))
		return h
	}

	h.attachPush(conn)
	return h
}

func (a *Adapter) dial(ctx context.Context, tenantID string) (*websocket.Conn, error) {
	u, err := url.Parse(a.cfg.PushURL)
	if err != nil {
		return nil, fmt.Errorf("invalid push URL: %w", err)
	}
	q := u.Query()
	q.Set("tenantId", tenantID)
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, a.cfg.DialTimeout)
	defer cancel()

	conn, resp, err := a.dialer.DialContext(dialCtx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/repositories"
)

// Handle is one open link channel. Events from the push reader and the poller
// funnel through publish, which serializes delivery and applies deduplication.
type Handle struct {
	tenantID string
	cfg      Config
	backend  repositories.LinkingBackend
	logger   *zap.Logger

	events chan domain.LinkEvent

	// ctx outlives the request that opened the handle and ends on Close.
	ctx    context.Context
	cancel context.CancelFunc

	conn   *websocket.Conn
	pushUp atomic.Bool

	mu            sync.Mutex
	closed        bool
	connected     bool
	lastCode      string
	lastCodeKind  domain.CodeKind
	pollerStarted bool

	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ repositories.LinkChannel = (*Handle)(nil)

func newHandle(tenantID string, cfg Config, backend repositories.LinkingBackend, logger *zap.Logger) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		tenantID: tenantID,
		cfg:      cfg,
		backend:  backend,
		logger:   logger,
		events:   make(chan domain.LinkEvent, eventBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Events implements repositories.LinkChannel
func (h *Handle) Events() <-chan domain.LinkEvent {
	return h.events
}

// StartFallbackPolling implements repositories.LinkChannel. Only the first
// call starts a poller.
func (h *Handle) StartFallbackPolling(interval time.Duration) {
	if interval <= 0 {
		interval = h.cfg.PollInterval
	}

	h.mu.Lock()
	if h.closed || h.pollerStarted {
		h.mu.Unlock()
		return
	}
	h.pollerStarted = true
	h.wg.Add(1)
	h.mu.Unlock()

	go h.poll(interval)
}

// Close implements repositories.LinkChannel
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		// Cancel first so a publish blocked on a full buffer lets go of mu.
		h.cancel()
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()

		if h.conn != nil {
			err = h.conn.Close()
		}
		h.wg.Wait()

		// Drop whatever was buffered but not yet consumed.
		for {
			select {
			case <-h.events:
			default:
				h.logger.Debug("Link channel closed")
				return
			}
		}
	})
	return err
}

// PushConnected reports whether the push channel is currently up.
func (h *Handle) PushConnected() bool {
	return h.pushUp.Load()
}

func (h *Handle) attachPush(conn *websocket.Conn) {
	h.conn = conn
	h.pushUp.Store(true)
	h.wg.Add(1)
	go h.readPush()
}

// publish delivers event unless the channel is closed, a connected event was
// already delivered, or it repeats the code that was delivered last.
func (h *Handle) publish(event domain.LinkEvent) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.connected {
		return false
	}
	if event.Kind == domain.LinkEventCodeReady {
		if event.Code == h.lastCode && event.CodeKind == h.lastCodeKind {
			return false
		}
		h.lastCode = event.Code
		h.lastCodeKind = event.CodeKind
	}

	select {
	case h.events <- event:
	case <-h.ctx.Done():
		return false
	}

	if event.Kind == domain.LinkEventConnected {
		h.connected = true
	}
	return true
}

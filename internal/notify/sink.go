package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTTL       = 3 * time.Second
	DefaultQueueSize = 1
)

// Kind classifies a notification for rendering.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindUpgrade Kind = "upgrade"
)

// Notification is a transient toast shown to every dashboard user of a tenant.
type Notification struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Publisher forwards sink activity to connected clients.
type Publisher interface {
	NotificationPosted(n Notification)
	NotificationDismissed(tenantID, id string)
}

// Config holds configuration for the sink
type Config struct {
	QueueSize int           // Optional: notifications kept per tenant (default: 1)
	TTL       time.Duration // Optional: time before auto dismissal (default: 3s)
}

type entry struct {
	n     Notification
	timer *time.Timer
}

// Sink keeps a small per-tenant queue of notifications. Posting onto a full
// queue evicts the oldest entry. Delivery is fire and forget.
type Sink struct {
	mu        sync.Mutex
	queues    map[string][]*entry
	cfg       Config
	publisher Publisher
	logger    *zap.Logger
}

// NewSink creates a new notification sink. publisher may be nil.
func NewSink(cfg Config, publisher Publisher, logger *zap.Logger) *Sink {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	return &Sink{
		queues:    make(map[string][]*entry),
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
	}
}

// Notify posts a notification for the tenant and returns it.
func (s *Sink) Notify(tenantID string, kind Kind, message string) Notification {
	now := time.Now()
	n := Notification{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Kind:      kind,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}

	s.mu.Lock()
	queue := s.queues[tenantID]
	var evicted []Notification
	for len(queue) >= s.cfg.QueueSize {
		oldest := queue[0]
		oldest.timer.Stop()
		evicted = append(evicted, oldest.n)
		queue = queue[1:]
	}

	id := n.ID
	e := &entry{n: n}
	e.timer = time.AfterFunc(s.cfg.TTL, func() {
		s.Dismiss(tenantID, id)
	})
	s.queues[tenantID] = append(queue, e)
	s.mu.Unlock()

	s.logger.Debug("Notification posted",
		zap.String("tenantID", tenantID),
		zap.String("kind", string(kind)),
		zap.String("message", message))

	if s.publisher != nil {
		for _, old := range evicted {
			s.publisher.NotificationDismissed(tenantID, old.ID)
		}
		s.publisher.NotificationPosted(n)
	}

	return n
}

// Dismiss removes a notification. It reports false when the id is unknown,
// which includes notifications that already expired.
func (s *Sink) Dismiss(tenantID, id string) bool {
	s.mu.Lock()
	queue := s.queues[tenantID]
	found := false
	for i, e := range queue {
		if e.n.ID == id {
			e.timer.Stop()
			queue = append(queue[:i:i], queue[i+1:]...)
			found = true
			break
		}
	}
	if len(queue) == 0 {
		delete(s.queues, tenantID)
	} else {
		s.queues[tenantID] = queue
	}
	s.mu.Unlock()

	if found && s.publisher != nil {
		s.publisher.NotificationDismissed(tenantID, id)
	}
	return found
}

// Active returns the tenant's notifications, oldest first.
func (s *Sink) Active(tenantID string) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queues[tenantID]
	out := make([]Notification, 0, len(queue))
	for _, e := range queue {
		out = append(out, e.n)
	}
	return out
}

// Close stops every pending auto dismissal.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for tenantID, queue := range s.queues {
		for _, e := range queue {
			e.timer.Stop()
		}
		delete(s.queues, tenantID)
	}
}

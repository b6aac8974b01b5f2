package pairing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/entities"
	"github.com/satriahrh/lexlink/domain/repositories"
	"github.com/satriahrh/lexlink/internal/monitoring"
	"github.com/satriahrh/lexlink/internal/notify"
	"github.com/satriahrh/lexlink/internal/registry"
)

const (
	DefaultTimeout      = 2 * time.Minute
	DefaultStaleAfter   = 20 * time.Second
	DefaultPollInterval = 3 * time.Second
	DefaultRetention    = 10 * time.Minute

	persistTimeout = 10 * time.Second
)

var ErrManagerClosed = errors.New("pairing manager closed")

// CapacityExceededError is returned by StartPairing when the tenant has no
// room for another QR device.
type CapacityExceededError struct {
	Usage Usage
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("%v: %d of %d devices in use", domain.ErrCapacityExceeded, e.Usage.Used, e.Usage.Cap)
}

func (e *CapacityExceededError) Unwrap() error {
	return domain.ErrCapacityExceeded
}

// Observer is told about every change to a pairing session.
type Observer interface {
	SessionChanged(s entities.PairingSession)
}

// Notifier posts user facing feedback.
type Notifier interface {
	Notify(tenantID string, kind notify.Kind, message string) notify.Notification
}

// DeviceRegistry stores the device produced by a confirmed pairing.
type DeviceRegistry interface {
	Create(ctx context.Context, tenantID string, nd registry.NewDevice) (*entities.Device, error)
}

// CapacityChecker reports a tenant's device usage.
type CapacityChecker interface {
	Check(ctx context.Context, tenantID string) (Usage, error)
}

// Config holds configuration for the manager
type Config struct {
	Timeout      time.Duration // Optional: measured from StartedAt (default: 2m)
	StaleAfter   time.Duration // Optional: silence before a requesting session is flagged (default: 20s)
	PollInterval time.Duration // Optional: fallback polling interval (default: 3s)
	Retention    time.Duration // Optional: how long failed sessions stay readable (default: 10m)
}

type noopObserver struct{}

func (noopObserver) SessionChanged(entities.PairingSession) {}

// run is the live state of one session. loop is the only goroutine applying
// transport events; mu guards reads from other goroutines.
type run struct {
	mu          sync.Mutex
	session     entities.PairingSession
	channel     repositories.LinkChannel
	startCancel context.CancelFunc
	loopStarted bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (r *run) snapshot() entities.PairingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Snapshot()
}

// halt aborts a session start in flight, stops the event loop and waits for
// it to exit.
func (r *run) halt() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	started := r.loopStarted
	abort := r.startCancel
	r.mu.Unlock()
	if abort != nil {
		abort()
	}
	if started {
		<-r.done
	}
}

// releaseChannel detaches and closes the transport, if any.
func (r *run) releaseChannel() {
	r.mu.Lock()
	ch := r.channel
	r.channel = nil
	r.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
}

// Manager owns the pairing sessions of every tenant, at most one live
// session per tenant.
type Manager struct {
	transport repositories.LinkTransport
	backend   repositories.LinkingBackend
	registry  DeviceRegistry
	capacity  CapacityChecker
	notifier  Notifier
	observer  Observer
	cfg       Config
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*run
	closed   bool
}

// NewManager creates a new pairing manager. observer may be nil.
func NewManager(
	transport repositories.LinkTransport,
	backend repositories.LinkingBackend,
	deviceRegistry DeviceRegistry,
	capacity CapacityChecker,
	notifier Notifier,
	observer Observer,
	cfg Config,
	logger *zap.Logger,
) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if observer == nil {
		observer = noopObserver{}
	}

	return &Manager{
		transport: transport,
		backend:   backend,
		registry:  deviceRegistry,
		capacity:  capacity,
		notifier:  notifier,
		observer:  observer,
		cfg:       cfg,
		logger:    logger,
		sessions:  make(map[string]*run),
	}
}

// StartPairing begins linking a new line for the tenant. An invalid display
// name creates nothing. A tenant at its device cap gets a capacity blocked
// session and a *CapacityExceededError, and no network call is made.
func (m *Manager) StartPairing(ctx context.Context, tenantID, displayName, phoneHint string) (entities.PairingSession, error) {
	session := entities.NewPairingSession(tenantID, displayName, phoneHint)
	if err := session.Validate(); err != nil {
		return entities.PairingSession{}, err
	}

	r := &run{
		session: *session,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return entities.PairingSession{}, ErrManagerClosed
	}
	if existing, ok := m.sessions[tenantID]; ok && !existing.snapshot().State.Terminal() {
		m.mu.Unlock()
		return existing.snapshot(), domain.ErrPairingInProgress
	}
	m.sessions[tenantID] = r
	m.mu.Unlock()

	logger := m.logger.With(zap.String("tenantID", tenantID), zap.String("sessionID", session.ID))

	usage, err := m.capacity.Check(ctx, tenantID)
	if err != nil {
		m.discard(r)
		logger.Error("Capacity check failed", zap.Error(err))
		m.notifier.Notify(tenantID, notify.KindError, "Could not check the device limit, please try again")
		return entities.PairingSession{}, fmt.Errorf("failed to check device capacity: %w", err)
	}

	if usage.Exhausted() {
		snap, _ := m.apply(r, Event{Kind: EvCapacityBlocked})
		m.discard(r)
		monitoring.PairingOutcomes.WithLabelValues(string(snap.State)).Inc()
		m.notifier.Notify(tenantID, notify.KindUpgrade,
			fmt.Sprintf("Device limit reached (%d of %d). Upgrade your plan to link more WhatsApp lines.", usage.Used, usage.Cap))
		m.observer.SessionChanged(snap)
		logger.Info("Pairing blocked by device cap", zap.Int("used", usage.Used), zap.Int("cap", usage.Cap))
		return snap, &CapacityExceededError{Usage: usage}
	}

	channel := m.transport.Open(ctx, tenantID)
	startCtx, cancelStart := context.WithCancel(ctx)
	defer cancelStart()

	r.mu.Lock()
	if r.session.State == entities.PairingStateCancelled {
		r.mu.Unlock()
		channel.Close()
		return r.snapshot(), domain.ErrNoPairingSession
	}
	r.channel = channel
	r.startCancel = cancelStart
	r.mu.Unlock()

	snap, ok := m.apply(r, Event{Kind: EvSubmit})
	if !ok {
		return snap, domain.ErrNoPairingSession
	}
	m.observer.SessionChanged(snap)

	if m.cancelled(r) {
		return r.snapshot(), domain.ErrNoPairingSession
	}

	// startCtx ends early only when halt aborted the start.
	aborted := func() bool {
		return m.cancelled(r) || (startCtx.Err() != nil && ctx.Err() == nil)
	}

	if err := m.backend.StartSession(startCtx, tenantID, session.PhoneHint); err != nil {
		if aborted() {
			return r.snapshot(), domain.ErrNoPairingSession
		}
		logger.Warn("Linking backend failed to start session", zap.Error(err))
		snap, ok := m.apply(r, Event{Kind: EvError, Reason: err.Error()})
		if ok {
			m.fail(r, snap)
		}
		return r.snapshot(), nil
	}
	if aborted() {
		logger.Info("Pairing cancelled while the session was starting")
		return r.snapshot(), domain.ErrNoPairingSession
	}
	monitoring.PairingSessionsStarted.Inc()

	channel.StartFallbackPolling(m.cfg.PollInterval)

	r.mu.Lock()
	if r.session.State.Terminal() {
		cancelled := r.session.State == entities.PairingStateCancelled
		r.mu.Unlock()
		r.releaseChannel()
		if cancelled {
			return r.snapshot(), domain.ErrNoPairingSession
		}
		return r.snapshot(), nil
	}
	r.startCancel = nil
	r.loopStarted = true
	r.mu.Unlock()

	go m.loop(r, channel.Events())

	logger.Info("Pairing session started", zap.Bool("pairCode", session.PhoneHint != ""))
	return r.snapshot(), nil
}

// CancelPairing tears the tenant's session down synchronously. When it
// returns the transport is closed and no later event can touch the session.
// A retained failed session is simply dismissed.
func (m *Manager) CancelPairing(tenantID string) error {
	m.mu.Lock()
	r, ok := m.sessions[tenantID]
	if ok {
		delete(m.sessions, tenantID)
	}
	m.mu.Unlock()

	if !ok {
		return domain.ErrNoPairingSession
	}

	r.halt()
	r.releaseChannel()

	snap, changed := m.apply(r, Event{Kind: EvCancel})
	if changed {
		monitoring.PairingOutcomes.WithLabelValues(string(snap.State)).Inc()
		m.observer.SessionChanged(snap)
		m.logger.Info("Pairing session cancelled",
			zap.String("tenantID", tenantID),
			zap.String("sessionID", snap.ID))
	}
	return nil
}

// Current returns the tenant's session, if any.
func (m *Manager) Current(tenantID string) (entities.PairingSession, bool) {
	m.mu.Lock()
	r, ok := m.sessions[tenantID]
	m.mu.Unlock()

	if !ok {
		return entities.PairingSession{}, false
	}
	return r.snapshot(), true
}

// PurgeTerminal drops terminal sessions that ended before the given time and
// returns how many were removed.
func (m *Manager) PurgeTerminal(before time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for tenantID, r := range m.sessions {
		snap := r.snapshot()
		if snap.State.Terminal() && snap.EndedAt != nil && snap.EndedAt.Before(before) {
			delete(m.sessions, tenantID)
			purged++
		}
	}
	return purged
}

// Retention is how long failed sessions are kept.
func (m *Manager) Retention() time.Duration {
	return m.cfg.Retention
}

// Close stops every live session without notifying anyone.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	runs := make([]*run, 0, len(m.sessions))
	for tenantID, r := range m.sessions {
		runs = append(runs, r)
		delete(m.sessions, tenantID)
	}
	m.mu.Unlock()

	for _, r := range runs {
		r.halt()
		r.releaseChannel()
		m.apply(r, Event{Kind: EvCancel})
	}
	m.logger.Info("Pairing manager closed", zap.Int("sessions", len(runs)))
}

// loop is the single consumer of a session's transport events.
func (m *Manager) loop(r *run, events <-chan domain.LinkEvent) {
	defer close(r.done)

	startedAt := r.snapshot().StartedAt
	timeout := time.NewTimer(time.Until(startedAt.Add(m.cfg.Timeout)))
	defer timeout.Stop()

	staleCheck := m.cfg.StaleAfter / 4
	if staleCheck < 10*time.Millisecond {
		staleCheck = 10 * time.Millisecond
	}
	ticker := time.NewTicker(staleCheck)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return

		case ev := <-events:
			if m.handle(r, FromLinkEvent(ev)) {
				return
			}

		case now := <-timeout.C:
			m.handle(r, Event{Kind: EvTimeout, At: now})
			return

		case now := <-ticker.C:
			r.mu.Lock()
			next, changed := MarkStale(r.session, now, m.cfg.StaleAfter)
			r.session = next
			snap := r.session.Snapshot()
			r.mu.Unlock()
			if changed {
				m.observer.SessionChanged(snap)
			}
		}
	}
}

// handle applies ev and runs its effect. It reports whether the session is
// now terminal.
func (m *Manager) handle(r *run, ev Event) bool {
	r.mu.Lock()
	next, effect, ok := Apply(r.session, ev)
	if !ok {
		terminal := r.session.State.Terminal()
		r.mu.Unlock()
		return terminal
	}
	r.session = next
	snap := r.session.Snapshot()
	r.mu.Unlock()

	switch effect {
	case EffectShowCode:
		m.observer.SessionChanged(snap)
	case EffectPersistDevice:
		m.confirm(r, snap, ev.User)
	case EffectNotifyFailure:
		m.fail(r, snap)
	default:
		m.observer.SessionChanged(snap)
	}
	return snap.State.Terminal()
}

// confirm persists the linked device. A store failure is surfaced on the
// session and to the user; the link itself is not undone.
func (m *Manager) confirm(r *run, snap entities.PairingSession, user *domain.LinkUser) {
	r.releaseChannel()

	logger := m.logger.With(zap.String("tenantID", snap.TenantID), zap.String("sessionID", snap.ID))
	monitoring.PairingOutcomes.WithLabelValues(string(snap.State)).Inc()
	monitoring.PairingDuration.Observe(time.Since(snap.StartedAt).Seconds())

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	device, err := m.registry.Create(ctx, snap.TenantID, registry.NewDevice{
		Name:       snap.DisplayName,
		Phone:      phoneFromUser(user, snap.PhoneHint),
		Status:     entities.DeviceStatusConnected,
		Type:       entities.DeviceTypeQR,
		LastActive: time.Now(),
	})

	r.mu.Lock()
	if err != nil {
		r.session.PersistError = err.Error()
	} else {
		r.session.DeviceID = device.ID
	}
	snap = r.session.Snapshot()
	r.mu.Unlock()

	if err != nil {
		monitoring.DevicePersistFailures.Inc()
		logger.Error("Device linked but not saved", zap.Error(err))
		m.notifier.Notify(snap.TenantID, notify.KindError,
			fmt.Sprintf("WhatsApp %q connected but could not be saved: %v", snap.DisplayName, err))
	} else {
		logger.Info("Device paired", zap.String("deviceID", device.ID))
		m.notifier.Notify(snap.TenantID, notify.KindSuccess,
			fmt.Sprintf("WhatsApp %q connected", snap.DisplayName))
	}

	m.observer.SessionChanged(snap)
	m.discard(r)
}

// fail closes the transport and reports the failure. The session stays
// readable until the tenant starts again or the janitor purges it.
func (m *Manager) fail(r *run, snap entities.PairingSession) {
	r.releaseChannel()

	monitoring.PairingOutcomes.WithLabelValues(string(snap.State)).Inc()
	m.logger.Info("Pairing session failed",
		zap.String("tenantID", snap.TenantID),
		zap.String("sessionID", snap.ID),
		zap.String("reason", snap.FailureReason))

	m.notifier.Notify(snap.TenantID, notify.KindError, "Pairing failed: "+snap.FailureReason)
	m.observer.SessionChanged(snap)
}

// cancelled reports whether CancelPairing already tore r down.
func (m *Manager) cancelled(r *run) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.State == entities.PairingStateCancelled
}

// apply runs a transition outside the event loop.
func (m *Manager) apply(r *run, ev Event) (entities.PairingSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, _, ok := Apply(r.session, ev)
	r.session = next
	return r.session.Snapshot(), ok
}

// discard forgets r unless another session already replaced it.
func (m *Manager) discard(r *run) {
	tenantID := r.snapshot().TenantID

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[tenantID] == r {
		delete(m.sessions, tenantID)
	}
}

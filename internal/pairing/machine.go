package pairing

import (
	"time"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/domain/entities"
)

// EventKind enumerates what can drive a pairing session.
type EventKind string

const (
	EvSubmit          EventKind = "submit"
	EvCapacityBlocked EventKind = "capacity_blocked"
	EvCodeReady       EventKind = "code_ready"
	EvConnected       EventKind = "connected"
	EvError           EventKind = "error"
	EvTimeout         EventKind = "timeout"
	EvCancel          EventKind = "cancel"
)

// Event is one input to Apply.
type Event struct {
	Kind   EventKind
	Code   *entities.PairingCode
	User   *domain.LinkUser
	Reason string
	At     time.Time
}

// Effect is the side effect the caller must run after a transition.
type Effect string

const (
	EffectNone          Effect = "none"
	EffectShowCode      Effect = "show_code"
	EffectPersistDevice Effect = "persist_device"
	EffectNotifyFailure Effect = "notify_failure"
)

// Transition is a single allowed edge in the pairing state machine.
type Transition struct {
	From   entities.PairingState
	Event  EventKind
	To     entities.PairingState
	Effect Effect
}

var transitionsTable = []Transition{
	// Start path
	{From: entities.PairingStateNaming, Event: EvSubmit, To: entities.PairingStateRequesting, Effect: EffectNone},
	{From: entities.PairingStateNaming, Event: EvCapacityBlocked, To: entities.PairingStateCapacityBlocked, Effect: EffectNone},

	// Code delivery, last write wins
	{From: entities.PairingStateRequesting, Event: EvCodeReady, To: entities.PairingStateAwaitingCode, Effect: EffectShowCode},
	{From: entities.PairingStateAwaitingCode, Event: EvCodeReady, To: entities.PairingStateAwaitingCode, Effect: EffectShowCode},

	// Success, including a backend that reports an already completed link
	{From: entities.PairingStateRequesting, Event: EvConnected, To: entities.PairingStateConfirmed, Effect: EffectPersistDevice},
	{From: entities.PairingStateAwaitingCode, Event: EvConnected, To: entities.PairingStateConfirmed, Effect: EffectPersistDevice},

	// Failure
	{From: entities.PairingStateRequesting, Event: EvError, To: entities.PairingStateFailed, Effect: EffectNotifyFailure},
	{From: entities.PairingStateAwaitingCode, Event: EvError, To: entities.PairingStateFailed, Effect: EffectNotifyFailure},
	{From: entities.PairingStateRequesting, Event: EvTimeout, To: entities.PairingStateFailed, Effect: EffectNotifyFailure},
	{From: entities.PairingStateAwaitingCode, Event: EvTimeout, To: entities.PairingStateFailed, Effect: EffectNotifyFailure},

	// Explicit teardown
	{From: entities.PairingStateNaming, Event: EvCancel, To: entities.PairingStateCancelled, Effect: EffectNone},
	{From: entities.PairingStateRequesting, Event: EvCancel, To: entities.PairingStateCancelled, Effect: EffectNone},
	{From: entities.PairingStateAwaitingCode, Event: EvCancel, To: entities.PairingStateCancelled, Effect: EffectNone},
}

// TransitionFor returns the allowed transition for a given state and event.
func TransitionFor(from entities.PairingState, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// Apply computes the session that results from ev. It performs no I/O; the
// returned effect tells the caller what to do next. Events without a table
// entry leave the session untouched and return ok=false, which is how
// terminal states absorb late or duplicate events.
func Apply(s entities.PairingSession, ev Event) (next entities.PairingSession, effect Effect, ok bool) {
	tr, found := TransitionFor(s.State, ev.Kind)
	if !found {
		return s, EffectNone, false
	}
	if ev.Kind == EvCodeReady && (ev.Code == nil || ev.Code.Value == "") {
		return s, EffectNone, false
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	next = s
	next.State = tr.To
	next.LastEventAt = at
	next.Stale = false

	switch ev.Kind {
	case EvCodeReady:
		code := *ev.Code
		next.Code = &code
	case EvError:
		next.FailureReason = ev.Reason
		if next.FailureReason == "" {
			next.FailureReason = domain.ErrPairingRejected.Error()
		}
	case EvTimeout:
		next.FailureReason = domain.ErrPairingTimeout.Error()
	}

	if tr.To.Terminal() {
		next.Code = nil
		ended := at
		next.EndedAt = &ended
	}

	return next, tr.Effect, true
}

// MarkStale flags a requesting session that has been silent for window.
// changed is false when the flag was already set or does not apply.
func MarkStale(s entities.PairingSession, now time.Time, window time.Duration) (next entities.PairingSession, changed bool) {
	if s.Stale || !s.IsStale(now, window) {
		return s, false
	}
	s.Stale = true
	return s, true
}

// FromLinkEvent converts a transport event into a machine event.
func FromLinkEvent(ev domain.LinkEvent) Event {
	out := Event{At: ev.ReceivedAt, User: ev.User, Reason: ev.Message}
	switch ev.Kind {
	case domain.LinkEventCodeReady:
		out.Kind = EvCodeReady
		out.Code = &entities.PairingCode{Kind: ev.CodeKind, Value: ev.Code}
	case domain.LinkEventConnected:
		out.Kind = EvConnected
	case domain.LinkEventError:
		out.Kind = EvError
	}
	return out
}

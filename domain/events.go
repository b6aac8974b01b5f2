package domain

import "time"

// LinkEventKind enumerates the events the transport delivers to a pairing session.
type LinkEventKind string

const (
	LinkEventCodeReady LinkEventKind = "code_ready"
	LinkEventError     LinkEventKind = "error"
	LinkEventConnected LinkEventKind = "connected"
)

// LinkSource tells which channel produced an event.
type LinkSource string

const (
	SourcePush LinkSource = "push"
	SourcePoll LinkSource = "poll"
)

// CodeKind distinguishes the two credential exchange mechanisms.
type CodeKind string

const (
	CodeKindQR       CodeKind = "qr"
	CodeKindPairCode CodeKind = "pair_code"
)

// LinkUser is the WhatsApp account reported once a link succeeds.
// ID has the form "<phone>:<device>" optionally followed by "@<server>".
type LinkUser struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// LinkEvent is a normalized event from either the push channel or the poller.
type LinkEvent struct {
	Kind       LinkEventKind
	Source     LinkSource
	CodeKind   CodeKind
	Code       string
	Message    string
	User       *LinkUser
	ReceivedAt time.Time
}

// LinkStatus is the body returned by the linking backend status endpoint.
type LinkStatus struct {
	Status   string    `json:"status"`
	QR       string    `json:"qr,omitempty"`
	PairCode string    `json:"paircode,omitempty"`
	User     *LinkUser `json:"user,omitempty"`
}

// Status values understood by the poller. Anything else means "still requesting".
const (
	LinkStatusQRReady       = "QR_READY"
	LinkStatusPairCodeReady = "PAIR_CODE_READY"
	LinkStatusConnected     = "Connected"
)

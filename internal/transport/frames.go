package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/lexlink/domain"
)

// Push channel event names.
const (
	frameQRUpdate  = "qr:update"
	frameQRError   = "qr:error"
	frameConnected = "whatsapp:connected"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type qrUpdateData struct {
	QR       string           `json:"qr"`
	PairCode string           `json:"paircode"`
	Status   string           `json:"status"`
	User     *domain.LinkUser `json:"user"`
}

type qrErrorData struct {
	Message string `json:"message"`
}

type connectedData struct {
	Status string           `json:"status"`
	User   *domain.LinkUser `json:"user"`
}

// decodeFrame maps one push frame onto a link event. ok is false for frames
// that carry nothing actionable.
func decodeFrame(raw []byte, now time.Time) (event domain.LinkEvent, ok bool, err error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return domain.LinkEvent{}, false, fmt.Errorf("invalid push frame: %w", err)
	}

	switch f.Event {
	case frameQRUpdate:
		var data qrUpdateData
		if err := decodeData(f.Data, &data); err != nil {
			return domain.LinkEvent{}, false, err
		}
		event, ok = statusToEvent(&domain.LinkStatus{
			Status:   data.Status,
			QR:       data.QR,
			PairCode: data.PairCode,
			User:     data.User,
		}, domain.SourcePush, now)
		return event, ok, nil

	case frameQRError:
		var data qrErrorData
		if err := decodeData(f.Data, &data); err != nil {
			return domain.LinkEvent{}, false, err
		}
		msg := data.Message
		if msg == "" {
			msg = domain.ErrPairingRejected.Error()
		}
		return domain.LinkEvent{
			Kind:       domain.LinkEventError,
			Source:     domain.SourcePush,
			Message:    msg,
			ReceivedAt: now,
		}, true, nil

	case frameConnected:
		var data connectedData
		if err := decodeData(f.Data, &data); err != nil {
			return domain.LinkEvent{}, false, err
		}
		return domain.LinkEvent{
			Kind:       domain.LinkEventConnected,
			Source:     domain.SourcePush,
			User:       data.User,
			ReceivedAt: now,
		}, true, nil
	}

	return domain.LinkEvent{}, false, nil
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid push frame data: %w", err)
	}
	return nil
}

// statusToEvent normalizes a backend status into a link event. Both the
// poller and qr:update frames go through here. A pair code takes precedence
// over a QR code; a status without any code means the backend is still working.
func statusToEvent(status *domain.LinkStatus, source domain.LinkSource, now time.Time) (domain.LinkEvent, bool) {
	if status == nil {
		return domain.LinkEvent{}, false
	}

	event := domain.LinkEvent{Source: source, ReceivedAt: now}
	switch {
	case status.Status == domain.LinkStatusConnected:
		event.Kind = domain.LinkEventConnected
		event.User = status.User
	case status.PairCode != "" && (status.Status == domain.LinkStatusPairCodeReady || source == domain.SourcePush):
		event.Kind = domain.LinkEventCodeReady
		event.CodeKind = domain.CodeKindPairCode
		event.Code = status.PairCode
	case status.QR != "" && (status.Status == domain.LinkStatusQRReady || source == domain.SourcePush):
		event.Kind = domain.LinkEventCodeReady
		event.CodeKind = domain.CodeKindQR
		event.Code = status.QR
	default:
		return domain.LinkEvent{}, false
	}

	return event, true
}

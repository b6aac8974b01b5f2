package transport

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain"
	"github.com/satriahrh/lexlink/internal/monitoring"
)

// Maximum frame size accepted from the push channel. QR payloads are data URLs.
const maxFrameSize = 256 * 1024

// readPush pumps frames from the push channel into the event bus until the
// connection drops or the handle is closed.
func (h *Handle) readPush() {
	defer func() {
		h.pushUp.Store(false)
		h.wg.Done()
	}()

	h.conn.SetReadLimit(maxFrameSize)

	for {
		messageType, message, err := h.conn.ReadMessage()
		if err != nil {
			if h.ctx.Err() != nil {
				return
			}
			monitoring.TransportFallbacks.Inc()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("Push channel lost, continuing with polling",
					zap.Error(errors.Join(domain.ErrTransportUnavailable, err)))
			} else {
				h.logger.Info("Push channel closed by backend", zap.Error(err))
			}
			return
		}

		if messageType != websocket.TextMessage {
			h.logger.Warn("Received unknown message type", zap.Int("type", messageType))
			continue
		}

		event, ok, err := decodeFrame(message, time.Now())
		if err != nil {
			h.logger.Warn("Dropping malformed push frame", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		h.publish(event)
	}
}

package transport

import (
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/lexlink/domain"
)

// poll asks the linking backend for the tenant status once per tick. After a
// failed request the next tick waits ErrorPollInterval instead.
func (h *Handle) poll(interval time.Duration) {
	defer h.wg.Done()

	failures := 0
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-timer.C:
		}

		status, err := h.backend.Status(h.ctx, h.tenantID)
		if err != nil {
			if h.ctx.Err() != nil {
				return
			}
			failures++
			h.logger.Debug("Status poll failed", zap.Int("failures", failures), zap.Error(err))

			if failures == h.cfg.MaxPollFailures && !h.pushUp.Load() {
				h.logger.Warn("Push channel and polling both unavailable", zap.Error(err))
				h.publish(domain.LinkEvent{
					Kind:       domain.LinkEventError,
					Source:     domain.SourcePoll,
					Message:    domain.ErrTransportUnavailable.Error(),
					ReceivedAt: time.Now(),
				})
			}
			timer.Reset(h.cfg.ErrorPollInterval)
			continue
		}

		failures = 0
		if event, ok := statusToEvent(status, domain.SourcePoll, time.Now()); ok {
			h.publish(event)
		}
		timer.Reset(interval)
	}
}

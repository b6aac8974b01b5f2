package pairing

import (
	"time"

	"go.uber.org/zap"
)

// Janitor periodically drops failed sessions that nobody came back for.
type Janitor struct {
	manager  *Manager
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewJanitor creates a janitor that sweeps every interval
func NewJanitor(manager *Manager, interval time.Duration, logger *zap.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{
		manager:  manager,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the background sweep
func (j *Janitor) Start() {
	go j.sweepLoop()
	j.logger.Info("Pairing janitor started", zap.Duration("interval", j.interval))
}

// Stop stops the sweep and waits for it to finish
func (j *Janitor) Stop() {
	close(j.stopChan)
	<-j.doneChan
	j.logger.Info("Pairing janitor stopped")
}

func (j *Janitor) sweepLoop() {
	defer close(j.doneChan)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case now := <-ticker.C:
			j.sweep(now)
		}
	}
}

func (j *Janitor) sweep(now time.Time) {
	purged := j.manager.PurgeTerminal(now.Add(-j.manager.Retention()))
	if purged > 0 {
		j.logger.Info("Purged finished pairing sessions", zap.Int("count", purged))
	}
}

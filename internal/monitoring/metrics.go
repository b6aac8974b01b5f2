package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	PairingSessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsapp_pairing_sessions_started_total",
			Help: "Total number of pairing sessions that reached the linking backend",
		},
	)
	PairingOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_pairing_outcomes_total",
			Help: "Total number of pairing sessions by terminal state",
		},
		[]string{"state"},
	)
	PairingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whatsapp_pairing_duration_seconds",
			Help:    "Time from session start to confirmation",
			Buckets: prometheus.LinearBuckets(0, 10, 13), // 0 to 2 minutes
		},
	)
	TransportFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsapp_transport_push_unavailable_total",
			Help: "Push channel dials or reads that failed, leaving polling as the only source",
		},
	)
	DevicePersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsapp_device_persist_failures_total",
			Help: "Confirmed pairings whose device record could not be written",
		},
	)
)

func InitMetrics(logger *zap.Logger) {
	collectors := map[string]prometheus.Collector{
		"PairingSessionsStarted": PairingSessionsStarted,
		"PairingOutcomes":        PairingOutcomes,
		"PairingDuration":        PairingDuration,
		"TransportFallbacks":     TransportFallbacks,
		"DevicePersistFailures":  DevicePersistFailures,
	}

	for name, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			logger.Error("Failed to register metric", zap.String("metric", name), zap.Error(err))
		}
	}
}

// Package metrics exposes the Prometheus collectors collabcore's session
// and document layers report against.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups every metric collabcore reports. A nil *Collectors is a
// valid no-op — callers check for nil before touching a field, same as they
// check a nil logger.
type Collectors struct {
	SessionsActive        prometheus.Gauge
	ClientsConnected      prometheus.Gauge
	OperationsTotal       prometheus.Counter
	BroadcastDropsTotal   prometheus.Counter
	DocumentMergeDuration prometheus.Histogram
}

// New registers and returns the default collector set against the global
// Prometheus registry.
func New() *Collectors {
	return &Collectors{
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "collabcore_sessions_active",
			Help: "Number of collaboration sessions currently open.",
		}),
		ClientsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "collabcore_clients_connected",
			Help: "Number of replicas currently connected across all sessions.",
		}),
		OperationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "collabcore_operations_total",
			Help: "Total number of operations recorded across all sessions.",
		}),
		BroadcastDropsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "collabcore_broadcast_drops_total",
			Help: "Total number of session events dropped because a subscriber's channel was full.",
		}),
		DocumentMergeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "collabcore_document_merge_duration_seconds",
			Help:    "Time taken to merge a remote document snapshot into a session's document.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
}

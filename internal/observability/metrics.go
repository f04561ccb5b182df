// Package observability holds the prometheus instrumentation for docchat.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "docchat"

// Metrics bundles the server's prometheus collectors.
type Metrics struct {
	UploadsTotal           prometheus.Counter
	FragmentsTotal         prometheus.Counter
	SliceErrorsTotal       prometheus.Counter
	ChatRequestsTotal      *prometheus.CounterVec
	StreamEventsTotal      *prometheus.CounterVec
	ActiveStreams          prometheus.Gauge
	ClientDisconnectsTotal prometheus.Counter
}

// NewMetrics registers all collectors with the given registerer. Tests
// pass a fresh registry to avoid duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UploadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total accepted document uploads",
		}),
		FragmentsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_total",
			Help:      "Total fragments produced by ingestion",
		}),
		SliceErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slice_errors_total",
			Help:      "Total ingestion slices skipped after extraction failures",
		}),
		ChatRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Total chat requests by terminal status",
		}, []string{"status"}),
		StreamEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Total stream events emitted by kind",
		}, []string{"kind"}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Currently open response streams",
		}),
		ClientDisconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_disconnects_total",
			Help:      "Total client cancellations observed mid-stream",
		}),
	}
}

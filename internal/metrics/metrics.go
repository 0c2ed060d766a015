// Package metrics holds the Prometheus collectors for the marketplace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tutormatch"

// Metrics holds all Prometheus metrics for the service.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	SessionsCreated     prometheus.Counter
	SessionsDeleted     prometheus.Counter
	SchedulingConflicts prometheus.Counter
	Bookings            *prometheus.CounterVec
	SearchResults       *prometheus.HistogramVec
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		SessionsCreated: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_created_total",
				Help:      "Total sessions published by tutors",
			},
		),
		SessionsDeleted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_deleted_total",
				Help:      "Total sessions removed by tutors",
			},
		),
		SchedulingConflicts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduling_conflicts_total",
				Help:      "Total session creations rejected for overlapping",
			},
		),
		Bookings: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_total",
				Help:      "Total booking state transitions",
			},
			[]string{"action", "result"}, // action=book/unbook, result=ok/rejected/error
		),
		SearchResults: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results",
				Help:      "Number of sessions returned per search",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
			[]string{"filter"},
		),
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	BackendRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brandlens_backend_requests_total",
		Help: "Total requests issued to the collection backend",
	}, []string{"endpoint"})
	BackendErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brandlens_backend_errors_total",
		Help: "Total failed requests to the collection backend",
	}, []string{"endpoint"})
	BackendDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "brandlens_backend_request_duration_seconds",
		Help:    "Collection backend request duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	GroupSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brandlens_group_syncs_total",
		Help: "Keyword-group background sync outcomes",
	}, []string{"outcome"})
	PollAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brandlens_collection_poll_attempts_total",
		Help: "Post-collection poll attempts after a search trigger",
	})
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brandlens_http_requests_total",
		Help: "Dashboard API requests by route and status",
	}, []string{"route", "status"})
)

func init() {
	prometheus.MustRegister(BackendRequests, BackendErrors, BackendDuration, GroupSyncs, PollAttempts, HTTPRequests)
}

// ObserveBackend records one backend round-trip.
func ObserveBackend(endpoint string, start time.Time, err error) {
	BackendRequests.WithLabelValues(endpoint).Inc()
	BackendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		BackendErrors.WithLabelValues(endpoint).Inc()
	}
}

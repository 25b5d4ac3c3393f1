// Package metrics exposes Prometheus instrumentation for the worker
// fleet. All collectors live on a single Metrics struct so tests can
// register against an isolated registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "mintmark"
	subsystem = "worker"
)

// Metrics holds the worker-side collectors.
type Metrics struct {
	registry prometheus.Registerer

	// JobsProcessedTotal counts finished jobs by type and terminal status.
	JobsProcessedTotal *prometheus.CounterVec

	// JobsReclaimedTotal counts stuck jobs returned to pending.
	JobsReclaimedTotal prometheus.Counter

	// JobDurationSeconds observes wall-clock job execution time.
	JobDurationSeconds *prometheus.HistogramVec

	// ProviderRequestsTotal counts outbound marketplace requests by outcome.
	ProviderRequestsTotal *prometheus.CounterVec

	// PricePointsUpserted counts price points written to storage.
	PricePointsUpserted prometheus.Counter

	// CacheHitsTotal counts collection runs served from the listing cache.
	CacheHitsTotal prometheus.Counter

	// BreakerTripsTotal counts circuit breaker trips per source.
	BreakerTripsTotal *prometheus.CounterVec

	// HeartbeatFailures counts heartbeat writes that did not land.
	HeartbeatFailures prometheus.Counter
}

// New creates the worker metrics on the given registerer. A nil
// registerer falls back to the Prometheus default.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		JobsProcessedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_processed_total",
			Help:      "Jobs that reached a terminal or retryable outcome.",
		}, []string{"job_type", "status"}),
		JobsReclaimedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_reclaimed_total",
			Help:      "Stuck running jobs returned to pending by the reclaimer.",
		}),
		JobDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_duration_seconds",
			Help:      "Wall-clock time spent executing a claimed job.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"job_type"}),
		ProviderRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provider_requests_total",
			Help:      "Outbound marketplace requests by source and outcome.",
		}, []string{"source_id", "outcome"}),
		PricePointsUpserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "price_points_upserted_total",
			Help:      "Price points written by collection jobs.",
		}),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_hits_total",
			Help:      "Collection runs answered from the in-memory listing cache.",
		}),
		BreakerTripsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "breaker_trips_total",
			Help:      "Circuit breaker trips per source.",
		}, []string{"source_id"}),
		HeartbeatFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "heartbeat_failures_total",
			Help:      "Job heartbeat updates that failed or matched no row.",
		}),
	}
}

// Handler serves the metrics endpoint for the registry the collectors
// were created on, when that registry is also a Gatherer.
func Handler(reg prometheus.Registerer) http.Handler {
	if gatherer, ok := reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// Package metrics exposes Prometheus collectors for the profile engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	acquisitionsTotal       *prometheus.CounterVec
	scrapeDurationSeconds   prometheus.Histogram
	registryRequestsTotal   *prometheus.CounterVec
	activeSessions          prometheus.Gauge
	snapshotArchiveFailures prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		acquisitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profile_acquisitions_total",
				Help: "Total profile acquisitions, labeled by outcome (registry, cache, scrape, failed).",
			},
			[]string{"outcome"},
		)

		scrapeDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "profile_scrape_duration_seconds",
				Help:    "Histogram of end-to-end scrape latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45},
			},
		)

		registryRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profile_registry_requests_total",
				Help: "Total registry lookups, labeled by result (hit, miss, unavailable).",
			},
			[]string{"result"},
		)

		activeSessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "profile_active_sessions",
				Help: "Number of live browser sessions.",
			},
		)

		snapshotArchiveFailures = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "profile_snapshot_archive_failures_total",
				Help: "Total snapshot archive writes that failed.",
			},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAcquisition increments the acquisition counter for an outcome.
func ObserveAcquisition(outcome string) {
	acquisitionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveScrapeDuration records one scrape's wall-clock time.
func ObserveScrapeDuration(d time.Duration) {
	scrapeDurationSeconds.Observe(d.Seconds())
}

// ObserveRegistry increments the registry counter for a result.
func ObserveRegistry(result string) {
	registryRequestsTotal.WithLabelValues(result).Inc()
}

// IncActiveSessions increments the live session gauge.
func IncActiveSessions() {
	activeSessions.Inc()
}

// DecActiveSessions decrements the live session gauge.
func DecActiveSessions() {
	activeSessions.Dec()
}

// ObserveArchiveFailure counts a failed snapshot write.
func ObserveArchiveFailure() {
	snapshotArchiveFailures.Inc()
}

// Package metrics provides Prometheus metrics for the pricing and ingest paths.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceLookupsTotal counts adapter lookups by outcome (hit, miss).
	SourceLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_lookups_total",
			Help: "Total number of price source lookups by result",
		},
		[]string{"source", "result"},
	)

	// SourceLookupDuration is a histogram of adapter lookup latency.
	SourceLookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_lookup_duration_seconds",
			Help:    "Duration of price source lookups",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"source"},
	)

	// PriceAggregationDuration is a histogram of price aggregation duration.
	PriceAggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "price_aggregation_duration_seconds",
			Help:    "Duration of price aggregation operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"rule"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// IngestCommitsTotal counts committed records.
	IngestCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_commits_total",
			Help: "Total number of committed inventory records",
		},
		[]string{"category", "status"},
	)
)

var initOnce sync.Once

// Init registers all metrics with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			SourceLookupsTotal,
			SourceLookupDuration,
			PriceAggregationDuration,
			HTTPRequestsTotal,
			HTTPRequestDuration,
			IngestCommitsTotal,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// RecordSourceLookup records one adapter lookup.
func RecordSourceLookup(source string, hit bool, duration time.Duration) {
	result := "miss"
	if hit {
		result = "hit"
	}
	SourceLookupsTotal.WithLabelValues(source, result).Inc()
	SourceLookupDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordAggregation records a price aggregation operation.
func RecordAggregation(rule string, duration time.Duration) {
	PriceAggregationDuration.WithLabelValues(rule).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordCommit records a commit attempt.
func RecordCommit(category, status string) {
	IngestCommitsTotal.WithLabelValues(category, status).Inc()
}

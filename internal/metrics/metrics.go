// Package metrics provides Prometheus instrumentation for the dropship gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts inbound HTTP requests by method, route, and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dropship",
			Name:      "http_requests_total",
			Help:      "Total inbound HTTP requests by method, route pattern, and status class.",
		},
		[]string{"method", "route", "status"},
	)

	// ProviderRequestsTotal counts provider calls by endpoint and outcome.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dropship",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Outbound provider requests by endpoint and outcome (ok, rate_limit, auth, upstream).",
		},
		[]string{"endpoint", "outcome"},
	)

	// ProviderRetriesTotal counts retries by failure class.
	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dropship",
			Subsystem: "provider",
			Name:      "retries_total",
			Help:      "Provider request retries by failure class.",
		},
		[]string{"class"},
	)

	// ProviderRequestDuration observes provider round-trip latency, excluding throttle waits.
	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dropship",
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Provider HTTP round-trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// ThrottleWaitSeconds observes how long callers waited at the global gate.
	ThrottleWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dropship",
		Subsystem: "throttle",
		Name:      "wait_seconds",
		Help:      "Time spent waiting for the global provider throttle.",
		Buckets:   []float64{0, 0.1, 0.5, 1, 1.5, 3, 6, 15, 30, 60},
	})

	// TokenOperationsTotal counts token lifecycle operations by kind and outcome.
	TokenOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dropship",
			Subsystem: "token",
			Name:      "operations_total",
			Help:      "Token lifecycle operations (login, refresh, reuse, persist) by outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// ShippingCacheTotal counts quote cache lookups and writes.
	ShippingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dropship",
			Subsystem: "shipping_cache",
			Name:      "events_total",
			Help:      "Shipping quote cache events (hit, miss, store, skip).",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		ProviderRequestsTotal,
		ProviderRetriesTotal,
		ProviderRequestDuration,
		ThrottleWaitSeconds,
		TokenOperationsTotal,
		ShippingCacheTotal,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveProvider records one provider round trip.
func ObserveProvider(endpoint, outcome string, elapsed time.Duration) {
	ProviderRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	ProviderRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// StatusBucket collapses an HTTP status code to its class ("2xx", "4xx", ...).
func StatusBucket(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

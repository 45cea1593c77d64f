package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Weatherbit API call rate. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// External API latency per request. Watch for: p95 approaching the 20s timeout.
	WeatherAPIDuration *prometheus.HistogramVec

	// New rows persisted. Rate of collection actually landing in the store.
	ObservationsInsertedTotal prometheus.Counter

	// Inserts suppressed by the uniqueness constraint. High rate = collection
	// triggered more often than the provider refreshes observations.
	ObservationsDuplicateTotal prometheus.Counter

	// Collect requests denied by the rate limiter (429). Protects provider quota.
	CollectRateDeniedTotal prometheus.Counter

	// Chart renders by metric name. Watch for: render errors vs successes.
	ChartRendersTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of Weatherbit API calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "Weatherbit API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"status"},
	)
	ObservationsInsertedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "observationsInsertedTotal",
			Help: "Total number of observation rows inserted",
		},
	)
	ObservationsDuplicateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "observationsDuplicateTotal",
			Help: "Total number of inserts suppressed as duplicates",
		},
	)
	CollectRateDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collectRateDeniedTotal",
			Help: "Total number of collect requests denied by rate limiter (429)",
		},
	)
	ChartRendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartRendersTotal",
			Help: "Chart renders by metric and outcome",
		},
		[]string{"metric", "outcome"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration,
		ObservationsInsertedTotal, ObservationsDuplicateTotal,
		CollectRateDeniedTotal, ChartRendersTotal,
	)
}

// MetricsHandler returns the /metrics HTTP handler bound to the service registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

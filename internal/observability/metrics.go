package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate on the widget surface. Watch for: spikes of 4xx (bad front-end input).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Lookup latency is dominated by the upstream call.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// OpenWeatherMap API call rate. Watch for: client_error share (bad city names) vs server_error.
	WeatherAPICallsTotal *prometheus.CounterVec

	// External API latency per request. Watch for: p99 near the configured client timeout.
	WeatherAPIDuration *prometheus.HistogramVec

	// Lookup outcomes: success, validation, offline_cached, offline_empty, fetch_failed, superseded.
	WeatherLookupsTotal *prometheus.CounterVec

	// Cache slot reads and writes by result. Watch for: save errors (offline fallback will be stale).
	SlotOperationsTotal *prometheus.CounterVec

	// Connectivity transitions reported by the host environment.
	ConnectivityTransitionsTotal *prometheus.CounterVec

	// 1 while the host reports online, 0 while offline.
	ConnectivityOnline prometheus.Gauge

	// Rate limit denials on POST /lookup.
	RateLimitDeniedTotal prometheus.Counter
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
			Help: "Total number of OpenWeatherMap API calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "OpenWeatherMap API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	WeatherLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherLookupsTotal",
			Help: "Total number of weather lookups by outcome",
		},
		[]string{"outcome"},
	)
	SlotOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotOperationsTotal",
			Help: "Cache slot operations by op (load, save) and result (hit, miss, stale, ok, error)",
		},
		[]string{"op", "result"},
	)
	ConnectivityTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectivityTransitionsTotal",
			Help: "Connectivity transitions reported by the host environment",
		},
		[]string{"to"},
	)
	ConnectivityOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "connectivityOnline",
			Help: "1 when the host reports online, 0 when offline",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration,
		WeatherLookupsTotal, SlotOperationsTotal,
		ConnectivityTransitionsTotal, ConnectivityOnline,
		RateLimitDeniedTotal,
	)
}

// RecordConnectivity updates the transition counter and online gauge.
func RecordConnectivity(online bool) {
	if online {
		ConnectivityTransitionsTotal.WithLabelValues("online").Inc()
		ConnectivityOnline.Set(1)
		return
	}
	ConnectivityTransitionsTotal.WithLabelValues("offline").Inc()
	ConnectivityOnline.Set(0)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

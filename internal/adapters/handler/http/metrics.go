package http

import (
	"strconv"
	"time"

	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Marketplace metrics
	hiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_hires_total",
			Help: "Total number of settled hires by hirer kind",
		},
		[]string{"hirer"},
	)

	hireVolume = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_hire_volume_base_units",
			Help: "Cumulative gross hire volume in base units",
		},
	)

	protocolFees = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_protocol_fees_base_units",
			Help: "Cumulative protocol fees collected in base units",
		},
	)

	registrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_registrations_total",
			Help: "Total number of agent registrations",
		},
	)

	// Gauges sampled from the counters row
	agentsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_agents_total",
			Help: "Number of agents ever registered",
		},
	)

	agentsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_agents_active",
			Help: "Number of currently active agents",
		},
	)

	cumulativeVolume = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_cumulative_volume_base_units",
			Help: "Cumulative hire volume as recorded by the protocol counters",
		},
	)

	treasuryBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_treasury_balance_base_units",
			Help: "Current treasury account balance",
		},
	)
)

// MetricsMiddleware records HTTP request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics for WebSocket upgrade requests
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		// Wrap ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordHire records a settled hire.
func RecordHire(gross, fee int64, agentToAgent bool) {
	hirer := "human"
	if agentToAgent {
		hirer = "agent"
	}
	hiresTotal.WithLabelValues(hirer).Inc()
	hireVolume.Add(float64(gross))
	protocolFees.Add(float64(fee))
}

// RecordRegistration increments the registration counter.
func RecordRegistration() {
	registrationsTotal.Inc()
}

// SetMarketGauges publishes the sampled protocol counters. Matches the
// services.MarketGauges callback signature.
func SetMarketGauges(total, active, volume, treasury int64) {
	agentsTotal.Set(float64(total))
	agentsActive.Set(float64(active))
	cumulativeVolume.Set(float64(volume))
	treasuryBalance.Set(float64(treasury))
}

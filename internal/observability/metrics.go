// Package observability collects Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus registry and application metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	ledgerAdjustments prometheus.Counter
	grnOperations     *prometheus.CounterVec
	ledgerDrift       prometheus.Gauge
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepost_http_requests_total",
		Help: "Number of HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradepost_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	adjustments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tradepost_ledger_adjustments_total",
		Help: "Number of direct product ledger adjustments.",
	})
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepost_grn_operations_total",
		Help: "Number of GRN operations by kind.",
	}, []string{"op"})
	drift := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tradepost_ledger_drift_findings",
		Help: "Findings from the most recent ledger audit scan.",
	})
	registry.MustRegister(requests, duration, adjustments, operations, drift)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		ledgerAdjustments: adjustments,
		grnOperations:     operations,
		ledgerDrift:       drift,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// RecordLedgerAdjustment counts one direct inventory adjustment.
func (m *Metrics) RecordLedgerAdjustment() {
	if m == nil {
		return
	}
	m.ledgerAdjustments.Inc()
}

// RecordGRNOperation counts one GRN operation of the given kind.
func (m *Metrics) RecordGRNOperation(op string) {
	if m == nil {
		return
	}
	m.grnOperations.WithLabelValues(op).Inc()
}

// SetLedgerDrift publishes the finding count of the latest audit scan.
func (m *Metrics) SetLedgerDrift(findings int) {
	if m == nil {
		return
	}
	m.ledgerDrift.Set(float64(findings))
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

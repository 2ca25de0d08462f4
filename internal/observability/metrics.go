package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Document outcomes reported through ObserveDocument.
const (
	DocumentRendered = "rendered"
	DocumentFallback = "fallback"
	DocumentCached   = "cached"
)

// Metrics collects the Prometheus collectors exposed by the ledger.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	payments        *prometheus.CounterVec
	documents       *prometheus.CounterVec
	checkouts       prometheus.Counter
}

// NewMetrics builds a private registry with the HTTP and ledger collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "HTTP requests partitioned by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "HTTP request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_payments_total",
		Help: "Applied payments, labelled by whether the requested amount was clamped.",
	}, []string{"clamped"})
	documents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_documents_total",
		Help: "Document store lookups by outcome.",
	}, []string{"outcome"})
	checkouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_checkouts_total",
		Help: "Invoices created through checkout.",
	})
	registry.MustRegister(requests, duration, payments, documents, checkouts)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		payments:        payments,
		documents:       documents,
		checkouts:       checkouts,
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request counts and latency.
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

// Registerer exposes the registry for extra collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObservePayment counts one applied payment.
func (m *Metrics) ObservePayment(clamped bool) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(strconv.FormatBool(clamped)).Inc()
}

// ObserveDocument counts one document store outcome.
func (m *Metrics) ObserveDocument(outcome string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(outcome).Inc()
}

// ObserveCheckout counts one created invoice.
func (m *Metrics) ObserveCheckout() {
	if m == nil {
		return
	}
	m.checkouts.Inc()
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

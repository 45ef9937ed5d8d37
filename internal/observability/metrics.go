package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/odyssey-erp/ledgercore/internal/jobs"
	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// Metrics collects Prometheus metrics for the ledger process.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	postings        *prometheus.CounterVec
	postingLines    prometheus.Histogram
	txRetries       *prometheus.CounterVec
	commandErrors   *prometheus.CounterVec
	jobs            *jobmetrics.Metrics
}

// NewMetrics initialises the registry with HTTP, ledger and job collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_postings_total",
		Help: "Committed journal entries by source module.",
	}, []string{"source_module"})
	lines := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_posting_lines",
		Help:    "Lines per committed journal entry.",
		Buckets: []float64{2, 3, 4, 6, 10, 20, 50},
	})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_tx_retries_total",
		Help: "Transactions re-run after a serialization conflict.",
	}, []string{"store"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_command_errors_total",
		Help: "Failed ledger commands by error kind.",
	}, []string{"kind"})
	registry.MustRegister(requests, duration, postings, lines, retries, errs)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		postings:        postings,
		postingLines:    lines,
		txRetries:       retries,
		commandErrors:   errs,
		jobs:            jobmetrics.NewMetrics(registry),
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
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

// ObservePosting implements accounting.Observer.
func (m *Metrics) ObservePosting(sourceModule string, lines int) {
	if m == nil {
		return
	}
	m.postings.WithLabelValues(sourceModule).Inc()
	m.postingLines.Observe(float64(lines))
}

// ObserveError counts a failed command by its error kind.
func (m *Metrics) ObserveError(err error) {
	if m == nil || err == nil {
		return
	}
	kind := string(shared.KindOf(err))
	if kind == "" {
		kind = "INTERNAL"
	}
	m.commandErrors.WithLabelValues(kind).Inc()
}

// Instrument returns policy with an OnRetry hook counting re-runs for store.
func (m *Metrics) Instrument(policy db.RetryPolicy, store string) db.RetryPolicy {
	if m == nil {
		return policy
	}
	prev := policy.OnRetry
	policy.OnRetry = func(err error, attempt int) {
		m.txRetries.WithLabelValues(store).Inc()
		if prev != nil {
			prev(err, attempt)
		}
	}
	return policy
}

// Jobs exposes the background job collectors registered on the same registry.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// Registerer exposes the registry for custom collectors.
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

// Package jobmetrics holds the Prometheus collectors shared by the ledger's
// background jobs.
package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Run statuses reported on ledger_jobs_total.
const (
	StatusSuccess   = "success"
	StatusRetry     = "retry"
	StatusAbandoned = "abandoned"
)

// Metrics counts job runs, their latency and the figures each job reports.
type Metrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	discrepancies *prometheus.GaugeVec
	assets        *prometheus.CounterVec
	now           func() time.Time
}

var (
	processOnce    sync.Once
	processMetrics *Metrics
)

// NewMetrics registers the collectors on reg. A nil reg shares one set on the
// process-wide default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg != nil {
		return register(reg)
	}
	processOnce.Do(func() { processMetrics = register(prometheus.DefaultRegisterer) })
	return processMetrics
}

// Observe runs fn as one execution of job and returns its error unchanged.
// Errors wrapping asynq.SkipRetry count as abandoned, others as retry.
func (m *Metrics) Observe(job string, fn func() error) error {
	if m == nil {
		return fn()
	}
	started := m.now()
	err := fn()
	m.latency.WithLabelValues(job).Observe(m.now().Sub(started).Seconds())
	m.runs.WithLabelValues(job, RunStatus(err)).Inc()
	if err != nil {
		m.failures.WithLabelValues(job).Inc()
	}
	return err
}

// RunStatus classifies a job result.
func RunStatus(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, asynq.SkipRetry):
		return StatusAbandoned
	default:
		return StatusRetry
	}
}

// SetDiscrepancies publishes the account mismatches the last integrity check
// found for an institution.
func (m *Metrics) SetDiscrepancies(institution string, count int) {
	if m != nil {
		m.discrepancies.WithLabelValues(institution).Set(float64(count))
	}
}

// AddDepreciation counts assets by outcome: "charged" or a skip reason.
func (m *Metrics) AddDepreciation(outcome string, count int) {
	if m != nil && count > 0 {
		m.assets.WithLabelValues(outcome).Add(float64(count))
	}
}

func register(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_jobs_total",
			Help: "Job executions by job and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_jobs_failures_total",
			Help: "Job executions that returned an error.",
		}, []string{"job"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_job_duration_seconds",
			Help:    "Job execution time.",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		discrepancies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_integrity_discrepancies",
			Help: "Accounts whose stored balance disagrees with the journal replay.",
		}, []string{"institution"}),
		assets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_depreciation_assets_total",
			Help: "Assets visited by scheduled depreciation by outcome.",
		}, []string{"outcome"}),
		now: time.Now,
	}
	reg.MustRegister(m.runs, m.failures, m.latency, m.discrepancies, m.assets)
	return m
}

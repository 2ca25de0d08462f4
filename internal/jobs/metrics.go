package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes recorded in the status label.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Metrics exposes Prometheus collectors for the regenerate and reconcile
// workers, partitioned by task type and the kind of record each run touched.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker times one task run for a single record kind.
type Tracker struct {
	metrics *Metrics
	job     string
	kind    string
	start   time.Time
}

// Track starts a tracker for task type job working on kind, e.g.
// ("document:regenerate", "invoice").
func (m *Metrics) Track(job, kind string) *Tracker {
	return &Tracker{metrics: m, job: job, kind: kind, start: time.Now()}
}

// End records duration and outcome, returning err untouched.
func (t *Tracker) End(err error) error {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	t.record(status)
	return err
}

// Skip records a run that had nothing to do, such as a document whose
// source record was deleted before the task ran.
func (t *Tracker) Skip() {
	t.record(StatusSkipped)
}

func (t *Tracker) record(status string) {
	if t == nil || t.metrics == nil || t.job == "" {
		return
	}
	if status == StatusFailure {
		t.metrics.failures.WithLabelValues(t.job, t.kind).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, t.kind, status).Inc()
	t.metrics.duration.WithLabelValues(t.job, t.kind).Observe(time.Since(t.start).Seconds())
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_jobs_total",
		Help: "Total job executions partitioned by task type, record kind and status.",
	}, []string{"job", "kind", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job", "kind"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job", "kind"})
	registerer.MustRegister(runs, failures, duration)
	return &Metrics{runs: runs, failures: failures, duration: duration}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cron run results.
const (
	RunOK         = "ok"
	RunFailed     = "failed"
	RunSkipped    = "skipped"
	RunLeaseError = "lease_error"
)

// CronJobMetrics records scheduled job outcomes by job and result.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// NewCronJobMetrics registers on reg; a nil registerer yields a no-op recorder.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_runs_total",
			Help: "Cron job runs by job and result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cron_job_duration_seconds",
			Help:    "Wall time of cron jobs that acquired their lease.",
			Buckets: []float64{.05, .25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess)
	return m
}

// Finished records a run that held the lease.
func (c *CronJobMetrics) Finished(job string, elapsed time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	if err != nil {
		c.runs.WithLabelValues(job, RunFailed).Inc()
		return
	}
	c.runs.WithLabelValues(job, RunOK).Inc()
	c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

// NotRun records a run that never started; result is RunSkipped or RunLeaseError.
func (c *CronJobMetrics) NotRun(job, result string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), result).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

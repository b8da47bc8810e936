package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job run results.
const (
	JobOK      = "ok"
	JobError   = "error"
	JobSkipped = "skipped"
)

// JobMetrics counts scheduled job runs by result and times the ones that executed.
type JobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	m := &JobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by result (ok, error, skipped).",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of scheduled jobs that held their lock.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration)
	return m
}

// Ran records an executed job. A non-nil err counts as an error result.
func (m *JobMetrics) Ran(job string, took time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	result := JobOK
	if err != nil {
		result = JobError
	}
	m.runs.WithLabelValues(normalizeLabel(job), result).Inc()
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(took.Seconds())
}

// Result counts a run that never executed the job body, such as a lost lock race.
func (m *JobMetrics) Result(job, result string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(job), normalizeLabel(result)).Inc()
}

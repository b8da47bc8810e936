package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox relay outcomes.
const (
	RelayPublished = "published"
	RelayRetry     = "retry"
	RelayParked    = "parked"
)

// RelayMetrics tracks the outbox publisher.
type RelayMetrics struct {
	outcomes *prometheus.CounterVec
	batches  prometheus.Histogram
	lag      prometheus.Gauge
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	m := &RelayMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox rows handled by the relay, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		batches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_duration_seconds",
			Help:      "Time to claim, publish and mark one batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		lag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "oldest_claimed_age_seconds",
			Help:      "Age of the oldest row in the last claimed batch.",
		}),
	}
	reg.MustRegister(m.outcomes, m.batches, m.lag)
	return m
}

func (m *RelayMetrics) Outcome(eventType, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// Batch records one relay pass. oldest is the creation time of the first claimed row and
// is ignored when zero.
func (m *RelayMetrics) Batch(took time.Duration, oldest time.Time) {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Observe(took.Seconds())
	if !oldest.IsZero() {
		m.lag.Set(time.Since(oldest).Seconds())
	}
}

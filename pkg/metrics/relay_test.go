package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRelayMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRelayMetrics(reg)

	m.Outcome("payment_completed", RelayPublished)
	m.Outcome("payment_completed", RelayPublished)
	m.Outcome("certificate_issued", RelayParked)
	m.Batch(40*time.Millisecond, time.Now().Add(-time.Minute))

	published := sample(t, reg, "learnhub_outbox_events_total", map[string]string{"event_type": "payment_completed", "outcome": RelayPublished})
	require.Equal(t, 2.0, published.GetCounter().GetValue())
	parked := sample(t, reg, "learnhub_outbox_events_total", map[string]string{"event_type": "certificate_issued", "outcome": RelayParked})
	require.Equal(t, 1.0, parked.GetCounter().GetValue())

	lag := sample(t, reg, "learnhub_outbox_oldest_claimed_age_seconds", nil)
	require.GreaterOrEqual(t, lag.GetGauge().GetValue(), 60.0)
	batches := sample(t, reg, "learnhub_outbox_batch_duration_seconds", nil)
	require.EqualValues(t, 1, batches.GetHistogram().GetSampleCount())
}

func TestRelayMetricsNoop(t *testing.T) {
	var m *RelayMetrics
	m.Outcome("x", RelayRetry)
	m.Batch(time.Second, time.Now())
	NewRelayMetrics(nil).Batch(time.Second, time.Time{})
}

package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

type fakeExpirer struct {
	results []int
	err     error
	calls   int
	ttl     time.Duration
	limit   int
}

func (f *fakeExpirer) ExpireStale(_ context.Context, olderThan time.Duration, limit int) (int, error) {
	f.ttl, f.limit = olderThan, limit
	idx := f.calls
	f.calls++
	if idx >= len(f.results) {
		return 0, f.err
	}
	return f.results[idx], f.err
}

func newPaymentExpiryJob(t *testing.T, expirer *fakeExpirer, batch int) Job {
	t.Helper()
	job, err := NewPaymentExpiryJob(PaymentExpiryJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Payments:   expirer,
		PendingTTL: 30 * time.Minute,
		BatchSize:  batch,
	})
	require.NoError(t, err)
	return job
}

func TestPaymentExpiryJobDrainsFullBatches(t *testing.T) {
	expirer := &fakeExpirer{results: []int{2, 2, 1}}
	job := newPaymentExpiryJob(t, expirer, 2)

	require.Equal(t, "payment-expiry", job.Name())
	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 3, expirer.calls)
	require.Equal(t, 30*time.Minute, expirer.ttl)
	require.Equal(t, 2, expirer.limit)
}

func TestPaymentExpiryJobStopsOnError(t *testing.T) {
	expirer := &fakeExpirer{results: []int{1}, err: errors.New("db down")}
	job := newPaymentExpiryJob(t, expirer, 5)

	require.Error(t, job.Run(context.Background()))
	require.Equal(t, 1, expirer.calls)
}

func TestPaymentExpiryJobRequiresTTL(t *testing.T) {
	_, err := NewPaymentExpiryJob(PaymentExpiryJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Payments: &fakeExpirer{},
	})
	require.Error(t, err)
}

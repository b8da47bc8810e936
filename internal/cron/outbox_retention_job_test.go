package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

type pruneCall struct {
	cutoff time.Time
	limit  int
}

type scriptedPruner struct {
	results []int64
	err     error
	calls   []pruneCall
}

func (p *scriptedPruner) PrunePublished(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	p.calls = append(p.calls, pruneCall{cutoff: cutoff, limit: limit})
	if p.err != nil {
		return 0, p.err
	}
	if len(p.results) == 0 {
		return 0, nil
	}
	n := p.results[0]
	p.results = p.results[1:]
	return n, nil
}

func retentionJob(t *testing.T, pruner *scriptedPruner, retention time.Duration, batch int) *outboxRetentionJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Outbox:    pruner,
		Retention: retention,
		BatchSize: batch,
	})
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionDefaults(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	pruner := &scriptedPruner{}
	job := retentionJob(t, pruner, 0, 0)
	job.clock = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, pruner.calls, 1)
	require.Equal(t, now.Add(-30*24*time.Hour), pruner.calls[0].cutoff)
	require.Equal(t, defaultPruneBatch, pruner.calls[0].limit)
}

func TestOutboxRetentionDrainsFullBatches(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	pruner := &scriptedPruner{results: []int64{10, 10, 3}}
	job := retentionJob(t, pruner, 7*24*time.Hour, 10)
	job.clock = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, pruner.calls, 3)
	for _, call := range pruner.calls {
		require.Equal(t, now.AddDate(0, 0, -7), call.cutoff)
	}
}

func TestOutboxRetentionSurfacesErrors(t *testing.T) {
	pruner := &scriptedPruner{err: errors.New("boom")}
	err := retentionJob(t, pruner, time.Hour, 5).Run(context.Background())
	require.ErrorContains(t, err, "boom")
}

func TestOutboxRetentionStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pruner := &scriptedPruner{}
	err := retentionJob(t, pruner, time.Hour, 5).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, pruner.calls)
}

func TestOutboxRetentionRequiresDeps(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Outbox: &scriptedPruner{}})
	require.Error(t, err)
	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.New(logger.Options{})})
	require.Error(t, err)
}

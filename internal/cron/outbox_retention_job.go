package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

const (
	defaultRetention  = 30 * 24 * time.Hour
	defaultPruneBatch = 500
)

type outboxPruner interface {
	PrunePublished(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger    *logger.Logger
	Outbox    outboxPruner
	Retention time.Duration
	BatchSize int
}

// NewOutboxRetentionJob deletes delivered outbox rows once they are older than Retention.
// Pending and parked rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Outbox == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:      params.Logger,
		outbox:    params.Outbox,
		retention: params.Retention,
		batch:     params.BatchSize,
		clock:     time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultRetention
	}
	if job.batch <= 0 {
		job.batch = defaultPruneBatch
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	outbox    outboxPruner
	retention time.Duration
	batch     int
	clock     func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run prunes in batches so a large backlog never holds one long delete.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.clock().UTC().Add(-j.retention)
	var pruned int64
	for batches := 0; ; batches++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.outbox.PrunePublished(ctx, cutoff, j.batch)
		pruned += n
		if err != nil {
			return fmt.Errorf("prune outbox after %d rows: %w", pruned, err)
		}
		if n < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff.Format(time.RFC3339),
		"retain":  j.retention.String(),
		"deleted": pruned,
	}), "outbox retention complete")
	return nil
}

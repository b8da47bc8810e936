package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

const defaultExpiryBatch = 100

type paymentExpirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type PaymentExpiryJobParams struct {
	Logger     *logger.Logger
	Payments   paymentExpirer
	PendingTTL time.Duration
	BatchSize  int
}

// NewPaymentExpiryJob cancels checkouts that stayed pending longer than PendingTTL.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment service required")
	}
	if params.PendingTTL <= 0 {
		return nil, fmt.Errorf("pending ttl must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &paymentExpiryJob{
		logg:     params.Logger,
		payments: params.Payments,
		ttl:      params.PendingTTL,
		batch:    batch,
	}, nil
}

type paymentExpiryJob struct {
	logg     *logger.Logger
	payments paymentExpirer
	ttl      time.Duration
	batch    int
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

// Run drains stale payments one batch at a time until a short batch signals the backlog is gone.
func (j *paymentExpiryJob) Run(ctx context.Context) error {
	total := 0
	for {
		expired, err := j.payments.ExpireStale(ctx, j.ttl, j.batch)
		total += expired
		if err != nil {
			return fmt.Errorf("expire stale payments: %w", err)
		}
		if expired < j.batch || ctx.Err() != nil {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"pending_ttl": j.ttl.String(),
		"expired":     total,
	})
	j.logg.Info(logCtx, "payment expiry complete")
	return nil
}

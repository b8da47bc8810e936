package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/learnhub-backend/internal/bootstrap"
	"github.com/angelmondragon/learnhub-backend/internal/cron"
	"github.com/angelmondragon/learnhub-backend/internal/wiring"
	"github.com/angelmondragon/learnhub-backend/pkg/config"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	"github.com/angelmondragon/learnhub-backend/pkg/metrics"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox"
)

func main() {
	cfg, logg, err := bootstrap.Load("cron-worker")
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	ctx, stop := bootstrap.SignalContext(cfg, logg)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	stores, err := bootstrap.OpenStores(ctx, cfg, logg, true)
	if err != nil {
		return err
	}
	defer stores.Close(ctx)

	services, err := wiring.Build(wiring.Params{
		Config:   cfg,
		Logger:   logg,
		DB:       stores.DB,
		Cache:    stores.Redis,
		Registry: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	jobs, err := buildJobs(cfg, logg, stores, services)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(stores.Redis, cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,

		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	logg.Info(logg.WithField(ctx, "jobs", jobs.Names()), "starting cron worker")
	return scheduler.Run(ctx)
}

func buildJobs(cfg *config.Config, logg *logger.Logger, stores *bootstrap.Stores, services *wiring.Services) (*cron.Registry, error) {
	expiry, err := cron.NewPaymentExpiryJob(cron.PaymentExpiryJobParams{
		Logger:     logg,
		Payments:   services.Payments,
		PendingTTL: cfg.Payments.PendingTTL,
		BatchSize:  cfg.Payments.ExpiryBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("payment expiry job: %w", err)
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    logg,
		Outbox:    outbox.NewRepository(stores.DB.DB()),
		Retention: cfg.Outbox.Retention,
		BatchSize: cfg.Outbox.PruneBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	return cron.NewRegistry(expiry, retention)
}

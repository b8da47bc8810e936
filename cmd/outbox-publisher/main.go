package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/learnhub-backend/internal/bootstrap"
	"github.com/angelmondragon/learnhub-backend/internal/relay"
	"github.com/angelmondragon/learnhub-backend/pkg/config"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	"github.com/angelmondragon/learnhub-backend/pkg/metrics"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox/registry"
	"github.com/angelmondragon/learnhub-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	cfg, logg, err := bootstrap.Load(serviceKind)
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	ctx, stop := bootstrap.SignalContext(cfg, logg)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shut down")
}

// run owns every resource so deferred closes happen before main exits.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	stores, err := bootstrap.OpenStores(ctx, cfg, logg, false)
	if err != nil {
		return err
	}
	defer stores.Close(ctx)
	dbClient := stores.DB

	psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() {
		if err := psClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	routes, err := registry.New(cfg.PubSub.DomainTopic)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	relayer, err := relay.New(relay.Params{
		Logger:   logg,
		DB:       dbClient,
		Store:    outbox.NewRepository(dbClient.DB()),
		Registry: routes,
		Sink:     relay.NewPubSubSink(psClient),
		Metrics:  metrics.NewRelayMetrics(prometheus.DefaultRegisterer),
		Probes: []relay.Probe{
			{Name: "database", Check: dbClient.Ping},
			{Name: "pubsub", Check: psClient.Ping},
		},
		Options: relay.Options{
			BatchSize:      cfg.Outbox.BatchSize,
			MaxAttempts:    cfg.Outbox.MaxAttempts,
			PollInterval:   cfg.Outbox.PollInterval,
			PublishTimeout: cfg.Outbox.PublishTimeout,
		},
	})
	if err != nil {
		return fmt.Errorf("build relay: %w", err)
	}

	if cfg.Outbox.MetricsAddr != "" {
		srv := metricsServer(cfg.Outbox.MetricsAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "metrics listener failed", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logg.Info(logg.WithField(ctx, "topic", cfg.PubSub.DomainTopic), "starting outbox publisher")
	return relayer.Run(ctx)
}

func metricsServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
}

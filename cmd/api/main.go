package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/learnhub-backend/api/routes"
	"github.com/angelmondragon/learnhub-backend/internal/bootstrap"
	"github.com/angelmondragon/learnhub-backend/internal/wiring"
	"github.com/angelmondragon/learnhub-backend/pkg/config"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, logg, err := bootstrap.Load("api")
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	ctx, stop := bootstrap.SignalContext(cfg, logg)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down")
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

	server := &http.Server{
		Addr: listenAddr(cfg),
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Enrollments:  services.Enrollments,
			Payments:     services.Payments,
			Progress:     services.Progress,
			Certificates: services.Certificates,
			DB:           stores.DB,
			Redis:        stores.Redis,
			Idempotency:  stores.Redis,
			Metrics:      promhttp.Handler(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	served := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting api server")
		served <- server.ListenAndServe()
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "draining api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// listenAddr prefers the platform-provided PORT over LEARNHUB_APP_PORT.
func listenAddr(cfg *config.Config) string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":" + cfg.App.Port
}

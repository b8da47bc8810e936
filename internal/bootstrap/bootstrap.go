// Package bootstrap holds the start-up steps shared by every binary under cmd/.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/learnhub-backend/pkg/config"
	"github.com/angelmondragon/learnhub-backend/pkg/db"
	"github.com/angelmondragon/learnhub-backend/pkg/instance"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	"github.com/angelmondragon/learnhub-backend/pkg/migrate"
	"github.com/angelmondragon/learnhub-backend/pkg/redis"
)

// Load reads an optional .env file, parses config, and returns a logger leveled from it.
// The returned logger is usable even when err is non-nil.
func Load(kind string) (*config.Config, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		logg.Debug(context.Background(), "no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, logg, err
	}
	cfg.Service.Kind = kind

	return cfg, logger.New(logger.Options{
		ServiceName: kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	}), nil
}

// SignalContext is cancelled on SIGINT or SIGTERM and carries the fields every log line shares.
func SignalContext(cfg *config.Config, logg *logger.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"instance":    instance.GetID(),
		"serviceKind": cfg.Service.Kind,
	}), stop
}

// Stores are the connections a binary opened. Close releases them newest first.
type Stores struct {
	DB    *db.Client
	Redis *redis.Client

	logg    *logger.Logger
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// OpenStores connects the database, applies dev migrations, and connects redis when withRedis is set.
// Anything opened before a failure is closed before returning.
func OpenStores(ctx context.Context, cfg *config.Config, logg *logger.Logger, withRedis bool) (_ *Stores, err error) {
	s := &Stores{logg: logg}
	defer func() {
		if err != nil {
			s.Close(ctx)
		}
	}()

	if s.DB, err = db.New(ctx, cfg.DB, logg); err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	s.closers = append(s.closers, namedCloser{"database", s.DB.Close})

	if err = migrate.MaybeRunDev(ctx, cfg, logg, s.DB); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}

	if withRedis {
		if s.Redis, err = redis.New(ctx, cfg.Redis, logg); err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		s.closers = append(s.closers, namedCloser{"redis", s.Redis.Close})
	}
	return s, nil
}

func (s *Stores) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.close(); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "store", c.name), "error closing store", err)
		}
	}
	s.closers = nil
}

package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/learnhub-backend/pkg/config"
	"github.com/angelmondragon/learnhub-backend/pkg/db"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations on startup, only in dev with LEARNHUB_AUTO_MIGRATE set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	migrator, err := New(sqlDB, cfg.DB.Driver)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"driver": cfg.DB.Driver, "dialect": Dialect(cfg.DB.Driver)})
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("dev auto-migrate: %w", err)
	}
	version, err := migrator.Version(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "dev migrations applied")
	return nil
}

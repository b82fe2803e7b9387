package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

// MaybeRunDev brings the schema up to date at boot, but only in dev with
// STOREFRONT_AUTO_MIGRATE on. Everywhere else the migrate CLI owns schema
// changes.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithField(ctx, "driver", client.DB().Dialector.Name())
	if cfg.DB.IsSQLite() {
		return syncModels(ctx, logg, client)
	}
	return applyEmbedded(ctx, logg, client)
}

// syncModels covers sqlite, which the goose files (Postgres DDL) cannot.
func syncModels(ctx context.Context, logg *logger.Logger, client *db.Client) error {
	if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("sqlite automigrate: %w", err)
	}
	logg.Info(ctx, "sqlite schema synced from models")
	return nil
}

func applyEmbedded(ctx context.Context, logg *logger.Logger, client *db.Client) error {
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	fsys, err := Source("")
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, fsys)
	if err != nil {
		return err
	}
	applied, err := runner.Up(ctx)
	if err != nil {
		return fmt.Errorf("dev auto-migrate: %w", err)
	}
	logg.Info(logg.WithField(ctx, "applied", len(applied)), "goose migrations applied")
	return nil
}

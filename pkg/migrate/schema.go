package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/licensedesk/pkg/config"
	"github.com/angelmondragon/licensedesk/pkg/db"
	"github.com/angelmondragon/licensedesk/pkg/db/models"
	"github.com/angelmondragon/licensedesk/pkg/logger"
)

// EnsureSchema prepares the schema at process start. SQLite databases are
// auto-migrated from the models; Postgres runs goose up only in dev with the
// auto-migrate flag on.
func EnsureSchema(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client.Driver() == config.DBDriverSQLite {
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migrating sqlite schema: %w", err)
		}
		logg.Info(ctx, "sqlite schema ready")
		return nil
	}

	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	runner, err := runnerFor(client, "")
	if err != nil {
		return err
	}
	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "applied": applied}), "goose migrations completed (dev auto-run)")
	return nil
}

func runnerFor(client *db.Client, dir string) (*Runner, error) {
	sqlDB, err := client.SQL()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	return NewRunner(sqlDB, dir)
}

// ResetSchema drops every managed table and recreates it empty.
func ResetSchema(ctx context.Context, client *db.Client, dir string) error {
	if client.Driver() == config.DBDriverSQLite {
		migrator := client.DB().WithContext(ctx).Migrator()
		all := models.All()
		for i := len(all) - 1; i >= 0; i-- {
			if err := migrator.DropTable(all[i]); err != nil {
				return fmt.Errorf("dropping table: %w", err)
			}
		}
		if err := client.DB().WithContext(ctx).AutoMigrate(all...); err != nil {
			return fmt.Errorf("recreating schema: %w", err)
		}
		return nil
	}

	runner, err := runnerFor(client, dir)
	if err != nil {
		return err
	}
	return runner.Reset(ctx)
}

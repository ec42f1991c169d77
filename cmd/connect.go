package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/config"
	"github.com/fiscal-tracker/fiscal-engine/pkg/database"
	"github.com/fiscal-tracker/fiscal-engine/pkg/retry"
)

// connectDatabase opens the pool, retrying while Postgres starts up.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	dbCfg := &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
		MinConnections: cfg.Database.MaxIdleConns,
	}

	attempt := 0
	db, err := retry.DoWithResult(ctx, retry.StartupConfig(), func() (*database.DB, error) {
		attempt++
		db, err := database.NewConnection(ctx, dbCfg)
		if err != nil {
			logger.Warn("Database not ready",
				zap.Int("attempt", attempt),
				zap.String("host", cfg.Database.Host),
				zap.Error(err))
		}
		return db, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Database))
	return db, nil
}

// migrateUp applies pending schema migrations through a short-lived
// database/sql handle.
func migrateUp(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := database.OpenSQL(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, migrationsFS(), logger)
}

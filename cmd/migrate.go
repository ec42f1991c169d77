package cmd

import (
	"io/fs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/migrations"
	"github.com/fiscal-tracker/fiscal-engine/pkg/database"
)

var flagMigrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back applied migrations",
	RunE:  runMigrateDown,
}

func init() {
	migrateDownCmd.Flags().IntVar(&flagMigrateSteps, "steps", 1, "Number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

func migrationsFS() fs.FS {
	return migrations.FS
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	return migrateUp(cfg, logger)
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	sqlDB, err := database.OpenSQL(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	logger.Info("Rolling back migrations", zap.Int("steps", flagMigrateSteps))
	return database.RollbackMigrations(sqlDB, migrationsFS(), flagMigrateSteps, logger)
}

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/audit"
	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/database"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/repositories"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

var (
	flagSeedLocations  string
	flagSeedAdminLogin string
	flagSeedAdminName  string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the location hierarchy and create the first admin account",
	Long: `Loads districts, tehsils and villages from a YAML file and, when
--admin-login is given, creates an admin account whose password is read
from FISCAL_ADMIN_PASSWORD. Safe to run repeatedly.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&flagSeedLocations, "locations", "", "YAML file with the district/tehsil/village hierarchy")
	seedCmd.Flags().StringVar(&flagSeedAdminLogin, "admin-login", "", "Login id of the admin account to create")
	seedCmd.Flags().StringVar(&flagSeedAdminName, "admin-name", "Administrator", "Display name of the admin account")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if flagSeedLocations == "" && flagSeedAdminLogin == "" {
		return fmt.Errorf("nothing to seed: pass --locations and/or --admin-login")
	}

	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	db, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	scopedCtx, release, err := database.NewScopeProvider(db).WithScope(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer release()

	if flagSeedLocations != "" {
		f, err := os.Open(flagSeedLocations)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", flagSeedLocations, err)
		}
		defer f.Close()

		stats, err := services.NewLocationService(repositories.NewLocationRepository(), logger).Seed(scopedCtx, f)
		if err != nil {
			return err
		}
		logger.Info("Seeded locations",
			zap.Int("districts", stats.Districts),
			zap.Int("tehsils", stats.Tehsils),
			zap.Int("villages", stats.Villages))
	}

	if flagSeedAdminLogin != "" {
		password := os.Getenv("FISCAL_ADMIN_PASSWORD")
		if password == "" {
			return fmt.Errorf("FISCAL_ADMIN_PASSWORD must be set to create the admin account")
		}

		tokens := auth.NewTokenManager(cfg.Auth.SessionSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		users := services.NewUserService(repositories.NewUserRepository(), tokens, audit.NewSecurityAuditor(logger), cfg.Auth.BcryptCost, logger)
		user, err := users.Create(scopedCtx, models.RoleAdmin, &services.CreateUserInput{
			LoginID:     flagSeedAdminLogin,
			DisplayName: flagSeedAdminName,
			Password:    password,
			Role:        models.RoleAdmin,
		})
		switch {
		case errors.Is(err, apperrors.ErrConflict):
			logger.Info("Admin account already exists", zap.String("login_id", flagSeedAdminLogin))
		case err != nil:
			return err
		default:
			logger.Info("Created admin account",
				zap.String("login_id", user.LoginID),
				zap.String("user_id", user.ID.String()))
		}
	}
	return nil
}

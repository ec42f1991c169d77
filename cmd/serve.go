package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fiscal-tracker/fiscal-engine/pkg/audit"
	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/cache"
	"github.com/fiscal-tracker/fiscal-engine/pkg/config"
	"github.com/fiscal-tracker/fiscal-engine/pkg/database"
	"github.com/fiscal-tracker/fiscal-engine/pkg/handlers"
	"github.com/fiscal-tracker/fiscal-engine/pkg/middleware"
	"github.com/fiscal-tracker/fiscal-engine/pkg/repositories"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

var flagSkipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the notification dispatcher",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&flagSkipMigrations, "skip-migrations", false, "Do not apply pending migrations on startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Starting fiscal-engine",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.Bool("allow_escalation", cfg.Workflow.AllowEscalation),
		zap.Bool("enforce_jurisdiction", cfg.Workflow.EnforceJurisdiction))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !flagSkipMigrations {
		if err := migrateUp(cfg, logger); err != nil {
			return err
		}
	}

	db, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	objects, err := database.NewObjectStoreClient(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to set up object storage: %w", err)
	}

	app := buildApp(cfg, db, redisClient, objects, logger)

	srv := &http.Server{
		Addr: cfg.ListenAddr(),
		Handler: middleware.Chain(app.mux,
			middleware.RequestID,
			middleware.Recoverer(logger),
			middleware.RequestLogger(logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The dispatcher outlives the HTTP server so notifications queued by the
	// last in-flight requests are still delivered.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		stopDispatch()
		return err
	})
	g.Go(func() error {
		return app.dispatcher.Run(dispatchCtx)
	})

	err = g.Wait()
	logger.Info("Server exited",
		zap.Int64("notifications_dropped", app.dispatcher.Dropped()),
		zap.Int64("degraded_writes", app.auditor.DegradedCount()))
	return err
}

type app struct {
	mux        *http.ServeMux
	dispatcher services.NotificationDispatcher
	auditor    *audit.SecurityAuditor
}

// buildApp wires repositories, services and handlers onto a mux.
// redisClient and objects may be nil.
func buildApp(cfg *config.Config, db *database.DB, redisClient *redis.Client, objects *minio.Client, logger *zap.Logger) *app {
	projectRepo := repositories.NewProjectRepository()
	workflowRepo := repositories.NewWorkflowRepository()
	historyRepo := repositories.NewHistoryRepository()
	notificationRepo := repositories.NewNotificationRepository()
	userRepo := repositories.NewUserRepository()
	grievanceRepo := repositories.NewGrievanceRepository()
	locationRepo := repositories.NewLocationRepository()
	auditRepo := repositories.NewAuditRepository()
	transactionRepo := repositories.NewTransactionRepository()

	auditor := audit.NewSecurityAuditor(logger)
	readCache := cache.New(redisClient, cfg.Redis.TTL, logger)
	dispatcher := services.NewNotificationDispatcher(notificationRepo, database.NewScopeProvider(db), cfg.Workflow, logger)

	tokens := auth.NewTokenManager(cfg.Auth.SessionSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	sessions := auth.NewSessionStore(cfg.Auth.SessionSecret, cfg.Auth.CookieName, cfg.Auth.TokenTTL, cfg.Auth.CookieSecure)
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(tokens, sessions, logger), logger)

	var presigner services.ObjectPresigner
	if objects != nil {
		presigner = objects
	}

	projectService := services.NewProjectService(projectRepo, locationRepo, readCache, logger)
	approvalService := services.NewApprovalService(workflowRepo, projectRepo, historyRepo, readCache, dispatcher, auditor, cfg.Workflow, logger)
	userService := services.NewUserService(userRepo, tokens, auditor, cfg.Auth.BcryptCost, logger)
	grievanceService := services.NewGrievanceService(grievanceRepo, userRepo, locationRepo, dispatcher, auditor, cfg.Grievances, logger)
	locationService := services.NewLocationService(locationRepo, logger)
	notificationService := services.NewNotificationService(notificationRepo, logger)
	reportService := services.NewReportService(projectRepo, logger)
	attachmentService := services.NewAttachmentService(presigner, cfg.Storage, logger)
	auditTrailService := services.NewAuditTrailService(auditRepo)
	transactionService := services.NewTransactionService(transactionRepo, logger)

	checks := map[string]handlers.HealthCheck{
		"postgres": func(ctx context.Context) error { return db.Ping(ctx) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if objects != nil {
		checks["object_store"] = func(ctx context.Context) error {
			_, err := objects.BucketExists(ctx, cfg.Storage.Bucket)
			return err
		}
	}

	mux := http.NewServeMux()
	scope := handlers.ScopeMiddleware(database.WithScope(db, logger))

	handlers.NewHealthHandler(cfg, checks, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(userService, sessions, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewUsersHandler(userService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewProjectsHandler(projectService, approvalService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewGrievancesHandler(grievanceService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewNotificationsHandler(notificationService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewLocationsHandler(locationService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewReportsHandler(reportService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewAttachmentsHandler(attachmentService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewAuditHandler(auditTrailService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewTransactionsHandler(transactionService, logger).RegisterRoutes(mux, authMiddleware, scope)

	return &app{mux: mux, dispatcher: dispatcher, auditor: auditor}
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/config"
	"github.com/fiscal-tracker/fiscal-engine/pkg/database"
	"github.com/fiscal-tracker/fiscal-engine/pkg/logging"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/repositories"
	"github.com/fiscal-tracker/fiscal-engine/pkg/retry"
)

// Notifier accepts notifications for delivery after the caller's work has
// committed. Implementations must not block and must not fail the caller.
type Notifier interface {
	NotifyRole(notice *models.RoleNotice)
	NotifyUser(notice *models.UserNotice)
}

// NotificationDispatcher delivers notifications from a bounded in-process
// queue. Run must be started for anything to be delivered.
type NotificationDispatcher interface {
	Notifier
	// Run delivers queued notifications until ctx is done, then drains what
	// is left under a short deadline.
	Run(ctx context.Context) error
	// Dropped returns how many notifications were discarded because the
	// queue was full or delivery failed.
	Dropped() int64
}

type delivery struct {
	role *models.RoleNotice
	user *models.UserNotice
}

type notificationDispatcher struct {
	repo     repositories.NotificationRepository
	scopes   database.ScopeProvider
	queue    chan delivery
	retryCfg *retry.Config
	logger   *zap.Logger

	drainTimeout time.Duration

	mu      sync.Mutex
	dropped int64
}

// NewNotificationDispatcher creates a dispatcher sized by cfg.
func NewNotificationDispatcher(
	repo repositories.NotificationRepository,
	scopes database.ScopeProvider,
	cfg config.WorkflowConfig,
	logger *zap.Logger,
) NotificationDispatcher {
	size := cfg.NotificationQueueSize
	if size <= 0 {
		size = 1
	}
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.NotificationMaxRetries
	if cfg.NotificationBackoff > 0 {
		retryCfg.InitialDelay = cfg.NotificationBackoff
	}

	return &notificationDispatcher{
		repo:         repo,
		scopes:       scopes,
		queue:        make(chan delivery, size),
		retryCfg:     retryCfg,
		logger:       logger.Named("notifications"),
		drainTimeout: 5 * time.Second,
	}
}

var _ NotificationDispatcher = (*notificationDispatcher)(nil)

func (d *notificationDispatcher) NotifyRole(notice *models.RoleNotice) {
	d.enqueue(delivery{role: notice})
}

func (d *notificationDispatcher) NotifyUser(notice *models.UserNotice) {
	d.enqueue(delivery{user: notice})
}

func (d *notificationDispatcher) enqueue(item delivery) {
	select {
	case d.queue <- item:
	default:
		d.drop()
		d.logger.Warn("Notification queue full, dropping notification", item.fields()...)
	}
}

func (d *notificationDispatcher) Run(ctx context.Context) error {
	for {
		select {
		case item := <-d.queue:
			d.deliver(ctx, item)
		case <-ctx.Done():
			d.drain()
			return nil
		}
	}
}

// drain delivers whatever is still queued using a fresh deadline, since the
// run context is already cancelled.
func (d *notificationDispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	for {
		select {
		case item := <-d.queue:
			if ctx.Err() != nil {
				d.drop()
				continue
			}
			d.deliver(ctx, item)
		default:
			return
		}
	}
}

func (d *notificationDispatcher) deliver(ctx context.Context, item delivery) {
	err := retry.DoIfRetryable(ctx, d.retryCfg, func() error {
		scoped, cleanup, err := d.scopes.WithScope(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if item.role != nil {
			n, err := d.repo.CreateForRole(scoped, item.role)
			if err != nil {
				return err
			}
			if n == 0 {
				d.logger.Warn("No active users hold the notified role", item.fields()...)
			}
			return nil
		}
		return d.repo.Create(scoped, item.user)
	})
	if err != nil {
		d.drop()
		d.logger.Error("Failed to deliver notification",
			append(item.fields(), zap.String("error", logging.SanitizeError(err)))...)
	}
}

func (d *notificationDispatcher) drop() {
	d.mu.Lock()
	d.dropped++
	d.mu.Unlock()
}

func (d *notificationDispatcher) Dropped() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (item delivery) fields() []zap.Field {
	var fields []zap.Field
	var projectID *uuid.UUID
	if item.role != nil {
		fields = append(fields, zap.String("role", string(item.role.Role)), zap.String("title", item.role.Title))
		projectID = item.role.ProjectID
	}
	if item.user != nil {
		fields = append(fields, zap.String("user_id", item.user.UserID.String()), zap.String("title", item.user.Title))
		projectID = item.user.ProjectID
	}
	if projectID != nil {
		fields = append(fields, zap.String("project_id", projectID.String()))
	}
	return fields
}

// NotificationService reads and updates a user's notification inbox.
type NotificationService interface {
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
}

type notificationService struct {
	repo   repositories.NotificationRepository
	logger *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(repo repositories.NotificationRepository, logger *zap.Logger) NotificationService {
	return &notificationService{
		repo:   repo,
		logger: logger.Named("notification-service"),
	}
}

var _ NotificationService = (*notificationService)(nil)

func (s *notificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", apperrors.ErrValidation)
	}
	if limit <= 0 || limit > models.MaxPageLimit {
		limit = models.DefaultPageLimit
	}
	return s.repo.ListByUser(ctx, userID, unreadOnly, limit)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, notificationID)
}

package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

// NotificationRepository stores per-user inbox rows.
type NotificationRepository interface {
	// CreateForRole inserts one notification for every active holder of the
	// role and returns how many were written.
	CreateForRole(ctx context.Context, notice *models.RoleNotice) (int, error)
	Create(ctx context.Context, notice *models.UserNotice) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error)
	// MarkRead flags a notification as read. Only the owner may do so; any
	// other id is ErrNotFound.
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
}

type notificationRepository struct{}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository() NotificationRepository {
	return &notificationRepository{}
}

var _ NotificationRepository = (*notificationRepository)(nil)

func (r *notificationRepository) CreateForRole(ctx context.Context, notice *models.RoleNotice) (int, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := scope.Conn.Exec(ctx, `
		INSERT INTO notifications (user_id, title, message, notification_type, related_project_id)
		SELECT id, $2, $3, $4, $5
		FROM users
		WHERE role = $1 AND active`,
		notice.Role, notice.Title, notice.Message, notice.Type, notice.ProjectID)
	if err != nil {
		return 0, wrap("create role notifications", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *notificationRepository) Create(ctx context.Context, notice *models.UserNotice) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	_, err = scope.Conn.Exec(ctx, `
		INSERT INTO notifications (user_id, title, message, notification_type, related_project_id)
		VALUES ($1, $2, $3, $4, $5)`,
		notice.UserID, notice.Title, notice.Message, notice.Type, notice.ProjectID)
	if err != nil {
		return wrap("create notification", err)
	}
	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > models.MaxPageLimit {
		limit = models.DefaultPageLimit
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, user_id, title, message, notification_type, related_project_id, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $3`, userID, unreadOnly, limit)
	if err != nil {
		return nil, wrap("list notifications", err)
	}
	defer rows.Close()

	notifications := []*models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type,
			&n.RelatedProjectID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate notifications", err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	tag, err := scope.Conn.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return wrap("mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

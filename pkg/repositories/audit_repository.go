package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

// AuditRepository provides data access for the audit log of changes made
// outside the approval workflow.
type AuditRepository interface {
	// Create inserts a new audit log entry.
	Create(ctx context.Context, entry *models.AuditLogEntry) error

	// GetByEntity returns all audit log entries for a specific entity, oldest first.
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLogEntry, error)
}

type auditRepository struct{}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository() AuditRepository {
	return &auditRepository{}
}

var _ AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}
	return insertAudit(ctx, scope.Conn, entry)
}

// insertAudit writes entry through q, which may be a transaction.
func insertAudit(ctx context.Context, q querier, entry *models.AuditLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	var newValues []byte
	if len(entry.NewValues) > 0 {
		var err error
		newValues, err = json.Marshal(entry.NewValues)
		if err != nil {
			return fmt.Errorf("failed to marshal new_values: %w", err)
		}
	}

	_, err := q.Exec(ctx, `
		INSERT INTO audit_log (id, user_id, action, entity_type, entity_id, new_values, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		newValues,
		entry.CreatedAt,
	)
	if err != nil {
		return wrap("create audit log entry", err)
	}
	return nil
}

func (r *auditRepository) GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLogEntry, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, user_id, action, entity_type, entity_id, new_values, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at ASC`, entityType, entityID)
	if err != nil {
		return nil, wrap("query audit log", err)
	}
	defer rows.Close()

	var entries []*models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		var newValues []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &newValues, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
		}
		if len(newValues) > 0 {
			if err := json.Unmarshal(newValues, &e.NewValues); err != nil {
				return nil, fmt.Errorf("failed to unmarshal new_values: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate audit log", err)
	}
	return entries, nil
}

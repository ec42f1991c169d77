package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

// GrievanceRepository defines data access for citizen grievances.
type GrievanceRepository interface {
	Create(ctx context.Context, g *models.Grievance, audit *models.AuditLogEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.Grievance, error)
	List(ctx context.Context, filter models.GrievanceFilter) ([]*models.Grievance, error)
	// UpdateStatus locks the grievance, checks that the status change is
	// allowed and writes it with an audit entry. A disallowed change is
	// ErrValidation.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.GrievanceStatus, assignedTo *uuid.UUID, audit *models.AuditLogEntry) (*models.Grievance, error)
}

type grievanceRepository struct{}

// NewGrievanceRepository creates a new GrievanceRepository.
func NewGrievanceRepository() GrievanceRepository {
	return &grievanceRepository{}
}

var _ GrievanceRepository = (*grievanceRepository)(nil)

const grievanceColumns = `id, grievance_code, user_id, project_id, name, COALESCE(email, ''), COALESCE(phone, ''),
	district_id, tehsil_id, village_id, title, message, attachment_ref,
	status, priority, assigned_to, created_at, updated_at`

func scanGrievance(row pgx.Row) (*models.Grievance, error) {
	var g models.Grievance
	err := row.Scan(&g.ID, &g.Code, &g.UserID, &g.ProjectID, &g.Name, &g.Email, &g.Phone,
		&g.DistrictID, &g.TehsilID, &g.VillageID, &g.Title, &g.Message, &g.AttachmentRef,
		&g.Status, &g.Priority, &g.AssignedTo, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *grievanceRepository) Create(ctx context.Context, g *models.Grievance, audit *models.AuditLogEntry) (err error) {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return wrap("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO grievances (
			id, grievance_code, user_id, project_id, name, email, phone,
			district_id, tehsil_id, village_id, title, message, attachment_ref,
			status, priority, assigned_to, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)`,
		g.ID, g.Code, g.UserID, g.ProjectID, g.Name, nullIfEmpty(g.Email), nullIfEmpty(g.Phone),
		g.DistrictID, g.TehsilID, g.VillageID, g.Title, g.Message, g.AttachmentRef,
		g.Status, g.Priority, g.AssignedTo, now,
	)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return fmt.Errorf("%w: grievance code %s already exists", apperrors.ErrConflict, g.Code)
		case pgFKViolation:
			return fmt.Errorf("%w: unknown project or location", apperrors.ErrValidation)
		}
		return wrap("create grievance", err)
	}

	if audit != nil {
		audit.EntityID = g.ID
		if err = insertAudit(ctx, tx, audit); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return wrap("commit transaction", err)
	}
	return nil
}

func (r *grievanceRepository) Get(ctx context.Context, id uuid.UUID) (*models.Grievance, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	g, err := scanGrievance(scope.Conn.QueryRow(ctx, `SELECT `+grievanceColumns+` FROM grievances WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, wrap("get grievance", err)
	}
	return g, nil
}

func (r *grievanceRepository) List(ctx context.Context, filter models.GrievanceFilter) ([]*models.Grievance, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Limit <= 0 || filter.Limit > models.MaxGrievanceListLimit {
		filter.Limit = models.MaxGrievanceListLimit
	}

	var conds []string
	var args []any
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.DistrictID != nil {
		args = append(args, *filter.DistrictID)
		conds = append(conds, fmt.Sprintf("district_id = $%d", len(args)))
	}
	if filter.VillageID != nil {
		args = append(args, *filter.VillageID)
		conds = append(conds, fmt.Sprintf("village_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit)

	rows, err := scope.Conn.Query(ctx, fmt.Sprintf(`SELECT %s FROM grievances%s ORDER BY created_at DESC LIMIT $%d`,
		grievanceColumns, where, len(args)), args...)
	if err != nil {
		return nil, wrap("list grievances", err)
	}
	defer rows.Close()

	grievances := []*models.Grievance{}
	for rows.Next() {
		g, err := scanGrievance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grievance: %w", err)
		}
		grievances = append(grievances, g)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate grievances", err)
	}
	return grievances, nil
}

func (r *grievanceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.GrievanceStatus, assignedTo *uuid.UUID, audit *models.AuditLogEntry) (_ *models.Grievance, err error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, wrap("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var current models.GrievanceStatus
	err = tx.QueryRow(ctx, `SELECT status FROM grievances WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, wrap("lock grievance", err)
	}
	if !current.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: grievance cannot move from %s to %s", apperrors.ErrValidation, current, status)
	}

	g, err := scanGrievance(tx.QueryRow(ctx, `
		UPDATE grievances
		SET status = $2, assigned_to = COALESCE($3, assigned_to), updated_at = NOW()
		WHERE id = $1
		RETURNING `+grievanceColumns, id, status, assignedTo))
	if err != nil {
		return nil, wrap("update grievance status", err)
	}

	if audit != nil {
		audit.EntityID = id
		if err = insertAudit(ctx, tx, audit); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, wrap("commit transaction", err)
	}
	return g, nil
}

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

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	// CreateWithWorkflow inserts the project, its initial workflow and an
	// audit entry in one transaction. A duplicate project code is ErrConflict.
	CreateWithWorkflow(ctx context.Context, project *models.Project, wf *models.Workflow, audit *models.AuditLogEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	List(ctx context.Context, filter models.ProjectFilter) ([]*models.Project, int, error)
	// UpdateBudget locks the project row, checks the budget ordering against
	// the stored total and writes allocated/utilized with an audit entry.
	UpdateBudget(ctx context.Context, id uuid.UUID, allocated, utilized int64, audit *models.AuditLogEntry) (*models.Project, error)
	Summary(ctx context.Context) (*models.BudgetSummary, error)
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct{}

// NewProjectRepository creates a new project repository.
func NewProjectRepository() ProjectRepository {
	return &projectRepository{}
}

var _ ProjectRepository = (*projectRepository)(nil)

const projectColumns = `
	p.id, p.project_code, p.project_name, p.description,
	p.village_id, p.tehsil_id, p.district_id,
	p.total_budget, p.allocated_budget, p.utilized_budget,
	p.status, p.created_by, p.created_at, p.updated_at,
	COALESCE(v.name, ''), COALESCE(d.name, '')`

const projectFrom = `
	FROM projects p
	LEFT JOIN villages v ON v.id = p.village_id
	LEFT JOIN districts d ON d.id = p.district_id`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Description,
		&p.VillageID, &p.TehsilID, &p.DistrictID,
		&p.Budget.Total, &p.Budget.Allocated, &p.Budget.Utilized,
		&p.Status, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
		&p.VillageName, &p.DistrictName,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepository) CreateWithWorkflow(ctx context.Context, project *models.Project, wf *models.Workflow, audit *models.AuditLogEntry) (err error) {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	project.Status = wf.Status
	wf.ProjectID = project.ID
	wf.CreatedAt = now
	wf.UpdatedAt = now

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
		INSERT INTO projects (
			id, project_code, project_name, description, village_id, tehsil_id, district_id,
			total_budget, allocated_budget, utilized_budget, status, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		project.ID, project.Code, project.Name, project.Description,
		project.VillageID, project.TehsilID, project.DistrictID,
		project.Budget.Total, project.Budget.Allocated, project.Budget.Utilized,
		project.Status, project.CreatedBy, now,
	)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return fmt.Errorf("%w: project code %s already exists", apperrors.ErrConflict, project.Code)
		case pgCheckViolation:
			return fmt.Errorf("%w: %v", apperrors.ErrBudgetInvariant, err)
		case pgFKViolation:
			return fmt.Errorf("%w: unknown location or creator", apperrors.ErrValidation)
		}
		return wrap("create project", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO approval_workflow (project_id, current_stage, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		wf.ProjectID, wf.CurrentStage, wf.Status, wf.Version, now,
	)
	if err != nil {
		return wrap("create workflow", err)
	}

	if audit != nil {
		audit.EntityID = project.ID
		if err = insertAudit(ctx, tx, audit); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return wrap("commit transaction", err)
	}
	return nil
}

func (r *projectRepository) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	p, err := scanProject(scope.Conn.QueryRow(ctx, `SELECT `+projectColumns+projectFrom+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, wrap("get project", err)
	}
	return p, nil
}

// buildProjectWhere returns the WHERE clause and args for filter.
func buildProjectWhere(filter models.ProjectFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != nil {
		add("p.status = $%d", string(*filter.Status))
	}
	if filter.DistrictID != nil {
		add("p.district_id = $%d", *filter.DistrictID)
	}
	if filter.TehsilID != nil {
		add("p.tehsil_id = $%d", *filter.TehsilID)
	}
	if filter.VillageID != nil {
		add("p.village_id = $%d", *filter.VillageID)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *projectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]*models.Project, int, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, 0, err
	}
	filter.Normalize()

	where, args := buildProjectWhere(filter)

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM projects p`+where, args...).Scan(&total); err != nil {
		return nil, 0, wrap("count projects", err)
	}

	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY p.created_at DESC, p.id LIMIT $%d OFFSET $%d`,
		projectColumns, projectFrom, where, len(args)+1, len(args)+2)
	rows, err := scope.Conn.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, wrap("list projects", err)
	}
	defer rows.Close()

	projects := make([]*models.Project, 0, filter.Limit)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrap("iterate projects", err)
	}
	return projects, total, nil
}

func (r *projectRepository) UpdateBudget(ctx context.Context, id uuid.UUID, allocated, utilized int64, audit *models.AuditLogEntry) (_ *models.Project, err error) {
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

	var total int64
	err = tx.QueryRow(ctx, `SELECT total_budget FROM projects WHERE id = $1 FOR UPDATE`, id).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, wrap("lock project", err)
	}

	budget := models.Budget{Total: total, Allocated: allocated, Utilized: utilized}
	if err = budget.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBudgetInvariant, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE projects
		SET allocated_budget = $2, utilized_budget = $3, updated_at = NOW()
		WHERE id = $1`, id, allocated, utilized)
	if err != nil {
		return nil, wrap("update budget", err)
	}

	if audit != nil {
		audit.EntityID = id
		if err = insertAudit(ctx, tx, audit); err != nil {
			return nil, err
		}
	}

	p, err := scanProject(tx.QueryRow(ctx, `SELECT `+projectColumns+projectFrom+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, wrap("reload project", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, wrap("commit transaction", err)
	}
	return p, nil
}

func (r *projectRepository) Summary(ctx context.Context) (*models.BudgetSummary, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT d.id, d.name, p.status,
		       COUNT(p.id), COALESCE(SUM(p.total_budget), 0),
		       COALESCE(SUM(p.allocated_budget), 0), COALESCE(SUM(p.utilized_budget), 0)
		FROM projects p
		LEFT JOIN districts d ON d.id = p.district_id
		GROUP BY d.id, d.name, p.status
		ORDER BY d.name NULLS LAST`)
	if err != nil {
		return nil, wrap("summarize budgets", err)
	}
	defer rows.Close()

	summary := &models.BudgetSummary{
		StatusCounts:  make(map[models.WorkflowStatus]int),
		StatusAmounts: make(map[models.WorkflowStatus]int64),
		GeneratedAt:   time.Now(),
	}
	byDistrict := make(map[uuid.UUID]*models.DistrictBudgetSummary)

	for rows.Next() {
		var (
			districtID   *uuid.UUID
			districtName *string
			status       models.WorkflowStatus
			count        int
			total        int64
			allocated    int64
			utilized     int64
		)
		if err := rows.Scan(&districtID, &districtName, &status, &count, &total, &allocated, &utilized); err != nil {
			return nil, fmt.Errorf("failed to scan budget summary: %w", err)
		}

		// Projects without a district count towards the totals only.
		if districtID != nil {
			d, ok := byDistrict[*districtID]
			if !ok {
				d = &models.DistrictBudgetSummary{
					DistrictID:   *districtID,
					StatusCounts: make(map[models.WorkflowStatus]int),
				}
				if districtName != nil {
					d.DistrictName = *districtName
				}
				byDistrict[*districtID] = d
				summary.Districts = append(summary.Districts, d)
			}
			d.ProjectCount += count
			d.Total += total
			d.Allocated += allocated
			d.Utilized += utilized
			d.StatusCounts[status] += count
		}

		summary.Total += total
		summary.Allocated += allocated
		summary.Utilized += utilized
		summary.StatusCounts[status] += count
		summary.StatusAmounts[status] += total
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate budget summary", err)
	}
	return summary, nil
}

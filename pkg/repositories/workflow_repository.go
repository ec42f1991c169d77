package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

// WorkflowRepository persists the approval state of projects.
type WorkflowRepository interface {
	Get(ctx context.Context, projectID uuid.UUID) (*models.Workflow, error)

	// ApplyTransition commits one transition atomically: the workflow row is
	// updated only if its version and stage still match the expectation, the
	// project status mirror is updated, and the history entry and optional
	// audit entry are appended.
	// A lost compare-and-swap returns ErrStaleState and writes nothing.
	ApplyTransition(ctx context.Context, w *models.TransitionWrite) (*models.Workflow, error)

	// SetProjectStatus updates the project status mirror alone. Used when the
	// workflow row is missing.
	SetProjectStatus(ctx context.Context, projectID uuid.UUID, status models.WorkflowStatus) error
}

type workflowRepository struct{}

// NewWorkflowRepository creates a new WorkflowRepository.
func NewWorkflowRepository() WorkflowRepository {
	return &workflowRepository{}
}

var _ WorkflowRepository = (*workflowRepository)(nil)

func scanWorkflow(row pgx.Row) (*models.Workflow, error) {
	var wf models.Workflow
	err := row.Scan(&wf.ProjectID, &wf.CurrentStage, &wf.Status, &wf.CurrentApproverID,
		&wf.Version, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

const workflowColumns = `project_id, current_stage, status, current_approver_id, version, created_at, updated_at`

func (r *workflowRepository) Get(ctx context.Context, projectID uuid.UUID) (*models.Workflow, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	wf, err := scanWorkflow(scope.Conn.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM approval_workflow WHERE project_id = $1`, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, wrap("get workflow", err)
	}
	return wf, nil
}

func (r *workflowRepository) ApplyTransition(ctx context.Context, w *models.TransitionWrite) (_ *models.Workflow, err error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}
	if w.At.IsZero() {
		w.At = time.Now()
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

	wf, err := scanWorkflow(tx.QueryRow(ctx, `
		UPDATE approval_workflow
		SET current_stage = $4, status = $5, current_approver_id = $6,
		    version = version + 1, updated_at = $7
		WHERE project_id = $1 AND version = $2 AND current_stage = $3
		RETURNING `+workflowColumns,
		w.ProjectID, w.ExpectedVersion, w.ExpectedStage,
		w.NewStage, w.NewStatus, w.ApproverID, w.At,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: project %s is no longer at version %d stage %s",
				apperrors.ErrStaleState, w.ProjectID, w.ExpectedVersion, w.ExpectedStage)
		}
		return nil, wrap("update workflow", err)
	}

	_, err = tx.Exec(ctx, `UPDATE projects SET status = $2, updated_at = $3 WHERE id = $1`,
		w.ProjectID, w.NewStatus, w.At)
	if err != nil {
		return nil, wrap("update project status", err)
	}

	if w.History != nil {
		if w.History.ActionDate.IsZero() {
			w.History.ActionDate = w.At
		}
		if err = insertHistory(ctx, tx, w.History); err != nil {
			return nil, err
		}
	}

	if w.Audit != nil {
		if w.Audit.CreatedAt.IsZero() {
			w.Audit.CreatedAt = w.At
		}
		if err = insertAudit(ctx, tx, w.Audit); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, wrap("commit transaction", err)
	}
	return wf, nil
}

func (r *workflowRepository) SetProjectStatus(ctx context.Context, projectID uuid.UUID, status models.WorkflowStatus) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	tag, err := scope.Conn.Exec(ctx, `UPDATE projects SET status = $2, updated_at = NOW() WHERE id = $1`, projectID, status)
	if err != nil {
		return wrap("update project status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

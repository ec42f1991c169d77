package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

// HistoryRepository reads the append-only approval history. Entries are
// written by WorkflowRepository.ApplyTransition; there is no update or delete.
type HistoryRepository interface {
	// ListByProject returns every entry for the project in insertion order.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ApprovalHistoryEntry, error)
}

type historyRepository struct{}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository() HistoryRepository {
	return &historyRepository{}
}

var _ HistoryRepository = (*historyRepository)(nil)

func insertHistory(ctx context.Context, q querier, e *models.ApprovalHistoryEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO approval_history (
			id, project_id, stage, approver_id, approver_role, action,
			remarks, attachment_ref, result_status, action_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.ProjectID, e.Stage, e.ApproverID, e.ApproverRole, e.Action,
		e.Remarks, e.AttachmentRef, e.ResultStatus, e.ActionDate,
	)
	if err != nil {
		return wrap("append approval history", err)
	}
	return nil
}

func (r *historyRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ApprovalHistoryEntry, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, project_id, stage, approver_id, approver_role, action,
		       remarks, attachment_ref, result_status, action_date
		FROM approval_history
		WHERE project_id = $1
		ORDER BY seq ASC`, projectID)
	if err != nil {
		return nil, wrap("list approval history", err)
	}
	defer rows.Close()

	entries := []*models.ApprovalHistoryEntry{}
	for rows.Next() {
		var e models.ApprovalHistoryEntry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Stage, &e.ApproverID, &e.ApproverRole, &e.Action,
			&e.Remarks, &e.AttachmentRef, &e.ResultStatus, &e.ActionDate); err != nil {
			return nil, fmt.Errorf("failed to scan approval history: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate approval history", err)
	}
	return entries, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalHistoryEntry is one immutable record of a workflow transition.
// Stored in approval_history; rows are never updated or deleted.
type ApprovalHistoryEntry struct {
	ID            uuid.UUID      `json:"id"`
	ProjectID     uuid.UUID      `json:"project_id"`
	Stage         Stage          `json:"stage"` // stage at the time of the action
	ApproverID    uuid.UUID      `json:"approver_id"`
	ApproverRole  Role           `json:"approver_role"`
	Action        Action         `json:"action"`
	Remarks       *string        `json:"remarks,omitempty"`
	AttachmentRef *string        `json:"attachment_ref,omitempty"`
	ResultStatus  WorkflowStatus `json:"result_status"`
	ActionDate    time.Time      `json:"action_date"`
}

// AuditEntityType represents the type of entity being audited.
const (
	AuditEntityTypeProject     = "project"
	AuditEntityTypeGrievance   = "grievance"
	AuditEntityTypeUser        = "user"
	AuditEntityTypeTransaction = "transaction"
)

// AuditAction represents the type of non-workflow change being audited.
const (
	AuditActionCreate       = "create"
	AuditActionBudgetUpdate = "budget_update"
	AuditActionStatusUpdate = "status_update"
)

// WorkflowAuditAction names the audit action recorded for an approval decision,
// for example "workflow_approve".
func WorkflowAuditAction(a Action) string {
	return "workflow_" + string(a)
}

// AuditLogEntry records a change outside the approval workflow
// (project creation, budget edits, grievance handling).
type AuditLogEntry struct {
	ID         uuid.UUID  `json:"id"`
	UserID     *uuid.UUID `json:"user_id,omitempty"` // nil for anonymous citizens
	Action     string     `json:"action"`
	EntityType string     `json:"entity_type"`
	EntityID   uuid.UUID  `json:"entity_id"`

	// NewValues is a JSON snapshot of the changed fields.
	NewValues map[string]any `json:"new_values,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

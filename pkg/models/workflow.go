package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Stage
// ============================================================================

// Stage is the approver level a workflow currently waits on.
// Stages are ordered: sarpanch → tehsil → district → admin.
type Stage string

const (
	StageSarpanch Stage = "sarpanch"
	StageTehsil   Stage = "tehsil"
	StageDistrict Stage = "district"
	StageAdmin    Stage = "admin"
)

// ValidStages contains all stages in approval order.
var ValidStages = []Stage{StageSarpanch, StageTehsil, StageDistrict, StageAdmin}

// IsValidStage checks if the given stage is valid.
func IsValidStage(s string) bool {
	for _, v := range ValidStages {
		if string(v) == s {
			return true
		}
	}
	return false
}

// Role returns the role whose holders act at this stage.
func (s Stage) Role() Role {
	return Role(s)
}

// Level returns the hierarchy level of the stage, matching Role.Level.
func (s Stage) Level() int {
	return s.Role().Level()
}

// Next returns the following stage, or false when s is the last stage.
func (s Stage) Next() (Stage, bool) {
	for i, v := range ValidStages {
		if v == s && i+1 < len(ValidStages) {
			return ValidStages[i+1], true
		}
	}
	return "", false
}

// Previous returns the stage that forwarded to s. The first stage returns itself.
func (s Stage) Previous() Stage {
	for i, v := range ValidStages {
		if v == s && i > 0 {
			return ValidStages[i-1]
		}
	}
	return s
}

// ============================================================================
// Status
// ============================================================================

// WorkflowStatus is the lifecycle state of a workflow.
//
//	pending ⇄ objection
//	pending/objection → approved (admin only) | rejected
//
// approved and rejected are terminal.
type WorkflowStatus string

const (
	StatusPending   WorkflowStatus = "pending"
	StatusApproved  WorkflowStatus = "approved"
	StatusObjection WorkflowStatus = "objection"
	StatusRejected  WorkflowStatus = "rejected"
)

// ValidStatuses contains all valid status values.
var ValidStatuses = []WorkflowStatus{StatusPending, StatusApproved, StatusObjection, StatusRejected}

// IsValidStatus checks if the given status is valid.
func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if string(v) == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further action is accepted.
func (s WorkflowStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ============================================================================
// Action
// ============================================================================

// Action is an approver decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionObject  Action = "object"
	ActionForward Action = "forward"
)

// ValidActions contains all accepted action literals.
var ValidActions = []Action{ActionApprove, ActionReject, ActionObject, ActionForward}

// IsValidAction checks if the given action literal is valid.
func IsValidAction(a string) bool {
	for _, v := range ValidActions {
		if string(v) == a {
			return true
		}
	}
	return false
}

// ============================================================================
// Workflow
// ============================================================================

// Workflow is the persisted approval state of one project.
// Version increases by one on every committed transition and guards
// concurrent writers.
type Workflow struct {
	ProjectID         uuid.UUID      `json:"project_id"`
	CurrentStage      Stage          `json:"current_stage"`
	Status            WorkflowStatus `json:"status"`
	CurrentApproverID *uuid.UUID     `json:"current_approver_id,omitempty"`
	Version           int64          `json:"version"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// NewWorkflow returns the initial workflow for a freshly created project.
func NewWorkflow(projectID uuid.UUID) *Workflow {
	return &Workflow{
		ProjectID:    projectID,
		CurrentStage: StageSarpanch,
		Status:       StatusPending,
		Version:      1,
	}
}

// TransitionWrite is everything committed atomically for one transition.
// ExpectedVersion and ExpectedStage form the compare-and-swap guard.
type TransitionWrite struct {
	ProjectID       uuid.UUID
	ExpectedVersion int64
	ExpectedStage   Stage
	NewStage        Stage
	NewStatus       WorkflowStatus
	ApproverID      uuid.UUID
	History         *ApprovalHistoryEntry
	// Audit is an optional audit log entry committed with the transition.
	Audit           *AuditLogEntry
	At              time.Time
}

// TransitionResult is returned to the caller of a workflow action.
type TransitionResult struct {
	Success   bool           `json:"success"`
	ProjectID uuid.UUID      `json:"project_id"`
	Status    WorkflowStatus `json:"status"`
	Stage     Stage          `json:"stage"`
	NextStage *Stage         `json:"next_stage"`
	Degraded  bool           `json:"degraded,omitempty"`
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/audit"
	"github.com/fiscal-tracker/fiscal-engine/pkg/cache"
	"github.com/fiscal-tracker/fiscal-engine/pkg/config"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/repositories"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services/workflow"
)

// MaxRemarksLength caps the remarks stored with an approval action.
const MaxRemarksLength = 2000

// ActionRequest is one approver decision. Actor fields come from the
// verified session token, never from the request body.
type ActionRequest struct {
	ProjectID         uuid.UUID
	Action            models.Action
	ActorID           uuid.UUID
	ActorRole         models.Role
	ActorJurisdiction workflow.Jurisdiction
	ClaimedStage      models.Stage
	Remarks           *string
	AttachmentRef     *string
}

// Validate checks the request shape without reading any state.
func (r *ActionRequest) Validate() error {
	if r.ProjectID == uuid.Nil {
		return fmt.Errorf("%w: project id is required", apperrors.ErrValidation)
	}
	if r.ActorID == uuid.Nil {
		return fmt.Errorf("%w: actor id is required", apperrors.ErrValidation)
	}
	if !models.IsValidAction(string(r.Action)) {
		return fmt.Errorf("%w: unknown action %q", apperrors.ErrValidation, r.Action)
	}
	if !models.IsValidStage(string(r.ClaimedStage)) {
		return fmt.Errorf("%w: unknown stage %q", apperrors.ErrValidation, r.ClaimedStage)
	}
	if r.Remarks != nil && len(*r.Remarks) > MaxRemarksLength {
		return fmt.Errorf("%w: remarks exceed %d characters", apperrors.ErrValidation, MaxRemarksLength)
	}
	return nil
}

// ApprovalService runs approval actions against project workflows.
type ApprovalService interface {
	// SubmitAction applies one approver action. Validation and authorization
	// happen before any state is read. The workflow update, the project status
	// mirror and the history entry commit together; the next approver is
	// notified only after commit.
	SubmitAction(ctx context.Context, req *ActionRequest) (*models.TransitionResult, error)

	// History returns a project's approval history, oldest first.
	History(ctx context.Context, projectID uuid.UUID) ([]*models.ApprovalHistoryEntry, error)

	// Workflow returns the current workflow state of a project.
	Workflow(ctx context.Context, projectID uuid.UUID) (*models.Workflow, error)
}

type approvalService struct {
	workflows repositories.WorkflowRepository
	projects  repositories.ProjectRepository
	history   repositories.HistoryRepository
	cache     cache.Cache
	notifier  Notifier
	auditor   *audit.SecurityAuditor
	logger    *zap.Logger

	policy              workflow.Policy
	enforceJurisdiction bool
	now                 func() time.Time
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(
	workflows repositories.WorkflowRepository,
	projects repositories.ProjectRepository,
	history repositories.HistoryRepository,
	c cache.Cache,
	notifier Notifier,
	auditor *audit.SecurityAuditor,
	cfg config.WorkflowConfig,
	logger *zap.Logger,
) ApprovalService {
	return &approvalService{
		workflows:           workflows,
		projects:            projects,
		history:             history,
		cache:               c,
		notifier:            notifier,
		auditor:             auditor,
		logger:              logger.Named("approvals"),
		policy:              workflow.Policy{AllowEscalation: cfg.AllowEscalation},
		enforceJurisdiction: cfg.EnforceJurisdiction,
		now:                 time.Now,
	}
}

var _ ApprovalService = (*approvalService)(nil)

func (s *approvalService) SubmitAction(ctx context.Context, req *ActionRequest) (*models.TransitionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	decision := s.policy.Authorize(req.ActorRole, req.ClaimedStage)
	if !decision.Allowed {
		s.auditor.LogUnauthorizedAction(ctx, req.ProjectID, req.ActorID.String(), audit.WorkflowActionDetails{
			Role:   string(req.ActorRole),
			Stage:  string(req.ClaimedStage),
			Action: string(req.Action),
			Reason: decision.Reason,
		})
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, decision.Reason)
	}

	project, err := s.projects.Get(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	if s.enforceJurisdiction && !workflow.InJurisdiction(req.ActorRole, req.ActorJurisdiction, projectJurisdiction(project)) {
		s.auditor.LogUnauthorizedAction(ctx, req.ProjectID, req.ActorID.String(), audit.WorkflowActionDetails{
			Role:   string(req.ActorRole),
			Stage:  string(req.ClaimedStage),
			Action: string(req.Action),
			Reason: "project outside actor jurisdiction",
		})
		return nil, fmt.Errorf("%w: project is outside your jurisdiction", apperrors.ErrUnauthorized)
	}

	wf, err := s.workflows.Get(ctx, req.ProjectID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return s.applyDegraded(ctx, req, project)
	}
	if err != nil {
		return nil, err
	}

	if wf.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: project is already %s", apperrors.ErrTerminalState, wf.Status)
	}
	if wf.CurrentStage != req.ClaimedStage {
		return nil, fmt.Errorf("%w: project is at stage %s, not %s", apperrors.ErrStaleState, wf.CurrentStage, req.ClaimedStage)
	}

	tr, err := workflow.Next(wf.CurrentStage, wf.Status, req.Action)
	if err != nil {
		return nil, err
	}

	if decision.Escalation {
		s.auditor.LogEscalation(ctx, req.ProjectID, req.ActorID.String(), audit.WorkflowActionDetails{
			Role:   string(req.ActorRole),
			Stage:  string(wf.CurrentStage),
			Action: string(req.Action),
		})
	}

	now := s.now()
	actorID := req.ActorID
	updated, err := s.workflows.ApplyTransition(ctx, &models.TransitionWrite{
		ProjectID:       req.ProjectID,
		ExpectedVersion: wf.Version,
		ExpectedStage:   wf.CurrentStage,
		NewStage:        tr.To,
		NewStatus:       tr.Status,
		ApproverID:      req.ActorID,
		At:              now,
		History: &models.ApprovalHistoryEntry{
			ProjectID:     req.ProjectID,
			Stage:         wf.CurrentStage,
			ApproverID:    req.ActorID,
			ApproverRole:  req.ActorRole,
			Action:        req.Action,
			Remarks:       nonBlank(req.Remarks),
			AttachmentRef: nonBlank(req.AttachmentRef),
			ResultStatus:  tr.Status,
			ActionDate:    now,
		},
		Audit: &models.AuditLogEntry{
			UserID:     &actorID,
			Action:     models.WorkflowAuditAction(req.Action),
			EntityType: models.AuditEntityTypeProject,
			EntityID:   req.ProjectID,
			NewValues: map[string]any{
				"from_stage": string(tr.From),
				"to_stage":   string(tr.To),
				"status":     string(tr.Status),
				"role":       string(req.ActorRole),
			},
			CreatedAt: now,
		},
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, req.ProjectID)

	if tr.NotifyRole != nil {
		s.notifier.NotifyRole(approvalNotice(project, tr, *tr.NotifyRole))
	}

	s.logger.Info("Workflow transition committed",
		zap.String("project_id", req.ProjectID.String()),
		zap.String("action", string(req.Action)),
		zap.String("from_stage", string(tr.From)),
		zap.String("to_stage", string(updated.CurrentStage)),
		zap.String("status", string(updated.Status)),
		zap.Int64("version", updated.Version))

	return &models.TransitionResult{
		Success:   true,
		ProjectID: req.ProjectID,
		Status:    updated.Status,
		Stage:     updated.CurrentStage,
		NextStage: tr.NextStage(),
	}, nil
}

// applyDegraded handles a project whose workflow row is missing. The stage
// is rebuilt from the approval history and the claimed stage must match it.
// Only the project status is written; there is no history entry and no
// notification.
func (s *approvalService) applyDegraded(ctx context.Context, req *ActionRequest, project *models.Project) (*models.TransitionResult, error) {
	if project.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: project is already %s", apperrors.ErrTerminalState, project.Status)
	}

	entries, err := s.history.ListByProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	stage := stageFromHistory(entries)
	if stage != req.ClaimedStage {
		return nil, fmt.Errorf("%w: project is at stage %s, not %s", apperrors.ErrStaleState, stage, req.ClaimedStage)
	}

	tr, err := workflow.Next(stage, project.Status, req.Action)
	if err != nil {
		return nil, err
	}

	if err := s.workflows.SetProjectStatus(ctx, req.ProjectID, tr.Status); err != nil {
		return nil, err
	}

	s.auditor.LogDegradedConsistency(ctx, req.ProjectID, req.ActorID.String(), string(req.Action), string(tr.Status))
	s.logger.Warn("Applied status without workflow record",
		zap.String("project_id", req.ProjectID.String()),
		zap.Error(apperrors.ErrDegradedConsistency))

	s.invalidate(ctx, req.ProjectID)

	return &models.TransitionResult{
		Success:   true,
		ProjectID: req.ProjectID,
		Status:    tr.Status,
		Stage:     tr.To,
		NextStage: tr.NextStage(),
		Degraded:  true,
	}, nil
}

// stageFromHistory replays the latest history entry to find the stage a
// project is waiting at. Projects start at the sarpanch stage.
func stageFromHistory(entries []*models.ApprovalHistoryEntry) models.Stage {
	if len(entries) == 0 {
		return models.StageSarpanch
	}
	last := entries[len(entries)-1]
	advanced := last.Action == models.ActionApprove || last.Action == models.ActionForward
	if advanced && last.ResultStatus == models.StatusPending {
		if next, ok := last.Stage.Next(); ok {
			return next
		}
	}
	return last.Stage
}

func (s *approvalService) History(ctx context.Context, projectID uuid.UUID) ([]*models.ApprovalHistoryEntry, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("%w: project id is required", apperrors.ErrValidation)
	}

	// Keyed by the workflow version read before the list. Projects without a
	// workflow row are not cached.
	key := ""
	wf, err := s.workflows.Get(ctx, projectID)
	switch {
	case err == nil:
		key = cache.HistoryKey(projectID, wf.Version)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	var entries []*models.ApprovalHistoryEntry
	if key != "" {
		if hit, err := s.cache.Get(ctx, key, &entries); err != nil {
			s.logger.Warn("History cache read failed", zap.Error(err))
		} else if hit {
			return entries, nil
		}
	}

	entries, err = s.history.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		if _, err := s.projects.Get(ctx, projectID); err != nil {
			return nil, err
		}
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, entries); err != nil {
			s.logger.Warn("History cache write failed", zap.Error(err))
		}
	}
	return entries, nil
}

func (s *approvalService) Workflow(ctx context.Context, projectID uuid.UUID) (*models.Workflow, error) {
	return s.workflows.Get(ctx, projectID)
}

func (s *approvalService) invalidate(ctx context.Context, projectID uuid.UUID) {
	if err := s.cache.Delete(ctx, cache.ProjectKeys(projectID)...); err != nil {
		s.logger.Warn("Cache invalidation failed",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
	}
}

func approvalNotice(project *models.Project, tr workflow.Transition, role models.Role) *models.RoleNotice {
	title := "Project awaiting approval"
	message := fmt.Sprintf("Project %s (%s) requires your approval at the %s level.", project.Name, project.Code, tr.To)
	if tr.Action == models.ActionObject {
		title = "Objection raised on project"
		message = fmt.Sprintf("An objection was raised on project %s (%s) at the %s level.", project.Name, project.Code, tr.From)
	}
	projectID := project.ID
	return &models.RoleNotice{
		Role:      role,
		Title:     title,
		Message:   message,
		Type:      models.NotificationTypeApproval,
		ProjectID: &projectID,
	}
}

func projectJurisdiction(p *models.Project) workflow.Jurisdiction {
	var j workflow.Jurisdiction
	if p.DistrictID != nil {
		j.DistrictID = p.DistrictID.String()
	}
	if p.TehsilID != nil {
		j.TehsilID = p.TehsilID.String()
	}
	if p.VillageID != nil {
		j.VillageID = p.VillageID.String()
	}
	return j
}

// nonBlank returns s unchanged unless it is nil or only whitespace.
func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

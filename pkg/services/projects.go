package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/cache"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/repositories"
)

// maxCodeAttempts bounds retries when a generated project code collides.
const maxCodeAttempts = 5

// Roles allowed to create projects and edit budgets.
var (
	projectCreatorRoles = []models.Role{models.RoleSarpanch, models.RoleAdmin}
	budgetEditorRoles   = []models.Role{models.RoleDistrict, models.RoleAdmin}
)

// CreateProjectInput is the caller-supplied part of a new project.
type CreateProjectInput struct {
	Name            string     `json:"project_name"`
	Description     string     `json:"description"`
	VillageID       *uuid.UUID `json:"village_id"`
	TotalBudget     int64      `json:"total_budget"`
	AllocatedBudget int64      `json:"allocated_budget"`
}

// ProjectService defines the interface for project operations.
type ProjectService interface {
	// Create stores a new project together with its initial workflow at
	// stage sarpanch, status pending.
	Create(ctx context.Context, actorID uuid.UUID, actorRole models.Role, in *CreateProjectInput) (*models.Project, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	List(ctx context.Context, filter models.ProjectFilter) (*models.ProjectPage, error)
	// UpdateBudget changes allocated and utilized amounts. The budget order
	// 0 <= utilized <= allocated <= total must hold afterwards.
	UpdateBudget(ctx context.Context, actorID uuid.UUID, actorRole models.Role, id uuid.UUID, allocated, utilized int64) (*models.Project, error)
	Summary(ctx context.Context) (*models.BudgetSummary, error)
}

type projectService struct {
	projects  repositories.ProjectRepository
	locations repositories.LocationRepository
	cache     cache.Cache
	logger    *zap.Logger
	newCode   func() string
}

// NewProjectService creates a new project service.
func NewProjectService(
	projects repositories.ProjectRepository,
	locations repositories.LocationRepository,
	c cache.Cache,
	logger *zap.Logger,
) ProjectService {
	return &projectService{
		projects:  projects,
		locations: locations,
		cache:     c,
		logger:    logger.Named("projects"),
		newCode:   models.NewProjectCode,
	}
}

var _ ProjectService = (*projectService)(nil)

func (s *projectService) Create(ctx context.Context, actorID uuid.UUID, actorRole models.Role, in *CreateProjectInput) (*models.Project, error) {
	if !slices.Contains(projectCreatorRoles, actorRole) {
		return nil, fmt.Errorf("%w: role %s cannot create projects", apperrors.ErrUnauthorized, actorRole)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", apperrors.ErrValidation)
	}
	budget := models.Budget{Total: in.TotalBudget, Allocated: in.AllocatedBudget}
	if err := budget.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrBudgetInvariant, err)
	}

	project := &models.Project{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Budget:      budget,
		CreatedBy:   &actorID,
	}

	if in.VillageID != nil {
		loc, err := s.locations.ResolveVillage(ctx, *in.VillageID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown village %s", apperrors.ErrValidation, *in.VillageID)
			}
			return nil, err
		}
		project.VillageID = &loc.VillageID
		project.TehsilID = &loc.TehsilID
		project.DistrictID = &loc.DistrictID
	}

	var err error
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		project.ID = uuid.New()
		project.Code = s.newCode()

		audit := &models.AuditLogEntry{
			UserID:     &actorID,
			Action:     models.AuditActionCreate,
			EntityType: models.AuditEntityTypeProject,
			NewValues: map[string]any{
				"project_code":     project.Code,
				"project_name":     project.Name,
				"total_budget":     project.Budget.Total,
				"allocated_budget": project.Budget.Allocated,
			},
		}

		err = s.projects.CreateWithWorkflow(ctx, project, models.NewWorkflow(project.ID), audit)
		if err == nil {
			break
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}
		s.logger.Debug("Project code collision, regenerating",
			zap.String("code", project.Code),
			zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, fmt.Errorf("could not allocate a project code: %w", err)
	}

	if err := s.cache.Delete(ctx, cache.SummaryKey); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.Error(err))
	}

	s.logger.Info("Project created",
		zap.String("project_id", project.ID.String()),
		zap.String("code", project.Code),
		zap.String("created_by", actorID.String()))

	return project, nil
}

func (s *projectService) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if hit, err := s.cache.Get(ctx, cache.ProjectKey(id), &project); err != nil {
		s.logger.Warn("Project cache read failed", zap.Error(err))
	} else if hit {
		return &project, nil
	}

	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cache.ProjectKey(id), p); err != nil {
		s.logger.Warn("Project cache write failed", zap.Error(err))
	}
	return p, nil
}

func (s *projectService) List(ctx context.Context, filter models.ProjectFilter) (*models.ProjectPage, error) {
	if filter.Status != nil && !models.IsValidStatus(string(*filter.Status)) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, *filter.Status)
	}
	filter.Normalize()

	projects, total, err := s.projects.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &models.ProjectPage{
		Projects:   projects,
		Pagination: models.NewPagination(total, filter.Limit, filter.Offset),
	}, nil
}

func (s *projectService) UpdateBudget(ctx context.Context, actorID uuid.UUID, actorRole models.Role, id uuid.UUID, allocated, utilized int64) (*models.Project, error) {
	if !slices.Contains(budgetEditorRoles, actorRole) {
		return nil, fmt.Errorf("%w: role %s cannot edit budgets", apperrors.ErrUnauthorized, actorRole)
	}
	if allocated < 0 || utilized < 0 {
		return nil, fmt.Errorf("%w: amounts must be non-negative", apperrors.ErrBudgetInvariant)
	}

	audit := &models.AuditLogEntry{
		UserID:     &actorID,
		Action:     models.AuditActionBudgetUpdate,
		EntityType: models.AuditEntityTypeProject,
		EntityID:   id,
		NewValues: map[string]any{
			"allocated_budget": allocated,
			"utilized_budget":  utilized,
		},
	}

	project, err := s.projects.UpdateBudget(ctx, id, allocated, utilized, audit)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, cache.ProjectKeys(id)...); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.Error(err))
	}
	return project, nil
}

func (s *projectService) Summary(ctx context.Context) (*models.BudgetSummary, error) {
	var summary models.BudgetSummary
	if hit, err := s.cache.Get(ctx, cache.SummaryKey, &summary); err != nil {
		s.logger.Warn("Summary cache read failed", zap.Error(err))
	} else if hit {
		return &summary, nil
	}

	result, err := s.projects.Summary(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cache.SummaryKey, result); err != nil {
		s.logger.Warn("Summary cache write failed", zap.Error(err))
	}
	return result, nil
}

package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/repositories"
)

// AuditTrailService reads the audit log of changes made outside the
// approval workflow.
type AuditTrailService interface {
	// Trail returns the entries for one entity, oldest first.
	Trail(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLogEntry, error)
}

type auditTrailService struct {
	repo repositories.AuditRepository
}

// NewAuditTrailService creates a new AuditTrailService.
func NewAuditTrailService(repo repositories.AuditRepository) AuditTrailService {
	return &auditTrailService{repo: repo}
}

var _ AuditTrailService = (*auditTrailService)(nil)

func (s *auditTrailService) Trail(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLogEntry, error) {
	switch entityType {
	case models.AuditEntityTypeProject, models.AuditEntityTypeGrievance, models.AuditEntityTypeUser, models.AuditEntityTypeTransaction:
	default:
		return nil, fmt.Errorf("%w: unknown entity type %q", apperrors.ErrValidation, entityType)
	}

	entries, err := s.repo.GetByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.AuditLogEntry{}
	}
	return entries, nil
}

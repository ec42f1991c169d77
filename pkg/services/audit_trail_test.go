package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

type memAuditRepo struct {
	entries []*models.AuditLogEntry
	err     error
	calls   int
}

func (m *memAuditRepo) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memAuditRepo) GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLogEntry, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.AuditLogEntry
	for _, e := range m.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestAuditTrailService_Trail(t *testing.T) {
	project := uuid.New()
	repo := &memAuditRepo{entries: []*models.AuditLogEntry{
		{ID: uuid.New(), Action: models.AuditActionCreate, EntityType: models.AuditEntityTypeProject, EntityID: project},
		{ID: uuid.New(), Action: models.AuditActionBudgetUpdate, EntityType: models.AuditEntityTypeProject, EntityID: project},
		{ID: uuid.New(), Action: models.AuditActionCreate, EntityType: models.AuditEntityTypeGrievance, EntityID: project},
	}}
	svc := NewAuditTrailService(repo)
	ctx := context.Background()

	entries, err := svc.Trail(ctx, models.AuditEntityTypeProject, project)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditActionBudgetUpdate, entries[1].Action)

	entries, err = svc.Trail(ctx, models.AuditEntityTypeUser, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestAuditTrailService_UnknownEntity(t *testing.T) {
	repo := &memAuditRepo{}
	svc := NewAuditTrailService(repo)

	_, err := svc.Trail(context.Background(), "approval", uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Zero(t, repo.calls)
}

func TestAuditTrailService_RepoError(t *testing.T) {
	repo := &memAuditRepo{err: apperrors.ErrNotFound}
	_, err := NewAuditTrailService(repo).Trail(context.Background(), models.AuditEntityTypeGrievance, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

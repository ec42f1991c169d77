package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

type memTransactionRepo struct {
	created    []*models.FundTransaction
	audits     []*models.AuditLogEntry
	lastFilter models.TransactionFilter
}

func (m *memTransactionRepo) Create(ctx context.Context, t *models.FundTransaction, audit *models.AuditLogEntry) error {
	t.ID = uuid.New()
	m.created = append(m.created, t)
	if audit != nil {
		audit.EntityID = t.ID
		m.audits = append(m.audits, audit)
	}
	return nil
}

func (m *memTransactionRepo) List(ctx context.Context, filter models.TransactionFilter) ([]*models.FundTransaction, error) {
	m.lastFilter = filter
	out := []*models.FundTransaction{}
	for _, t := range m.created {
		if filter.DistrictID != nil && t.DistrictID != *filter.DistrictID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func validTransaction(district uuid.UUID) *CreateTransactionInput {
	return &CreateTransactionInput{
		DistrictID:  district,
		Amount:      25_00_000_00,
		Description: "  First instalment for rural roads  ",
		Type:        models.TransactionRelease,
	}
}

func TestTransactionService_Create(t *testing.T) {
	repo := &memTransactionRepo{}
	svc := NewTransactionService(repo, zap.NewNop())
	district := uuid.New()
	actor := TransactionActor{ID: uuid.New(), Role: models.RoleDistrict, DistrictID: district.String()}

	tx, err := svc.Create(context.Background(), actor, validTransaction(district))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPending, tx.Status)
	assert.Equal(t, "First instalment for rural roads", tx.Description)
	require.NotNil(t, tx.CreatedBy)
	assert.Equal(t, actor.ID, *tx.CreatedBy)

	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditEntityTypeTransaction, repo.audits[0].EntityType)
	assert.Equal(t, tx.ID, repo.audits[0].EntityID)
}

func TestTransactionService_Create_Rejections(t *testing.T) {
	district := uuid.New()
	admin := TransactionActor{ID: uuid.New(), Role: models.RoleAdmin}

	tests := []struct {
		name   string
		actor  TransactionActor
		mutate func(in *CreateTransactionInput)
		want   error
	}{
		{"missing district", admin, func(in *CreateTransactionInput) { in.DistrictID = uuid.Nil }, apperrors.ErrValidation},
		{"zero amount", admin, func(in *CreateTransactionInput) { in.Amount = 0 }, apperrors.ErrValidation},
		{"blank description", admin, func(in *CreateTransactionInput) { in.Description = "   " }, apperrors.ErrValidation},
		{"unknown type", admin, func(in *CreateTransactionInput) { in.Type = "gift" }, apperrors.ErrValidation},
		{"other district", TransactionActor{ID: uuid.New(), Role: models.RoleDistrict, DistrictID: uuid.NewString()}, func(*CreateTransactionInput) {}, apperrors.ErrUnauthorized},
		{"district officer without district", TransactionActor{ID: uuid.New(), Role: models.RoleDistrict}, func(*CreateTransactionInput) {}, apperrors.ErrUnauthorized},
		{"tehsil officer", TransactionActor{ID: uuid.New(), Role: models.RoleTehsil}, func(*CreateTransactionInput) {}, apperrors.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &memTransactionRepo{}
			in := validTransaction(district)
			tt.mutate(in)
			_, err := NewTransactionService(repo, zap.NewNop()).Create(context.Background(), tt.actor, in)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, repo.created)
		})
	}
}

func TestTransactionService_List(t *testing.T) {
	repo := &memTransactionRepo{}
	svc := NewTransactionService(repo, zap.NewNop())
	ctx := context.Background()
	mine, other := uuid.New(), uuid.New()
	admin := TransactionActor{ID: uuid.New(), Role: models.RoleAdmin}

	_, err := svc.Create(ctx, admin, validTransaction(mine))
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, validTransaction(other))
	require.NoError(t, err)

	all, err := svc.List(ctx, admin, models.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, models.MaxTransactionListLimit, repo.lastFilter.Limit)

	officer := TransactionActor{ID: uuid.New(), Role: models.RoleDistrict, DistrictID: mine.String()}
	own, err := svc.List(ctx, officer, models.TransactionFilter{DistrictID: &other, Limit: 500})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine, own[0].DistrictID)
	assert.Equal(t, models.MaxTransactionListLimit, repo.lastFilter.Limit)

	bad := models.TransactionStatus("settled")
	_, err = svc.List(ctx, admin, models.TransactionFilter{Status: &bad})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/repositories"
)

// maxTransactionDescriptionLength caps the free text of a fund transaction.
const maxTransactionDescriptionLength = 1000

// CreateTransactionInput is the caller-supplied part of a fund transaction.
type CreateTransactionInput struct {
	DistrictID  uuid.UUID              `json:"district_id"`
	Amount      int64                  `json:"amount"`
	Description string                 `json:"description"`
	Type        models.TransactionType `json:"type"`
}

// TransactionActor is the official recording or reading fund transactions.
// DistrictID is the district of a district officer and empty for admins.
type TransactionActor struct {
	ID         uuid.UUID
	Role       models.Role
	DistrictID string
}

// TransactionService records and lists district fund transactions.
// District officers are limited to their own district; admins see all.
type TransactionService interface {
	// Create records a new transaction with status pending.
	Create(ctx context.Context, actor TransactionActor, in *CreateTransactionInput) (*models.FundTransaction, error)
	// List returns at most 100 transactions, newest first.
	List(ctx context.Context, actor TransactionActor, filter models.TransactionFilter) ([]*models.FundTransaction, error)
}

type transactionService struct {
	repo   repositories.TransactionRepository
	logger *zap.Logger
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(repo repositories.TransactionRepository, logger *zap.Logger) TransactionService {
	return &transactionService{repo: repo, logger: logger.Named("transactions")}
}

var _ TransactionService = (*transactionService)(nil)

// ownDistrict returns the district a district officer is bound to, or nil
// for admins. Other roles are refused.
func ownDistrict(actor TransactionActor) (*uuid.UUID, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return nil, nil
	case models.RoleDistrict:
		id, err := uuid.Parse(actor.DistrictID)
		if err != nil {
			return nil, fmt.Errorf("%w: account has no district assigned", apperrors.ErrUnauthorized)
		}
		return &id, nil
	default:
		return nil, fmt.Errorf("%w: role %s does not handle fund transactions", apperrors.ErrUnauthorized, actor.Role)
	}
}

func (s *transactionService) Create(ctx context.Context, actor TransactionActor, in *CreateTransactionInput) (*models.FundTransaction, error) {
	own, err := ownDistrict(actor)
	if err != nil {
		return nil, err
	}

	in.Description = strings.TrimSpace(in.Description)
	switch {
	case in.DistrictID == uuid.Nil:
		return nil, fmt.Errorf("%w: district_id is required", apperrors.ErrValidation)
	case in.Amount <= 0:
		return nil, fmt.Errorf("%w: amount must be positive", apperrors.ErrValidation)
	case in.Description == "":
		return nil, fmt.Errorf("%w: description is required", apperrors.ErrValidation)
	case len(in.Description) > maxTransactionDescriptionLength:
		return nil, fmt.Errorf("%w: description exceeds %d characters", apperrors.ErrValidation, maxTransactionDescriptionLength)
	case !models.IsValidTransactionType(string(in.Type)):
		return nil, fmt.Errorf("%w: unknown transaction type %q", apperrors.ErrValidation, in.Type)
	}
	if own != nil && *own != in.DistrictID {
		return nil, fmt.Errorf("%w: district is outside your jurisdiction", apperrors.ErrUnauthorized)
	}

	actorID := actor.ID
	t := &models.FundTransaction{
		DistrictID:  in.DistrictID,
		Amount:      in.Amount,
		Description: in.Description,
		Type:        in.Type,
		Status:      models.TransactionPending,
		CreatedBy:   &actorID,
	}
	entry := &models.AuditLogEntry{
		UserID:     &actorID,
		Action:     models.AuditActionCreate,
		EntityType: models.AuditEntityTypeTransaction,
		NewValues: map[string]any{
			"district_id": in.DistrictID.String(),
			"amount":      in.Amount,
			"type":        string(in.Type),
		},
	}
	if err := s.repo.Create(ctx, t, entry); err != nil {
		return nil, err
	}

	s.logger.Info("Fund transaction recorded",
		zap.String("transaction_id", t.ID.String()),
		zap.String("district_id", t.DistrictID.String()),
		zap.Int64("amount", t.Amount),
		zap.String("type", string(t.Type)))
	return t, nil
}

func (s *transactionService) List(ctx context.Context, actor TransactionActor, filter models.TransactionFilter) ([]*models.FundTransaction, error) {
	own, err := ownDistrict(actor)
	if err != nil {
		return nil, err
	}
	if own != nil {
		filter.DistrictID = own
	}
	if filter.Status != nil && !models.IsValidTransactionStatus(string(*filter.Status)) {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, *filter.Status)
	}
	if filter.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", apperrors.ErrValidation)
	}
	if filter.Limit == 0 || filter.Limit > models.MaxTransactionListLimit {
		filter.Limit = models.MaxTransactionListLimit
	}
	return s.repo.List(ctx, filter)
}

package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

// TransactionRepository defines data access for district fund transactions.
type TransactionRepository interface {
	// Create stores the transaction and its audit entry in one transaction.
	// An unknown district is ErrValidation.
	Create(ctx context.Context, t *models.FundTransaction, audit *models.AuditLogEntry) error
	List(ctx context.Context, filter models.TransactionFilter) ([]*models.FundTransaction, error)
}

type transactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() TransactionRepository {
	return &transactionRepository{}
}

var _ TransactionRepository = (*transactionRepository)(nil)

const transactionColumns = `id, district_id, amount, description, transaction_type, status, created_by, created_at`

func scanTransaction(row pgx.Row) (*models.FundTransaction, error) {
	var t models.FundTransaction
	if err := row.Scan(&t.ID, &t.DistrictID, &t.Amount, &t.Description, &t.Type, &t.Status, &t.CreatedBy, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepository) Create(ctx context.Context, t *models.FundTransaction, audit *models.AuditLogEntry) (err error) {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return wrap("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO fund_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.DistrictID, t.Amount, t.Description, t.Type, t.Status, t.CreatedBy, t.CreatedAt,
	)
	if err != nil {
		switch pgCode(err) {
		case pgFKViolation:
			return fmt.Errorf("%w: unknown district %s", apperrors.ErrValidation, t.DistrictID)
		case pgCheckViolation:
			return fmt.Errorf("%w: invalid transaction", apperrors.ErrValidation)
		}
		return wrap("create fund transaction", err)
	}

	if audit != nil {
		audit.EntityID = t.ID
		if err = insertAudit(ctx, tx, audit); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return wrap("commit transaction", err)
	}
	return nil
}

func (r *transactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]*models.FundTransaction, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Limit <= 0 || filter.Limit > models.MaxTransactionListLimit {
		filter.Limit = models.MaxTransactionListLimit
	}

	var conds []string
	var args []any
	if filter.DistrictID != nil {
		args = append(args, *filter.DistrictID)
		conds = append(conds, fmt.Sprintf("district_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit)

	rows, err := scope.Conn.Query(ctx, fmt.Sprintf(`SELECT %s FROM fund_transactions%s ORDER BY created_at DESC LIMIT $%d`,
		transactionColumns, where, len(args)), args...)
	if err != nil {
		return nil, wrap("list fund transactions", err)
	}
	defer rows.Close()

	list := []*models.FundTransaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fund transaction: %w", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate fund transactions", err)
	}
	return list, nil
}

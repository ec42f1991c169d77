package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fiscal-tracker/fiscal-engine/pkg/database"
)

// querier is satisfied by both a scoped connection and a transaction, so
// insert helpers can run standalone or as part of a larger write.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var errNoScope = errors.New("no database scope in context")

func getScope(ctx context.Context) (*database.Scope, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, errNoScope
	}
	return scope, nil
}

// wrap classifies err and prefixes it with what failed.
func wrap(what string, err error) error {
	return fmt.Errorf("failed to %s: %w", what, database.ClassifyError(err))
}

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	pgFKViolation     = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

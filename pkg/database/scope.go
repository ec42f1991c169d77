package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Scope is a connection held for the lifetime of one request or one unit of
// background work. Repositories read it from the context.
type Scope struct {
	Conn *pgxpool.Conn
}

// Close releases the connection back to the pool. Safe to call twice.
func (s *Scope) Close() {
	if s.Conn == nil {
		return
	}
	s.Conn.Release()
	s.Conn = nil
}

// Acquire takes a connection from the pool. The returned Scope MUST be
// closed with defer scope.Close().
func (db *DB) Acquire(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", ClassifyError(err))
	}
	return &Scope{Conn: conn}, nil
}

type contextKey string

// ScopeKey is the context key for storing the request-scoped connection.
const ScopeKey contextKey = "dbScope"

// GetScope retrieves the scoped database connection from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok && scope != nil && scope.Conn != nil
}

// SetScope stores the scoped database connection in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// ScopeProvider hands out scoped contexts to code running outside an HTTP
// request, such as the notification worker.
type ScopeProvider interface {
	WithScope(ctx context.Context) (context.Context, func(), error)
}

type poolScopeProvider struct {
	db *DB
}

// NewScopeProvider creates a ScopeProvider backed by db.
func NewScopeProvider(db *DB) ScopeProvider {
	return &poolScopeProvider{db: db}
}

// WithScope returns a context carrying a fresh connection. The cleanup
// function must be called when the work is done.
func (p *poolScopeProvider) WithScope(ctx context.Context) (context.Context, func(), error) {
	scope, err := p.db.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), scope.Close, nil
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create inserts a user. A taken login id is ErrConflict.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByLoginID(ctx context.Context, loginID string) (*models.User, error)
	// List returns users ordered by role level then login id. A nil role lists everybody.
	List(ctx context.Context, role *models.Role) ([]*models.User, error)
	// FindOfficer returns an active official of role, preferring one whose
	// district matches districtID. Returns ErrNotFound when nobody holds the role.
	FindOfficer(ctx context.Context, role models.Role, districtID *uuid.UUID) (*models.User, error)
}

// userRepository implements UserRepository using PostgreSQL.
type userRepository struct{}

// NewUserRepository creates a new user repository.
func NewUserRepository() UserRepository {
	return &userRepository{}
}

var _ UserRepository = (*userRepository)(nil)

const userColumns = `id, login_id, display_name, email, role, password_hash,
	district_id, tehsil_id, village_id, active, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.LoginID, &u.DisplayName, &u.Email, &u.Role, &u.PasswordHash,
		&u.DistrictID, &u.TehsilID, &u.VillageID, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = scope.Conn.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		user.ID, user.LoginID, user.DisplayName, user.Email, user.Role, user.PasswordHash,
		user.DistrictID, user.TehsilID, user.VillageID, user.Active, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return fmt.Errorf("%w: login id %q is taken", apperrors.ErrConflict, user.LoginID)
		case pgFKViolation:
			return fmt.Errorf("%w: unknown location", apperrors.ErrValidation)
		}
		return wrap("create user", err)
	}
	return nil
}

func (r *userRepository) get(ctx context.Context, where string, arg any) (*models.User, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	u, err := scanUser(scope.Conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, wrap("get user", err)
	}
	return u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *userRepository) GetByLoginID(ctx context.Context, loginID string) (*models.User, error) {
	return r.get(ctx, "login_id = $1", loginID)
}

func (r *userRepository) List(ctx context.Context, role *models.Role) ([]*models.User, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE $1::text IS NULL OR role = $1
		ORDER BY array_position(ARRAY['citizen','sarpanch','tehsil','district','admin'], role), login_id`,
		role)
	if err != nil {
		return nil, wrap("list users", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate users", err)
	}
	return users, nil
}

func (r *userRepository) FindOfficer(ctx context.Context, role models.Role, districtID *uuid.UUID) (*models.User, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	u, err := scanUser(scope.Conn.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = $1 AND active
		ORDER BY (district_id IS NOT DISTINCT FROM $2) DESC, created_at
		LIMIT 1`, role, districtID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, wrap("find officer", err)
	}
	return u, nil
}

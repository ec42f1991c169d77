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
	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/repositories"
)

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// CreateUserInput describes a new portal account.
type CreateUserInput struct {
	LoginID     string      `json:"login_id"`
	DisplayName string      `json:"display_name"`
	Email       *string     `json:"email"`
	Password    string      `json:"password"`
	Role        models.Role `json:"role"`
	DistrictID  *uuid.UUID  `json:"district_id"`
	TehsilID    *uuid.UUID  `json:"tehsil_id"`
	VillageID   *uuid.UUID  `json:"village_id"`
}

// UserService defines the interface for account operations.
type UserService interface {
	// Login checks credentials and issues a session token.
	// Unknown logins, wrong passwords and inactive accounts all return
	// ErrInvalidCredentials.
	Login(ctx context.Context, loginID, password, clientIP string) (*LoginResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	// Create registers an account. Only admins create officials.
	Create(ctx context.Context, actorRole models.Role, in *CreateUserInput) (*models.User, error)
	List(ctx context.Context, role *models.Role) ([]*models.User, error)
}

// userService implements UserService.
type userService struct {
	userRepo   repositories.UserRepository
	tokens     auth.TokenManager
	auditor    *audit.SecurityAuditor
	bcryptCost int
	logger     *zap.Logger
}

// NewUserService creates a new user service with dependencies.
func NewUserService(
	userRepo repositories.UserRepository,
	tokens auth.TokenManager,
	auditor *audit.SecurityAuditor,
	bcryptCost int,
	logger *zap.Logger,
) UserService {
	return &userService{
		userRepo:   userRepo,
		tokens:     tokens,
		auditor:    auditor,
		bcryptCost: bcryptCost,
		logger:     logger.Named("users"),
	}
}

var _ UserService = (*userService)(nil)

func (s *userService) Login(ctx context.Context, loginID, password, clientIP string) (*LoginResult, error) {
	loginID = strings.TrimSpace(loginID)
	if loginID == "" || password == "" {
		return nil, fmt.Errorf("%w: login id and password are required", apperrors.ErrValidation)
	}

	user, err := s.userRepo.GetByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.auditor.LogLoginFailure(ctx, loginID, "unknown login", clientIP)
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		s.auditor.LogLoginFailure(ctx, loginID, "wrong password", clientIP)
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.Active {
		s.auditor.LogLoginFailure(ctx, loginID, "inactive account", clientIP)
		return nil, apperrors.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)))

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *userService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *userService) Create(ctx context.Context, actorRole models.Role, in *CreateUserInput) (*models.User, error) {
	if actorRole != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins create accounts", apperrors.ErrUnauthorized)
	}

	in.LoginID = strings.TrimSpace(in.LoginID)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.LoginID == "" || in.DisplayName == "" {
		return nil, fmt.Errorf("%w: login id and display name are required", apperrors.ErrValidation)
	}
	if !models.IsValidRole(string(in.Role)) {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, in.Role)
	}
	if len(in.Password) < auth.MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, auth.MinPasswordLength)
	}
	if err := checkJurisdiction(in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		LoginID:      in.LoginID,
		DisplayName:  in.DisplayName,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: hash,
		DistrictID:   in.DistrictID,
		TehsilID:     in.TehsilID,
		VillageID:    in.VillageID,
		Active:       true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)))
	return user, nil
}

// checkJurisdiction requires officials below admin to carry the location
// reference of their own level.
func checkJurisdiction(in *CreateUserInput) error {
	var missing string
	switch in.Role {
	case models.RoleSarpanch:
		if in.VillageID == nil {
			missing = "village_id"
		}
	case models.RoleTehsil:
		if in.TehsilID == nil {
			missing = "tehsil_id"
		}
	case models.RoleDistrict:
		if in.DistrictID == nil {
			missing = "district_id"
		}
	}
	if missing != "" {
		return fmt.Errorf("%w: %s role requires %s", apperrors.ErrValidation, in.Role, missing)
	}
	return nil
}

func (s *userService) List(ctx context.Context, role *models.Role) ([]*models.User, error) {
	if role != nil && !models.IsValidRole(string(*role)) {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, *role)
	}
	return s.userRepo.List(ctx, role)
}

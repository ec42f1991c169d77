package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services/workflow"
)

// Actor is the authenticated caller as seen by services.
type Actor struct {
	ID           uuid.UUID
	Role         models.Role
	Jurisdiction workflow.Jurisdiction
}

// GetUserIDFromContext extracts the user ID from token claims in the context.
// Returns empty string if not authenticated.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// GetUserUUIDFromContext extracts the user ID from token claims and parses it as UUID.
func GetUserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return uuid.Nil, false
	}
	id, err := claims.UserID()
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// RequireActor returns the authenticated caller or an error when the
// context carries no valid claims.
func RequireActor(ctx context.Context) (*Actor, error) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return nil, fmt.Errorf("authentication required: no claims in context")
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	role := claims.UserRole()
	if !models.IsValidRole(string(role)) {
		return nil, fmt.Errorf("invalid role %q in token claims", claims.Role)
	}
	return &Actor{ID: id, Role: role, Jurisdiction: claims.Jurisdiction()}, nil
}

// OptionalActor returns the caller when one is authenticated, otherwise nil.
func OptionalActor(ctx context.Context) *Actor {
	actor, err := RequireActor(ctx)
	if err != nil {
		return nil
	}
	return actor
}

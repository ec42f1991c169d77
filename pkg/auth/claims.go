// Package auth issues and validates the signed session tokens that carry a
// portal user's identity, role, and jurisdiction.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services/workflow"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing token claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw token string.
	TokenKey contextKey = "token"
)

// Claims is the payload of a portal session token.
// Subject holds the user UUID.
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	DistrictID string `json:"did,omitempty"`
	TehsilID   string `json:"tid,omitempty"`
	VillageID  string `json:"vid,omitempty"`
}

// NewClaims builds claims for user. Jurisdiction fields are copied when set.
func NewClaims(user *models.User) *Claims {
	c := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID.String()},
		Role:             string(user.Role),
	}
	if user.DistrictID != nil {
		c.DistrictID = user.DistrictID.String()
	}
	if user.TehsilID != nil {
		c.TehsilID = user.TehsilID.String()
	}
	if user.VillageID != nil {
		c.VillageID = user.VillageID.String()
	}
	return c
}

// UserID parses Subject as a UUID.
func (c *Claims) UserID() (uuid.UUID, error) {
	if c.Subject == "" {
		return uuid.Nil, fmt.Errorf("missing user ID in token claims")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user ID format: %w", err)
	}
	return id, nil
}

// UserRole returns the role carried by the token.
func (c *Claims) UserRole() models.Role {
	return models.Role(c.Role)
}

// Jurisdiction returns the area the token holder is responsible for.
func (c *Claims) Jurisdiction() workflow.Jurisdiction {
	return workflow.Jurisdiction{
		DistrictID: c.DistrictID,
		TehsilID:   c.TehsilID,
		VillageID:  c.VillageID,
	}
}

// GetClaims retrieves token claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw token string from the request context.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// WithClaims returns a context carrying claims and the raw token.
func WithClaims(ctx context.Context, claims *Claims, token string) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return context.WithValue(ctx, TokenKey, token)
}

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates authentication logic to AuthService.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth validates the session token and sets claims and token in
// context for downstream handlers.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		next(w, r.WithContext(WithClaims(r.Context(), claims, token)))
	}
}

// OptionalAuth attaches claims when a valid token is present and otherwise
// lets the request through anonymously. An invalid token is still rejected.
func (m *Middleware) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		switch {
		case err == nil:
			next(w, r.WithContext(WithClaims(r.Context(), claims, token)))
		case errors.Is(err, ErrMissingAuthorization):
			next(w, r)
		default:
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Invalid session")
		}
	}
}

// RequireRole allows the request only when the claims carry one of roles.
// It must run after RequireAuth.
func RequireRole(roles ...models.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok || claims == nil {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			if !slices.Contains(roles, claims.UserRole()) {
				writeAuthError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
				return
			}
			next(w, r)
		}
	}
}

// RequireOfficial allows every role that takes part in approvals.
func RequireOfficial() func(http.HandlerFunc) http.HandlerFunc {
	return RequireRole(models.RoleSarpanch, models.RoleTehsil, models.RoleDistrict, models.RoleAdmin)
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}

package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

// UsersHandler manages portal accounts. Admin only.
type UsersHandler struct {
	users  services.UserService
	logger *zap.Logger
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(users services.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{users: users, logger: logger}
}

// RegisterRoutes registers the users handler's routes on the given mux.
func (h *UsersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	adminOnly := auth.RequireRole(models.RoleAdmin)
	mux.HandleFunc("GET /api/users", authMiddleware.RequireAuth(adminOnly(scope(h.List))))
	mux.HandleFunc("POST /api/users", authMiddleware.RequireAuth(adminOnly(scope(h.Create))))
}

// List handles GET /api/users?role=
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	var role *models.Role
	if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
		rl := models.Role(raw)
		role = &rl
	}

	users, err := h.users.List(r.Context(), role)
	if err != nil {
		writeServiceError(w, h.logger, "List users", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, users)
}

// Create handles POST /api/users
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var in services.CreateUserInput
	if !decodeJSON(w, r, h.logger, &in) {
		return
	}

	user, err := h.users.Create(r.Context(), actor.Role, &in)
	if err != nil {
		writeServiceError(w, h.logger, "Create user", err)
		return
	}
	writeData(w, h.logger, http.StatusCreated, user)
}

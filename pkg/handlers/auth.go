package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	LoginID  string `json:"login_id"`
	Password string `json:"password"`
}

// AuthHandler handles login, logout and the current-user lookup.
type AuthHandler struct {
	users    services.UserService
	sessions *auth.SessionStore
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. sessions may be nil, in which
// case only the bearer token is returned.
func NewAuthHandler(users services.UserService, sessions *auth.SessionStore, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, logger: logger}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/auth/login", scope(h.Login))
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/auth/me", authMiddleware.RequireAuth(scope(h.Me)))
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	result, err := h.users.Login(r.Context(), req.LoginID, req.Password, clientIP(r))
	if err != nil {
		writeServiceError(w, h.logger, "Login", err)
		return
	}

	if h.sessions != nil {
		if err := h.sessions.Save(w, r, result.Token); err != nil {
			h.logger.Error("Failed to save session cookie", zap.Error(err))
			writeError(w, h.logger, http.StatusInternalServerError, "session_error", "Failed to start session")
			return
		}
	}

	writeData(w, h.logger, http.StatusOK, result)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		if err := h.sessions.Clear(w, r); err != nil {
			h.logger.Warn("Failed to clear session cookie", zap.Error(err))
		}
	}
	writeData(w, h.logger, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	user, err := h.users.Get(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, h.logger, "Get current user", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, user)
}

package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

// NotificationsHandler exposes the caller's notification inbox.
type NotificationsHandler struct {
	notifications services.NotificationService
	logger        *zap.Logger
}

// NewNotificationsHandler creates a new NotificationsHandler.
func NewNotificationsHandler(notifications services.NotificationService, logger *zap.Logger) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications, logger: logger}
}

// RegisterRoutes registers the notifications handler's routes on the given mux.
func (h *NotificationsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/notifications", authMiddleware.RequireAuth(scope(h.List)))
	mux.HandleFunc("POST /api/notifications/{id}/read", authMiddleware.RequireAuth(scope(h.MarkRead)))
}

// List handles GET /api/notifications?unread=true&limit=
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserUUIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	unread := r.URL.Query().Get("unread") == "true"
	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
		return
	}

	list, err := h.notifications.List(r.Context(), userID, unread, limit)
	if err != nil {
		writeServiceError(w, h.logger, "List notifications", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, list)
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserUUIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(r.Context(), userID, id); err != nil {
		writeServiceError(w, h.logger, "Mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

// AuditHandler exposes the non-workflow audit log to district officers and admins.
type AuditHandler struct {
	trail  services.AuditTrailService
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(trail services.AuditTrailService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{trail: trail, logger: logger}
}

// RegisterRoutes registers the audit handler's routes on the given mux.
func (h *AuditHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	reviewers := auth.RequireRole(models.RoleDistrict, models.RoleAdmin)
	mux.HandleFunc("GET /api/audit/{entity}/{id}", authMiddleware.RequireAuth(reviewers(scope(h.Trail))))
}

// Trail handles GET /api/audit/{entity}/{id}
func (h *AuditHandler) Trail(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	entries, err := h.trail.Trail(r.Context(), r.PathValue("entity"), id)
	if err != nil {
		writeServiceError(w, h.logger, "Audit trail", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, entries)
}

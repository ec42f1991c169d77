package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

// GrievanceStatusRequest is the body of PATCH /api/grievances/{id}/status.
type GrievanceStatusRequest struct {
	Status     models.GrievanceStatus `json:"status"`
	AssignedTo *uuid.UUID             `json:"assigned_to,omitempty"`
}

// GrievancesHandler accepts public grievances and lets officials work them.
type GrievancesHandler struct {
	grievances services.GrievanceService
	logger     *zap.Logger
}

// NewGrievancesHandler creates a new GrievancesHandler.
func NewGrievancesHandler(grievances services.GrievanceService, logger *zap.Logger) *GrievancesHandler {
	return &GrievancesHandler{grievances: grievances, logger: logger}
}

// RegisterRoutes registers the grievances handler's routes on the given mux.
func (h *GrievancesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	officials := auth.RequireOfficial()
	mux.HandleFunc("POST /api/grievances", authMiddleware.OptionalAuth(scope(h.Submit)))
	mux.HandleFunc("GET /api/grievances", authMiddleware.RequireAuth(officials(scope(h.List))))
	mux.HandleFunc("GET /api/grievances/{id}", authMiddleware.RequireAuth(officials(scope(h.Get))))
	mux.HandleFunc("PATCH /api/grievances/{id}/status", authMiddleware.RequireAuth(officials(scope(h.UpdateStatus))))
}

// Submit handles POST /api/grievances. Anonymous submissions are accepted.
func (h *GrievancesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in services.GrievanceInput
	if !decodeJSON(w, r, h.logger, &in) {
		return
	}

	var submitter *uuid.UUID
	if id, ok := auth.GetUserUUIDFromContext(r.Context()); ok {
		submitter = &id
	}

	g, err := h.grievances.Submit(r.Context(), submitter, &in, clientIP(r))
	if err != nil {
		writeServiceError(w, h.logger, "Submit grievance", err)
		return
	}
	writeData(w, h.logger, http.StatusCreated, g)
}

// List handles GET /api/grievances?status=&district_id=&village_id=&limit=
// District officers only see grievances of their own district.
func (h *GrievancesHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var filter models.GrievanceFilter
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		st := models.GrievanceStatus(raw)
		filter.Status = &st
	}
	var ok bool
	if filter.DistrictID, ok = queryUUID(r, "district_id"); !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_district_id", "district_id must be a UUID")
		return
	}
	if filter.VillageID, ok = queryUUID(r, "village_id"); !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_village_id", "village_id must be a UUID")
		return
	}
	if filter.Limit, ok = queryInt(r, "limit", 0); !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
		return
	}

	if actor.Role == models.RoleDistrict {
		own, err := uuid.Parse(actor.Jurisdiction.DistrictID)
		if err != nil {
			writeError(w, h.logger, http.StatusForbidden, "no_jurisdiction", "Account has no district assigned")
			return
		}
		filter.DistrictID = &own
	}

	list, err := h.grievances.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "List grievances", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, list)
}

// Get handles GET /api/grievances/{id}
func (h *GrievancesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	g, err := h.grievances.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Get grievance", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, g)
}

// UpdateStatus handles PATCH /api/grievances/{id}/status
func (h *GrievancesHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var body GrievanceStatusRequest
	if !decodeJSON(w, r, h.logger, &body) {
		return
	}

	g, err := h.grievances.UpdateStatus(r.Context(), actor.ID, id, body.Status, body.AssignedTo)
	if err != nil {
		writeServiceError(w, h.logger, "Update grievance status", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, g)
}

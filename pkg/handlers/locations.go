package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

// LocationsHandler serves the district, tehsil and village hierarchy.
type LocationsHandler struct {
	locations services.LocationService
	logger    *zap.Logger
}

// NewLocationsHandler creates a new LocationsHandler.
func NewLocationsHandler(locations services.LocationService, logger *zap.Logger) *LocationsHandler {
	return &LocationsHandler{locations: locations, logger: logger}
}

// RegisterRoutes registers the locations handler's routes on the given mux.
// All routes are public.
func (h *LocationsHandler) RegisterRoutes(mux *http.ServeMux, _ *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/districts", scope(h.Districts))
	mux.HandleFunc("GET /api/districts/{id}/tehsils", scope(h.Tehsils))
	mux.HandleFunc("GET /api/tehsils/{id}/villages", scope(h.Villages))
}

func (h *LocationsHandler) Districts(w http.ResponseWriter, r *http.Request) {
	list, err := h.locations.ListDistricts(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "List districts", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, list)
}

func (h *LocationsHandler) Tehsils(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	list, err := h.locations.ListTehsils(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "List tehsils", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, list)
}

func (h *LocationsHandler) Villages(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	list, err := h.locations.ListVillages(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "List villages", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, list)
}

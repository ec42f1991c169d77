package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

// TransactionsHandler records and lists district fund transactions.
type TransactionsHandler struct {
	transactions services.TransactionService
	logger       *zap.Logger
}

// NewTransactionsHandler creates a new TransactionsHandler.
func NewTransactionsHandler(transactions services.TransactionService, logger *zap.Logger) *TransactionsHandler {
	return &TransactionsHandler{transactions: transactions, logger: logger}
}

// RegisterRoutes registers the transactions handler's routes on the given mux.
func (h *TransactionsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	treasury := auth.RequireRole(models.RoleDistrict, models.RoleAdmin)
	mux.HandleFunc("GET /api/transactions", authMiddleware.RequireAuth(treasury(scope(h.List))))
	mux.HandleFunc("POST /api/transactions", authMiddleware.RequireAuth(treasury(scope(h.Create))))
}

func transactionActor(r *http.Request) (services.TransactionActor, bool) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		return services.TransactionActor{}, false
	}
	return services.TransactionActor{ID: actor.ID, Role: actor.Role, DistrictID: actor.Jurisdiction.DistrictID}, true
}

// List handles GET /api/transactions?district_id=&status=&limit=
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := transactionActor(r)
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var filter models.TransactionFilter
	if filter.DistrictID, ok = queryUUID(r, "district_id"); !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_district_id", "district_id must be a UUID")
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		st := models.TransactionStatus(raw)
		filter.Status = &st
	}
	if filter.Limit, ok = queryInt(r, "limit", 0); !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
		return
	}

	list, err := h.transactions.List(r.Context(), actor, filter)
	if err != nil {
		writeServiceError(w, h.logger, "List transactions", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, list)
}

// Create handles POST /api/transactions
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := transactionActor(r)
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var in services.CreateTransactionInput
	if !decodeJSON(w, r, h.logger, &in) {
		return
	}

	t, err := h.transactions.Create(r.Context(), actor, &in)
	if err != nil {
		writeServiceError(w, h.logger, "Create transaction", err)
		return
	}
	writeData(w, h.logger, http.StatusCreated, t)
}

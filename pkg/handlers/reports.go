package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportsHandler streams spreadsheet exports.
type ReportsHandler struct {
	reports services.ReportService
	logger  *zap.Logger
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(reports services.ReportService, logger *zap.Logger) *ReportsHandler {
	return &ReportsHandler{reports: reports, logger: logger}
}

// RegisterRoutes registers the reports handler's routes on the given mux.
func (h *ReportsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/reports/projects.xlsx",
		authMiddleware.RequireAuth(auth.RequireOfficial()(scope(h.Projects))))
}

// Projects handles GET /api/reports/projects.xlsx. Accepts the same filters
// as the project listing; paging parameters are ignored.
func (h *ReportsHandler) Projects(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseProjectFilter(w, r, h.logger)
	if !ok {
		return
	}

	f, filename, err := h.reports.ProjectsWorkbook(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "Build project report", err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			h.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := f.WriteTo(w); err != nil {
		h.logger.Error("Failed to write project report", zap.Error(err))
	}
}

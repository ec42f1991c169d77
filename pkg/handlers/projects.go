package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

// ActionRequest is the body of POST /api/projects/{id}/actions.
type ActionRequest struct {
	Action        models.Action `json:"action"`
	ClaimedStage  models.Stage  `json:"claimed_stage"`
	Remarks       *string       `json:"remarks,omitempty"`
	AttachmentRef *string       `json:"attachment_ref,omitempty"`
}

// BudgetUpdateRequest is the body of PATCH /api/projects/{id}/budget.
type BudgetUpdateRequest struct {
	Allocated int64 `json:"allocated"`
	Utilized  int64 `json:"utilized"`
}

// ProjectsHandler serves the public project listing and the approval actions.
type ProjectsHandler struct {
	projects  services.ProjectService
	approvals services.ApprovalService
	logger    *zap.Logger
}

// NewProjectsHandler creates a new ProjectsHandler.
func NewProjectsHandler(projects services.ProjectService, approvals services.ApprovalService, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{
		projects:  projects,
		approvals: approvals,
		logger:    logger,
	}
}

// RegisterRoutes registers the projects handler's routes on the given mux.
func (h *ProjectsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	// Public transparency endpoints
	mux.HandleFunc("GET /api/projects", scope(h.List))
	mux.HandleFunc("GET /api/projects/{id}", scope(h.Get))
	mux.HandleFunc("GET /api/projects/{id}/history", scope(h.History))
	mux.HandleFunc("GET /api/projects/{id}/workflow", scope(h.Workflow))
	mux.HandleFunc("GET /api/budget/summary", scope(h.Summary))

	creators := auth.RequireRole(models.RoleSarpanch, models.RoleAdmin)
	budgetEditors := auth.RequireRole(models.RoleDistrict, models.RoleAdmin)
	mux.HandleFunc("POST /api/projects",
		authMiddleware.RequireAuth(creators(scope(h.Create))))
	mux.HandleFunc("POST /api/projects/{id}/actions",
		authMiddleware.RequireAuth(auth.RequireOfficial()(scope(h.SubmitAction))))
	mux.HandleFunc("PATCH /api/projects/{id}/budget",
		authMiddleware.RequireAuth(budgetEditors(scope(h.UpdateBudget))))
}

// List handles GET /api/projects
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseProjectFilter(w, r, h.logger)
	if !ok {
		return
	}

	page, err := h.projects.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "List projects", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, page)
}

// Get handles GET /api/projects/{id}
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	project, err := h.projects.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Get project", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, project)
}

// History handles GET /api/projects/{id}/history
func (h *ProjectsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	entries, err := h.approvals.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Get approval history", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, entries)
}

// Workflow handles GET /api/projects/{id}/workflow
func (h *ProjectsHandler) Workflow(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	wf, err := h.approvals.Workflow(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "Get workflow", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, wf)
}

// Summary handles GET /api/budget/summary
func (h *ProjectsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.projects.Summary(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "Get budget summary", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, summary)
}

// Create handles POST /api/projects
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var in services.CreateProjectInput
	if !decodeJSON(w, r, h.logger, &in) {
		return
	}

	project, err := h.projects.Create(r.Context(), actor.ID, actor.Role, &in)
	if err != nil {
		writeServiceError(w, h.logger, "Create project", err)
		return
	}
	writeData(w, h.logger, http.StatusCreated, project)
}

// SubmitAction handles POST /api/projects/{id}/actions
func (h *ProjectsHandler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var body ActionRequest
	if !decodeJSON(w, r, h.logger, &body) {
		return
	}

	result, err := h.approvals.SubmitAction(r.Context(), &services.ActionRequest{
		ProjectID:         id,
		Action:            body.Action,
		ActorID:           actor.ID,
		ActorRole:         actor.Role,
		ActorJurisdiction: actor.Jurisdiction,
		ClaimedStage:      body.ClaimedStage,
		Remarks:           body.Remarks,
		AttachmentRef:     body.AttachmentRef,
	})
	if err != nil {
		writeServiceError(w, h.logger, "Submit approval action", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, result)
}

// UpdateBudget handles PATCH /api/projects/{id}/budget
func (h *ProjectsHandler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var body BudgetUpdateRequest
	if !decodeJSON(w, r, h.logger, &body) {
		return
	}

	project, err := h.projects.UpdateBudget(r.Context(), actor.ID, actor.Role, id, body.Allocated, body.Utilized)
	if err != nil {
		writeServiceError(w, h.logger, "Update project budget", err)
		return
	}
	writeData(w, h.logger, http.StatusOK, project)
}

package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

// UploadRequest is the body of POST /api/attachments.
type UploadRequest struct {
	Purpose  string `json:"purpose"`
	Filename string `json:"filename"`
}

// AttachmentsHandler hands out presigned upload URLs.
type AttachmentsHandler struct {
	attachments services.AttachmentService
	logger      *zap.Logger
}

// NewAttachmentsHandler creates a new AttachmentsHandler.
func NewAttachmentsHandler(attachments services.AttachmentService, logger *zap.Logger) *AttachmentsHandler {
	return &AttachmentsHandler{attachments: attachments, logger: logger}
}

// RegisterRoutes registers the attachments handler's routes on the given mux.
func (h *AttachmentsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/attachments", authMiddleware.OptionalAuth(scope(h.CreateUpload)))
}

// CreateUpload handles POST /api/attachments.
// Remark attachments need an official; grievance attachments may be anonymous.
func (h *AttachmentsHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	if req.Purpose == services.AttachmentPurposeRemark {
		actor, err := auth.RequireActor(r.Context())
		if err != nil {
			writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		if !actor.Role.IsOfficial() {
			writeError(w, h.logger, http.StatusForbidden, "forbidden", "Only officials may attach files to remarks")
			return
		}
	}

	ticket, err := h.attachments.CreateUpload(r.Context(), req.Purpose, req.Filename)
	if err != nil {
		writeServiceError(w, h.logger, "Create attachment upload", err)
		return
	}
	writeData(w, h.logger, http.StatusCreated, ticket)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/logging"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ApiResponse wraps successful payloads.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(errorBody{
		Error:     errorCode,
		Message:   message,
		Retryable: statusCode == http.StatusServiceUnavailable,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

type errorMapping struct {
	target    error
	status    int
	code      string
	retryable bool
	// expose sends err.Error() to the client instead of a fixed message.
	expose  bool
	message string
}

var errorMappings = []errorMapping{
	{target: apperrors.ErrValidation, status: http.StatusBadRequest, code: "validation_error", expose: true},
	{target: apperrors.ErrInvalidRole, status: http.StatusBadRequest, code: "invalid_role", expose: true},
	{target: apperrors.ErrBudgetInvariant, status: http.StatusBadRequest, code: "budget_invariant", expose: true},
	{target: apperrors.ErrInvalidCredentials, status: http.StatusUnauthorized, code: "invalid_credentials", message: "Invalid login id or password"},
	{target: apperrors.ErrUnauthorized, status: http.StatusForbidden, code: "unauthorized_action", expose: true},
	{target: apperrors.ErrNotFound, status: http.StatusNotFound, code: "not_found", message: "Resource not found"},
	{target: apperrors.ErrStaleState, status: http.StatusConflict, code: "stale_state", retryable: true, expose: true},
	{target: apperrors.ErrTerminalState, status: http.StatusConflict, code: "terminal_state", expose: true},
	{target: apperrors.ErrConflict, status: http.StatusConflict, code: "conflict", expose: true},
	{target: apperrors.ErrTransientStore, status: http.StatusServiceUnavailable, code: "store_unavailable", retryable: true, message: "Service temporarily unavailable, retry shortly"},
	{target: services.ErrStorageDisabled, status: http.StatusServiceUnavailable, code: "storage_disabled", message: "Attachment uploads are not enabled"},
}

// writeServiceError maps a service error onto an HTTP status through
// errors.Is. Unknown errors become a 500 and are logged with op.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.message
		if m.expose {
			msg = err.Error()
		}
		if m.status >= http.StatusInternalServerError {
			logger.Warn(op+" failed", zap.String("error", logging.SanitizeError(err)))
		}
		writeErrorBody(w, logger, m.status, errorBody{Error: m.code, Message: msg, Retryable: m.retryable})
		return
	}

	logger.Error(op+" failed", zap.String("error", logging.SanitizeError(err)))
	writeErrorBody(w, logger, http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "Internal server error"})
}

func writeErrorBody(w http.ResponseWriter, logger *zap.Logger, status int, body errorBody) {
	if err := WriteJSON(w, status, body); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeError writes a fixed error response and logs encoding failures.
func writeError(w http.ResponseWriter, logger *zap.Logger, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeData writes a success envelope and logs encoding failures.
func writeData(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are
// rejected. On failure a 400 has been written and false is returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, logger, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large")
			return false
		}
		writeError(w, logger, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}

package handlers

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

// ScopeMiddleware attaches a database connection to the request context.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// ParseID extracts and validates the {id} path parameter.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
func ParseID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_id", "Invalid ID format", logger)
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		logger.Debug("Invalid UUID path parameter",
			zap.String("param", pathParam),
			zap.String("value", idStr))
		writeError(w, logger, http.StatusBadRequest, errorCode, errorMessage)
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses an optional UUID query parameter. ok is false when the
// parameter is present but malformed.
func queryUUID(r *http.Request, name string) (id *uuid.UUID, ok bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}

// queryInt parses an optional integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseProjectFilter reads status, location and paging parameters.
// On failure a 400 has been written and false is returned.
func parseProjectFilter(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.ProjectFilter, bool) {
	var f models.ProjectFilter

	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		status := models.WorkflowStatus(s)
		f.Status = &status
	}

	for name, dst := range map[string]**uuid.UUID{
		"district_id": &f.DistrictID,
		"tehsil_id":   &f.TehsilID,
		"village_id":  &f.VillageID,
	} {
		id, ok := queryUUID(r, name)
		if !ok {
			writeError(w, logger, http.StatusBadRequest, "invalid_"+name, "Invalid "+name)
			return f, false
		}
		*dst = id
	}

	var ok bool
	if f.Limit, ok = queryInt(r, "limit", models.DefaultPageLimit); !ok {
		writeError(w, logger, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
		return f, false
	}
	if f.Offset, ok = queryInt(r, "offset", 0); !ok {
		writeError(w, logger, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
		return f, false
	}
	return f, true
}

// clientIP returns the first X-Forwarded-For hop, falling back to the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

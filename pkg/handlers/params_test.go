package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

func TestParseID(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name      string
		pathValue string
		wantOK    bool
	}{
		{"valid UUID", "550e8400-e29b-41d4-a716-446655440000", true},
		{"invalid UUID", "not-a-uuid", false},
		{"empty UUID", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.SetPathValue("id", tt.pathValue)
			rec := httptest.NewRecorder()

			id, ok := ParseID(rec, req, logger)

			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Equal(t, uuid.Nil, id)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, "invalid_id", decodeError(t, rec).Error)
				return
			}
			assert.Equal(t, tt.pathValue, id.String())
		})
	}
}

func TestParseProjectFilter(t *testing.T) {
	district := uuid.New()
	req := httptest.NewRequest(http.MethodGet,
		"/api/projects?status=approved&district_id="+district.String()+"&limit=10&offset=20", nil)
	rec := httptest.NewRecorder()

	f, ok := parseProjectFilter(rec, req, zap.NewNop())
	require.True(t, ok)

	require.NotNil(t, f.Status)
	assert.Equal(t, models.StatusApproved, *f.Status)
	require.NotNil(t, f.DistrictID)
	assert.Equal(t, district, *f.DistrictID)
	assert.Nil(t, f.TehsilID)
	assert.Nil(t, f.VillageID)
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, 20, f.Offset)
}

func TestParseProjectFilter_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	f, ok := parseProjectFilter(httptest.NewRecorder(), req, zap.NewNop())
	require.True(t, ok)
	assert.Nil(t, f.Status)
	assert.Equal(t, models.DefaultPageLimit, f.Limit)
	assert.Equal(t, 0, f.Offset)
}

func TestParseProjectFilter_Rejects(t *testing.T) {
	for _, query := range []string{"village_id=abc", "limit=ten", "offset=-x"} {
		t.Run(query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/projects?"+query, nil)
			rec := httptest.NewRecorder()
			_, ok := parseProjectFilter(rec, req, zap.NewNop())
			assert.False(t, ok)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}

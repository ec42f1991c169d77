package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

const grievanceBody = `{"name":"Asha","phone":"9876543210","title":"Road not built","message":"Work stopped in March"}`

func TestGrievancesHandler_Submit_Anonymous(t *testing.T) {
	svc := &mockGrievanceService{}
	mux := newTestMux(NewGrievancesHandler(svc, zap.NewNop()))

	req := httptest.NewRequest(http.MethodPost, "/api/grievances", strings.NewReader(grievanceBody))
	req.RemoteAddr = "198.51.100.7:4000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Nil(t, svc.gotSubmitter)
	assert.Equal(t, "198.51.100.7", svc.gotIP)
}

func TestGrievancesHandler_Submit_SignedIn(t *testing.T) {
	svc := &mockGrievanceService{}
	mux := newTestMux(NewGrievancesHandler(svc, zap.NewNop()))

	userID, token := bearer(models.RoleCitizen, "")
	req := httptest.NewRequest(http.MethodPost, "/api/grievances", strings.NewReader(grievanceBody))
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.gotSubmitter)
	assert.Equal(t, userID, *svc.gotSubmitter)
}

func TestGrievancesHandler_Submit_InvalidTokenRejected(t *testing.T) {
	svc := &mockGrievanceService{}
	mux := newTestMux(NewGrievancesHandler(svc, zap.NewNop()))

	req := httptest.NewRequest(http.MethodPost, "/api/grievances", strings.NewReader(grievanceBody))
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGrievancesHandler_Submit_ScreenedContent(t *testing.T) {
	svc := &mockGrievanceService{err: apperrors.ErrValidation}
	mux := newTestMux(NewGrievancesHandler(svc, zap.NewNop()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/grievances", strings.NewReader(grievanceBody)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGrievancesHandler_List_OfficialsOnly(t *testing.T) {
	svc := &mockGrievanceService{}
	mux := newTestMux(NewGrievancesHandler(svc, zap.NewNop()))

	_, token := bearer(models.RoleCitizen, "")
	req := httptest.NewRequest(http.MethodGet, "/api/grievances", nil)
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGrievancesHandler_List_DistrictScoped(t *testing.T) {
	svc := &mockGrievanceService{}
	mux := newTestMux(NewGrievancesHandler(svc, zap.NewNop()))

	own := uuid.New()
	_, token := bearer(models.RoleDistrict, own.String())
	req := httptest.NewRequest(http.MethodGet, "/api/grievances?status=open&district_id="+uuid.NewString(), nil)
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.gotFilter.DistrictID)
	assert.Equal(t, own, *svc.gotFilter.DistrictID)
	require.NotNil(t, svc.gotFilter.Status)
	assert.Equal(t, models.GrievanceOpen, *svc.gotFilter.Status)
}

func TestGrievancesHandler_List_AdminUsesQuery(t *testing.T) {
	svc := &mockGrievanceService{}
	mux := newTestMux(NewGrievancesHandler(svc, zap.NewNop()))

	district := uuid.New()
	_, token := bearer(models.RoleAdmin, "")
	req := httptest.NewRequest(http.MethodGet, "/api/grievances?district_id="+district.String(), nil)
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.gotFilter.DistrictID)
	assert.Equal(t, district, *svc.gotFilter.DistrictID)
}

func TestGrievancesHandler_UpdateStatus(t *testing.T) {
	svc := &mockGrievanceService{}
	mux := newTestMux(NewGrievancesHandler(svc, zap.NewNop()))

	_, token := bearer(models.RoleAdmin, "")
	req := httptest.NewRequest(http.MethodPatch, "/api/grievances/"+uuid.NewString()+"/status",
		strings.NewReader(`{"status":"resolved"}`))
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.GrievanceResolved, svc.gotStatus)
}

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

type mockAuditTrailService struct {
	entity string
	id     uuid.UUID
}

var _ services.AuditTrailService = (*mockAuditTrailService)(nil)

func (m *mockAuditTrailService) Trail(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLogEntry, error) {
	m.entity, m.id = entityType, entityID
	if entityType != models.AuditEntityTypeProject {
		return nil, fmt.Errorf("%w: unknown entity type %q", apperrors.ErrValidation, entityType)
	}
	return []*models.AuditLogEntry{{ID: uuid.New(), Action: models.AuditActionBudgetUpdate, EntityType: entityType, EntityID: entityID}}, nil
}

func TestAuditHandler_Trail(t *testing.T) {
	svc := &mockAuditTrailService{}
	mux := newTestMux(NewAuditHandler(svc, zap.NewNop()))
	project := uuid.New()

	_, token := bearer(models.RoleDistrict, uuid.NewString())
	req := httptest.NewRequest(http.MethodGet, "/api/audit/project/"+project.String(), nil)
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "project", svc.entity)
	assert.Equal(t, project, svc.id)
	assert.Contains(t, rec.Body.String(), models.AuditActionBudgetUpdate)
}

func TestAuditHandler_Rejects(t *testing.T) {
	mux := newTestMux(NewAuditHandler(&mockAuditTrailService{}, zap.NewNop()))
	_, admin := bearer(models.RoleAdmin, "")
	_, sarpanch := bearer(models.RoleSarpanch, "")

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"anonymous", "/api/audit/project/" + uuid.NewString(), "", http.StatusUnauthorized},
		{"sarpanch", "/api/audit/project/" + uuid.NewString(), sarpanch, http.StatusForbidden},
		{"bad id", "/api/audit/project/not-a-uuid", admin, http.StatusBadRequest},
		{"unknown entity", "/api/audit/approval/" + uuid.NewString(), admin, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", tt.token)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

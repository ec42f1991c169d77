package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
)

type mockTransactionService struct {
	actor  services.TransactionActor
	filter models.TransactionFilter
	input  *services.CreateTransactionInput
}

var _ services.TransactionService = (*mockTransactionService)(nil)

func (m *mockTransactionService) Create(ctx context.Context, actor services.TransactionActor, in *services.CreateTransactionInput) (*models.FundTransaction, error) {
	m.actor, m.input = actor, in
	return &models.FundTransaction{ID: uuid.New(), DistrictID: in.DistrictID, Amount: in.Amount, Type: in.Type, Status: models.TransactionPending}, nil
}

func (m *mockTransactionService) List(ctx context.Context, actor services.TransactionActor, filter models.TransactionFilter) ([]*models.FundTransaction, error) {
	m.actor, m.filter = actor, filter
	return []*models.FundTransaction{}, nil
}

func TestTransactionsHandler_Create(t *testing.T) {
	svc := &mockTransactionService{}
	mux := newTestMux(NewTransactionsHandler(svc, zap.NewNop()))
	district := uuid.New()

	actorID, token := bearer(models.RoleDistrict, district.String())
	body := `{"district_id":"` + district.String() + `","amount":500000,"description":"Road repair release","type":"release"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)
	require.NotNil(t, svc.input)
	assert.Equal(t, int64(500000), svc.input.Amount)
	assert.Equal(t, actorID, svc.actor.ID)
	assert.Equal(t, models.RoleDistrict, svc.actor.Role)
	assert.Equal(t, district.String(), svc.actor.DistrictID)
}

func TestTransactionsHandler_List(t *testing.T) {
	svc := &mockTransactionService{}
	mux := newTestMux(NewTransactionsHandler(svc, zap.NewNop()))
	district := uuid.New()

	_, token := bearer(models.RoleAdmin, "")
	req := httptest.NewRequest(http.MethodGet, "/api/transactions?district_id="+district.String()+"&status=pending&limit=10", nil)
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.filter.DistrictID)
	assert.Equal(t, district, *svc.filter.DistrictID)
	require.NotNil(t, svc.filter.Status)
	assert.Equal(t, models.TransactionPending, *svc.filter.Status)
	assert.Equal(t, 10, svc.filter.Limit)
}

func TestTransactionsHandler_Rejects(t *testing.T) {
	mux := newTestMux(NewTransactionsHandler(&mockTransactionService{}, zap.NewNop()))
	_, tehsil := bearer(models.RoleTehsil, "")
	_, admin := bearer(models.RoleAdmin, "")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"anonymous", http.MethodGet, "/api/transactions", "", http.StatusUnauthorized},
		{"tehsil officer", http.MethodGet, "/api/transactions", tehsil, http.StatusForbidden},
		{"bad district", http.MethodGet, "/api/transactions?district_id=nope", admin, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/transactions?limit=ten", admin, http.StatusBadRequest},
		{"citizen post", http.MethodPost, "/api/transactions", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`))
			if tt.token != "" {
				req.Header.Set("Authorization", tt.token)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

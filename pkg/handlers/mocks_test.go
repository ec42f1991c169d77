package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/auth"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/services"
	"github.com/fiscal-tracker/fiscal-engine/pkg/testhelpers"
)

type mockProjectService struct {
	project   *models.Project
	page      *models.ProjectPage
	summary   *models.BudgetSummary
	err       error
	gotFilter models.ProjectFilter
	gotInput  *services.CreateProjectInput
	gotRole   models.Role
}

func (m *mockProjectService) Create(ctx context.Context, actorID uuid.UUID, actorRole models.Role, in *services.CreateProjectInput) (*models.Project, error) {
	m.gotInput = in
	m.gotRole = actorRole
	if m.err != nil {
		return nil, m.err
	}
	return &models.Project{ID: uuid.New(), Code: "PFT0001", Name: in.Name, Status: models.StatusPending}, nil
}

func (m *mockProjectService) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.project != nil {
		return m.project, nil
	}
	return &models.Project{ID: id, Code: "PFT0001", Name: "Village well"}, nil
}

func (m *mockProjectService) List(ctx context.Context, filter models.ProjectFilter) (*models.ProjectPage, error) {
	m.gotFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	if m.page != nil {
		return m.page, nil
	}
	return &models.ProjectPage{Projects: []*models.Project{}}, nil
}

func (m *mockProjectService) UpdateBudget(ctx context.Context, actorID uuid.UUID, actorRole models.Role, id uuid.UUID, allocated, utilized int64) (*models.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Project{ID: id, Budget: models.Budget{Total: allocated, Allocated: allocated, Utilized: utilized}}, nil
}

func (m *mockProjectService) Summary(ctx context.Context) (*models.BudgetSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.summary != nil {
		return m.summary, nil
	}
	return &models.BudgetSummary{}, nil
}

type mockApprovalService struct {
	result  *models.TransitionResult
	history []*models.ApprovalHistoryEntry
	err     error
	got     *services.ActionRequest
}

func (m *mockApprovalService) SubmitAction(ctx context.Context, req *services.ActionRequest) (*models.TransitionResult, error) {
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &models.TransitionResult{Success: true, ProjectID: req.ProjectID}, nil
}

func (m *mockApprovalService) History(ctx context.Context, projectID uuid.UUID) ([]*models.ApprovalHistoryEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.history, nil
}

func (m *mockApprovalService) Workflow(ctx context.Context, projectID uuid.UUID) (*models.Workflow, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Workflow{ProjectID: projectID, CurrentStage: models.StageSarpanch, Status: models.StatusPending}, nil
}

type mockGrievanceService struct {
	err          error
	gotSubmitter *uuid.UUID
	gotIP        string
	gotFilter    models.GrievanceFilter
	gotStatus    models.GrievanceStatus
}

func (m *mockGrievanceService) Submit(ctx context.Context, submitterID *uuid.UUID, in *services.GrievanceInput, clientIP string) (*models.Grievance, error) {
	m.gotSubmitter = submitterID
	m.gotIP = clientIP
	if m.err != nil {
		return nil, m.err
	}
	return &models.Grievance{ID: uuid.New(), Code: "GRV20261019ABCD", Name: in.Name, Title: in.Title}, nil
}

func (m *mockGrievanceService) Get(ctx context.Context, id uuid.UUID) (*models.Grievance, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Grievance{ID: id}, nil
}

func (m *mockGrievanceService) List(ctx context.Context, filter models.GrievanceFilter) ([]*models.Grievance, error) {
	m.gotFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return []*models.Grievance{}, nil
}

func (m *mockGrievanceService) UpdateStatus(ctx context.Context, actorID uuid.UUID, id uuid.UUID, status models.GrievanceStatus, assignTo *uuid.UUID) (*models.Grievance, error) {
	m.gotStatus = status
	if m.err != nil {
		return nil, m.err
	}
	return &models.Grievance{ID: id, Status: status}, nil
}

type mockUserService struct {
	user   *models.User
	result *services.LoginResult
	err    error
	gotIP  string
}

func (m *mockUserService) Login(ctx context.Context, loginID, password, clientIP string) (*services.LoginResult, error) {
	m.gotIP = clientIP
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockUserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.user != nil {
		return m.user, nil
	}
	return &models.User{ID: id, LoginID: "someone"}, nil
}

func (m *mockUserService) Create(ctx context.Context, actorRole models.Role, in *services.CreateUserInput) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.User{ID: uuid.New(), LoginID: in.LoginID, Role: in.Role}, nil
}

func (m *mockUserService) List(ctx context.Context, role *models.Role) ([]*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []*models.User{}, nil
}

type mockAttachmentService struct {
	err        error
	gotPurpose string
}

func (m *mockAttachmentService) CreateUpload(ctx context.Context, purpose, filename string) (*services.UploadTicket, error) {
	m.gotPurpose = purpose
	if m.err != nil {
		return nil, m.err
	}
	return &services.UploadTicket{
		UploadURL:     "http://objects.local/upload",
		AttachmentRef: purpose + "/2026/10/x.pdf",
		ContentType:   "application/pdf",
		ExpiresAt:     time.Now().Add(15 * time.Minute),
	}, nil
}

type mockNotificationService struct {
	list      []*models.Notification
	err       error
	gotUnread bool
	gotLimit  int
}

func (m *mockNotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error) {
	m.gotUnread = unreadOnly
	m.gotLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.list, nil
}

func (m *mockNotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return m.err
}

type mockReportService struct {
	err error
}

func (m *mockReportService) ProjectsWorkbook(ctx context.Context, filter models.ProjectFilter) (*excelize.File, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", "Project Code"); err != nil {
		return nil, "", err
	}
	return f, "projects_20261019.xlsx", nil
}

var (
	_ services.ProjectService      = (*mockProjectService)(nil)
	_ services.ApprovalService     = (*mockApprovalService)(nil)
	_ services.GrievanceService    = (*mockGrievanceService)(nil)
	_ services.UserService         = (*mockUserService)(nil)
	_ services.AttachmentService   = (*mockAttachmentService)(nil)
	_ services.NotificationService = (*mockNotificationService)(nil)
	_ services.ReportService       = (*mockReportService)(nil)
)

// routeRegistrar is implemented by every handler that needs auth wiring.
type routeRegistrar interface {
	RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware)
}

func passthroughScope(next http.HandlerFunc) http.HandlerFunc { return next }

// newTestMux registers h behind real token validation using the test secret.
func newTestMux(h routeRegistrar) *http.ServeMux {
	tokens := auth.NewTokenManager(testhelpers.TestSecret, "fiscal-engine", time.Hour)
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(tokens, nil, zap.NewNop()), zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, authMiddleware, passthroughScope)
	return mux
}

// bearer returns an Authorization header value for a fresh user of role.
func bearer(role models.Role, districtID string) (uuid.UUID, string) {
	id := uuid.New()
	return id, "Bearer " + testhelpers.GenerateTestJWT(id.String(), string(role), districtID, "", "")
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

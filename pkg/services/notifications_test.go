package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/config"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

// mockNotificationRepo fails the first failures calls with err.
type mockNotificationRepo struct {
	mu       sync.Mutex
	roles    []*models.RoleNotice
	users    []*models.UserNotice
	attempts int
	failures int
	err      error
	holders  int

	listed   []*models.Notification
	lastRead uuid.UUID
}

func (m *mockNotificationRepo) fail() error {
	m.attempts++
	if m.failures > 0 {
		m.failures--
		return m.err
	}
	return nil
}

func (m *mockNotificationRepo) CreateForRole(ctx context.Context, notice *models.RoleNotice) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return 0, err
	}
	m.roles = append(m.roles, notice)
	return m.holders, nil
}

func (m *mockNotificationRepo) Create(ctx context.Context, notice *models.UserNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	m.users = append(m.users, notice)
	return nil
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*models.Notification, error) {
	var out []*models.Notification
	for _, n := range m.listed {
		if n.UserID == userID && (!unreadOnly || !n.Read) && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	for _, n := range m.listed {
		if n.ID == notificationID && n.UserID == userID {
			n.Read = true
			m.lastRead = notificationID
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockNotificationRepo) delivered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.roles) + len(m.users)
}

func (m *mockNotificationRepo) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// passthroughScopes hands back the caller's context unchanged.
type passthroughScopes struct{}

func (passthroughScopes) WithScope(ctx context.Context) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

func testDispatcherConfig(queue int) config.WorkflowConfig {
	return config.WorkflowConfig{
		NotificationQueueSize:  queue,
		NotificationMaxRetries: 3,
		NotificationBackoff:    time.Millisecond,
	}
}

func roleNotice(role models.Role) *models.RoleNotice {
	id := uuid.New()
	return &models.RoleNotice{
		Role:      role,
		Title:     "Project awaiting approval",
		Message:   "Project PFT0042 requires your approval.",
		Type:      models.NotificationTypeApproval,
		ProjectID: &id,
	}
}

// runDispatcher starts Run and returns a stop function that cancels it and
// waits for the drain to finish.
func runDispatcher(t *testing.T, d NotificationDispatcher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("dispatcher did not stop")
		}
	}
}

func TestNotificationDispatcher_DeliversRoleAndUserNotices(t *testing.T) {
	repo := &mockNotificationRepo{holders: 2}
	d := NewNotificationDispatcher(repo, passthroughScopes{}, testDispatcherConfig(8), zap.NewNop())
	stop := runDispatcher(t, d)

	d.NotifyRole(roleNotice(models.RoleTehsil))
	d.NotifyUser(&models.UserNotice{UserID: uuid.New(), Title: "New grievance assigned", Type: models.NotificationTypeGrievance})

	assert.Eventually(t, func() bool { return repo.delivered() == 2 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, models.RoleTehsil, repo.roles[0].Role)
	assert.Zero(t, d.Dropped())
}

func TestNotificationDispatcher_RetriesTransientFailures(t *testing.T) {
	repo := &mockNotificationRepo{holders: 1, failures: 2, err: apperrors.ErrTransientStore}
	d := NewNotificationDispatcher(repo, passthroughScopes{}, testDispatcherConfig(8), zap.NewNop())
	stop := runDispatcher(t, d)

	d.NotifyRole(roleNotice(models.RoleDistrict))

	assert.Eventually(t, func() bool { return repo.delivered() == 1 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, 3, repo.attemptCount())
	assert.Zero(t, d.Dropped())
}

func TestNotificationDispatcher_DropsPermanentFailures(t *testing.T) {
	repo := &mockNotificationRepo{failures: 1, err: errors.New("insert notification: check constraint")}
	d := NewNotificationDispatcher(repo, passthroughScopes{}, testDispatcherConfig(8), zap.NewNop())
	stop := runDispatcher(t, d)

	d.NotifyRole(roleNotice(models.RoleAdmin))

	assert.Eventually(t, func() bool { return d.Dropped() == 1 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, 1, repo.attemptCount())
	assert.Zero(t, repo.delivered())
}

func TestNotificationDispatcher_QueueFullNeverBlocks(t *testing.T) {
	repo := &mockNotificationRepo{}
	d := NewNotificationDispatcher(repo, passthroughScopes{}, testDispatcherConfig(1), zap.NewNop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			d.NotifyRole(roleNotice(models.RoleTehsil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NotifyRole blocked on a full queue")
	}
	assert.Equal(t, int64(2), d.Dropped())
}

func TestNotificationDispatcher_DrainsOnShutdown(t *testing.T) {
	repo := &mockNotificationRepo{}
	d := NewNotificationDispatcher(repo, passthroughScopes{}, testDispatcherConfig(8), zap.NewNop())

	for i := 0; i < 5; i++ {
		d.NotifyRole(roleNotice(models.RoleTehsil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Equal(t, 5, repo.delivered())
	assert.Zero(t, d.Dropped())
}

func TestNotificationService_ListAndMarkRead(t *testing.T) {
	userID := uuid.New()
	unread := &models.Notification{ID: uuid.New(), UserID: userID, Title: "a"}
	read := &models.Notification{ID: uuid.New(), UserID: userID, Title: "b", Read: true}
	other := &models.Notification{ID: uuid.New(), UserID: uuid.New(), Title: "c"}
	repo := &mockNotificationRepo{listed: []*models.Notification{unread, read, other}}
	svc := NewNotificationService(repo, zap.NewNop())
	ctx := context.Background()

	all, err := svc.List(ctx, userID, false, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyUnread, err := svc.List(ctx, userID, true, 10)
	require.NoError(t, err)
	require.Len(t, onlyUnread, 1)
	assert.Equal(t, unread.ID, onlyUnread[0].ID)

	require.NoError(t, svc.MarkRead(ctx, userID, unread.ID))
	assert.True(t, unread.Read)

	assert.ErrorIs(t, svc.MarkRead(ctx, userID, other.ID), apperrors.ErrNotFound)

	_, err = svc.List(ctx, uuid.Nil, false, 10)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

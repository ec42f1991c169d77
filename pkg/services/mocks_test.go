package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/repositories"
)

// memStore is an in-memory stand-in for the project, workflow and history
// tables. Its repository views share one lock so ApplyTransition behaves
// like a single database transaction.
type memStore struct {
	mu        sync.Mutex
	projects  map[uuid.UUID]*models.Project
	workflows map[uuid.UUID]*models.Workflow
	history   []*models.ApprovalHistoryEntry
	audits    []*models.AuditLogEntry

	projectReads  int
	workflowReads int
	historyReads  int

	// createErrs are returned by successive CreateWithWorkflow calls.
	createErrs []error
	// readBarrier, when set, holds every workflow read until all expected
	// readers have arrived.
	readBarrier *sync.WaitGroup
}

func newMemStore() *memStore {
	return &memStore{
		projects:  make(map[uuid.UUID]*models.Project),
		workflows: make(map[uuid.UUID]*models.Workflow),
	}
}

// seed stores a project at stage/status with a matching workflow row.
func (m *memStore) seed(stage models.Stage, status models.WorkflowStatus) *models.Project {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	village, tehsil, district := uuid.New(), uuid.New(), uuid.New()
	p := &models.Project{
		ID:         id,
		Code:       "PFT0042",
		Name:       "Village road resurfacing",
		VillageID:  &village,
		TehsilID:   &tehsil,
		DistrictID: &district,
		Budget:     models.Budget{Total: 500000, Allocated: 200000},
		Status:     status,
	}
	m.projects[id] = p
	m.workflows[id] = &models.Workflow{ProjectID: id, CurrentStage: stage, Status: status, Version: 1}
	return p
}

func (m *memStore) projectStatus(id uuid.UUID) models.WorkflowStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projects[id].Status
}

func (m *memStore) historyFor(id uuid.UUID) []*models.ApprovalHistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ApprovalHistoryEntry
	for _, e := range m.history {
		if e.ProjectID == id {
			out = append(out, e)
		}
	}
	return out
}

func (m *memStore) reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projectReads + m.workflowReads + m.historyReads
}

type memProjectRepo struct{ *memStore }

var _ repositories.ProjectRepository = memProjectRepo{}

func (r memProjectRepo) CreateWithWorkflow(ctx context.Context, p *models.Project, wf *models.Workflow, audit *models.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	wf.ProjectID = p.ID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.projects[p.ID] = p
	r.workflows[p.ID] = wf
	if audit != nil {
		audit.EntityID = p.ID
		r.audits = append(r.audits, audit)
	}
	return nil
}

func (r memProjectRepo) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projectReads++
	p, ok := r.projects[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memProjectRepo) List(ctx context.Context, filter models.ProjectFilter) ([]*models.Project, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*models.Project
	for _, p := range r.projects {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })

	total := len(all)
	if filter.Offset >= total {
		return []*models.Project{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return all[filter.Offset:end], total, nil
}

func (r memProjectRepo) UpdateBudget(ctx context.Context, id uuid.UUID, allocated, utilized int64, audit *models.AuditLogEntry) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	b := models.Budget{Total: p.Budget.Total, Allocated: allocated, Utilized: utilized}
	if err := b.Validate(); err != nil {
		return nil, apperrors.ErrBudgetInvariant
	}
	p.Budget = b
	if audit != nil {
		audit.EntityID = id
		r.audits = append(r.audits, audit)
	}
	cp := *p
	return &cp, nil
}

func (r memProjectRepo) Summary(ctx context.Context) (*models.BudgetSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &models.BudgetSummary{
		StatusCounts:  map[models.WorkflowStatus]int{},
		StatusAmounts: map[models.WorkflowStatus]int64{},
		GeneratedAt:   time.Now().UTC(),
	}
	for _, p := range r.projects {
		s.Total += p.Budget.Total
		s.Allocated += p.Budget.Allocated
		s.Utilized += p.Budget.Utilized
		s.StatusCounts[p.Status]++
		s.StatusAmounts[p.Status] += p.Budget.Total
	}
	return s, nil
}

type memWorkflowRepo struct{ *memStore }

var _ repositories.WorkflowRepository = memWorkflowRepo{}

func (r memWorkflowRepo) Get(ctx context.Context, projectID uuid.UUID) (*models.Workflow, error) {
	r.mu.Lock()
	r.workflowReads++
	wf, ok := r.workflows[projectID]
	var cp models.Workflow
	if ok {
		cp = *wf
	}
	barrier := r.readBarrier
	r.mu.Unlock()

	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &cp, nil
}

func (r memWorkflowRepo) ApplyTransition(ctx context.Context, w *models.TransitionWrite) (*models.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wf, ok := r.workflows[w.ProjectID]
	if !ok || wf.Version != w.ExpectedVersion || wf.CurrentStage != w.ExpectedStage {
		return nil, apperrors.ErrStaleState
	}

	approver := w.ApproverID
	wf.CurrentStage = w.NewStage
	wf.Status = w.NewStatus
	wf.CurrentApproverID = &approver
	wf.Version++
	wf.UpdatedAt = w.At

	if p, ok := r.projects[w.ProjectID]; ok {
		p.Status = w.NewStatus
	}

	entry := *w.History
	entry.ID = uuid.New()
	r.history = append(r.history, &entry)
	if w.Audit != nil {
		r.audits = append(r.audits, w.Audit)
	}

	cp := *wf
	return &cp, nil
}

func (r memWorkflowRepo) SetProjectStatus(ctx context.Context, projectID uuid.UUID, status models.WorkflowStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[projectID]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.Status = status
	return nil
}

type memHistoryRepo struct{ *memStore }

var _ repositories.HistoryRepository = memHistoryRepo{}

func (r memHistoryRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ApprovalHistoryEntry, error) {
	r.mu.Lock()
	r.historyReads++
	r.mu.Unlock()
	entries := r.historyFor(projectID)
	if entries == nil {
		entries = []*models.ApprovalHistoryEntry{}
	}
	return entries, nil
}

// memCache round-trips values through JSON like the Redis cache does.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *memCache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// recordingNotifier captures notices instead of queueing them.
type recordingNotifier struct {
	mu    sync.Mutex
	roles []*models.RoleNotice
	users []*models.UserNotice
}

func (n *recordingNotifier) NotifyRole(notice *models.RoleNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.roles = append(n.roles, notice)
}

func (n *recordingNotifier) NotifyUser(notice *models.UserNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, notice)
}

func (n *recordingNotifier) roleNotices() []*models.RoleNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*models.RoleNotice(nil), n.roles...)
}

// memUserRepo is a mock UserRepository keyed by login id.
type memUserRepo struct {
	users   []*models.User
	findErr error
}

var _ repositories.UserRepository = (*memUserRepo)(nil)

func (r *memUserRepo) Create(ctx context.Context, u *models.User) error {
	for _, existing := range r.users {
		if existing.LoginID == u.LoginID {
			return apperrors.ErrConflict
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users = append(r.users, u)
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memUserRepo) GetByLoginID(ctx context.Context, loginID string) (*models.User, error) {
	for _, u := range r.users {
		if u.LoginID == loginID {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memUserRepo) List(ctx context.Context, role *models.Role) ([]*models.User, error) {
	var out []*models.User
	for _, u := range r.users {
		if role == nil || u.Role == *role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUserRepo) FindOfficer(ctx context.Context, role models.Role, districtID *uuid.UUID) (*models.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	var fallback *models.User
	for _, u := range r.users {
		if u.Role != role || !u.Active {
			continue
		}
		if districtID != nil && u.DistrictID != nil && *u.DistrictID == *districtID {
			return u, nil
		}
		if fallback == nil {
			fallback = u
		}
	}
	if fallback == nil {
		return nil, apperrors.ErrNotFound
	}
	return fallback, nil
}

// memLocationRepo holds a one-village hierarchy plus upsert bookkeeping.
type memLocationRepo struct {
	villages  map[uuid.UUID]*models.VillageLocation
	districts map[string]uuid.UUID
	tehsils   map[string]uuid.UUID
	upserted  map[string]int
}

var _ repositories.LocationRepository = (*memLocationRepo)(nil)

func newMemLocationRepo() *memLocationRepo {
	return &memLocationRepo{
		villages:  make(map[uuid.UUID]*models.VillageLocation),
		districts: make(map[string]uuid.UUID),
		tehsils:   make(map[string]uuid.UUID),
		upserted:  make(map[string]int),
	}
}

func (r *memLocationRepo) addVillage() *models.VillageLocation {
	loc := &models.VillageLocation{VillageID: uuid.New(), TehsilID: uuid.New(), DistrictID: uuid.New()}
	r.villages[loc.VillageID] = loc
	return loc
}

func (r *memLocationRepo) ListDistricts(ctx context.Context) ([]*models.District, error) {
	var out []*models.District
	for name, id := range r.districts {
		out = append(out, &models.District{ID: id, Name: name})
	}
	return out, nil
}

func (r *memLocationRepo) ListTehsils(ctx context.Context, districtID uuid.UUID) ([]*models.Tehsil, error) {
	return []*models.Tehsil{}, nil
}

func (r *memLocationRepo) ListVillages(ctx context.Context, tehsilID uuid.UUID) ([]*models.Village, error) {
	return []*models.Village{}, nil
}

func (r *memLocationRepo) ResolveVillage(ctx context.Context, villageID uuid.UUID) (*models.VillageLocation, error) {
	loc, ok := r.villages[villageID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return loc, nil
}

func (r *memLocationRepo) UpsertDistrict(ctx context.Context, name string) (uuid.UUID, error) {
	r.upserted["district:"+name]++
	if id, ok := r.districts[name]; ok {
		return id, nil
	}
	id := uuid.New()
	r.districts[name] = id
	return id, nil
}

func (r *memLocationRepo) UpsertTehsil(ctx context.Context, districtID uuid.UUID, name string) (uuid.UUID, error) {
	r.upserted["tehsil:"+name]++
	key := districtID.String() + "/" + name
	if id, ok := r.tehsils[key]; ok {
		return id, nil
	}
	id := uuid.New()
	r.tehsils[key] = id
	return id, nil
}

func (r *memLocationRepo) UpsertVillage(ctx context.Context, tehsilID uuid.UUID, name string, population int) (uuid.UUID, error) {
	r.upserted["village:"+name]++
	return uuid.New(), nil
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/onboarding-api/internal/catalog"
	"github.com/noah-isme/onboarding-api/internal/models"
	"github.com/noah-isme/onboarding-api/internal/repository"
)

var fixedNow = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

var (
	hrActor       = models.Actor{UserID: "hr-1", Role: models.RoleHR}
	employeeActor = models.Actor{UserID: "emp-1", Role: models.RoleEmployee}
	serviceActor  = models.Actor{UserID: "psychometrics", Role: models.RoleService}
)

func int64Ptr(v int64) *int64 { return &v }

func float64Ptr(v float64) *float64 { return &v }

func testDefinition() catalog.Definition {
	return catalog.Definition{
		Version: "test-1",
		Default: []models.TemplateItem{
			{Key: "welcome", Title: "Welcome briefing", Order: 1},
			{Key: "contract", Title: "Sign contract", Order: 2, DueOffsetDays: 3, RequiresDocument: true, DocumentKind: models.DocumentKindPDF},
			{Key: "personality", Title: "Personality assessment", Order: 3, DueOffsetDays: 7, RequiresPsychometricTest: true, TestID: int64Ptr(101)},
		},
		Roles: map[string][]models.TemplateItem{
			"Manager": {{Key: "leadership", Title: "Leadership onboarding", Order: 2, DueOffsetDays: 14}},
		},
		Departments: map[string][]models.TemplateItem{
			"engineering": {{Key: "laptop", Title: "Laptop setup", Order: 1, DueOffsetDays: 1}},
		},
	}
}

func testCatalog(t *testing.T) *catalog.Static {
	t.Helper()
	c, err := catalog.New(testDefinition())
	require.NoError(t, err)
	return c
}

type memoryStore struct {
	mu         sync.Mutex
	byEmployee map[string]*models.ChecklistInstance
	seq        int
	writes     int
	err        error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byEmployee: make(map[string]*models.ChecklistInstance)}
}

func copyChecklist(c *models.ChecklistInstance) *models.ChecklistInstance {
	cp := *c
	cp.Items = append([]models.ChecklistItem(nil), c.Items...)
	return &cp
}

func (m *memoryStore) Create(ctx context.Context, checklist *models.ChecklistInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.byEmployee[checklist.EmployeeID]; ok {
		return repository.ErrChecklistExists
	}
	m.seq++
	checklist.ID = fmt.Sprintf("checklist-%d", m.seq)
	for i := range checklist.Items {
		checklist.Items[i].ID = fmt.Sprintf("%s-item-%d", checklist.ID, i+1)
		checklist.Items[i].ChecklistID = checklist.ID
	}
	m.byEmployee[checklist.EmployeeID] = copyChecklist(checklist)
	return nil
}

func (m *memoryStore) ExistsForEmployee(ctx context.Context, employeeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.byEmployee[employeeID]
	return ok, nil
}

func (m *memoryStore) GetByEmployee(ctx context.Context, employeeID string) (*models.ChecklistInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.byEmployee[employeeID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyChecklist(c), nil
}

func (m *memoryStore) GetByID(ctx context.Context, id string) (*models.ChecklistInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byEmployee {
		if c.ID == id {
			return copyChecklist(c), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryStore) FindItem(ctx context.Context, itemID string) (*models.ChecklistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, idx := m.locate(itemID)
	if c == nil {
		return nil, sql.ErrNoRows
	}
	item := c.Items[idx]
	return &item, nil
}

func (m *memoryStore) List(ctx context.Context, filter models.ChecklistFilter) ([]models.ChecklistInstance, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	var out []models.ChecklistInstance
	for i := 1; i <= m.seq; i++ {
		for _, c := range m.byEmployee {
			if c.ID != fmt.Sprintf("checklist-%d", i) {
				continue
			}
			if filter.Role != "" && !strings.EqualFold(c.Role, filter.Role) {
				continue
			}
			if filter.Department != "" && (c.Department == nil || !strings.EqualFold(*c.Department, filter.Department)) {
				continue
			}
			switch filter.Status {
			case models.ChecklistStatusCompleted:
				if !c.Complete() {
					continue
				}
			case models.ChecklistStatusInProgress:
				if c.Complete() {
					continue
				}
			}
			cp := *c
			cp.Items = nil
			out = append(out, cp)
		}
	}
	total := len(out)
	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (m *memoryStore) MutateItem(ctx context.Context, itemID string, mutate repository.ItemMutator) (*models.ChecklistInstance, *models.ChecklistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, nil, m.err
	}
	c, idx := m.locate(itemID)
	if c == nil {
		return nil, nil, sql.ErrNoRows
	}
	snapshot := copyChecklist(c)
	changed, err := mutate(snapshot, &snapshot.Items[idx])
	if err != nil {
		return nil, nil, err
	}
	if changed {
		m.byEmployee[snapshot.EmployeeID] = copyChecklist(snapshot)
		m.writes++
	}
	item := snapshot.Items[idx]
	return snapshot, &item, nil
}

func (m *memoryStore) locate(itemID string) (*models.ChecklistInstance, int) {
	for _, c := range m.byEmployee {
		for i := range c.Items {
			if c.Items[i].ID == itemID {
				return c, i
			}
		}
	}
	return nil, -1
}

func (m *memoryStore) stored(employeeID string) *models.ChecklistInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyChecklist(m.byEmployee[employeeID])
}

type accountStub struct {
	users map[string]*models.User
}

func (a accountStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := a.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type dispatcherStub struct {
	mu      sync.Mutex
	signals []models.ActivationSignal
}

func (d *dispatcherStub) Dispatch(ctx context.Context, signal models.ActivationSignal) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.signals = append(d.signals, signal)
	return nil
}

func (d *dispatcherStub) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.signals)
}

type auditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditStub) Create(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type checklistHarness struct {
	svc        *ChecklistService
	store      *memoryStore
	dispatcher *dispatcherStub
	audit      *auditStub
	metrics    *MetricsService
}

func newChecklistHarness(t *testing.T, c catalog.Catalog, accounts accountReader, documents documentKeeper) *checklistHarness {
	t.Helper()
	h := &checklistHarness{
		store:      newMemoryStore(),
		dispatcher: &dispatcherStub{},
		audit:      &auditStub{},
		metrics:    NewMetricsService(),
	}
	h.svc = NewChecklistService(ChecklistServiceDeps{
		Store:      h.store,
		Accounts:   accounts,
		Composer:   NewComposer(c),
		Activation: h.dispatcher,
		Documents:  documents,
		Audit:      h.audit,
		Metrics:    h.metrics,
		Logger:     zap.NewNop(),
	})
	h.svc.now = func() time.Time { return fixedNow }
	return h
}

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/admaesmo/AidDiag/internal/core"
)

// Memory is an in-memory implementation of every store port. It backs tests
// and the demo mode; data does not survive a restart.
type Memory struct {
	mu          sync.RWMutex
	tenants     map[uuid.UUID]*core.Tenant
	principals  map[uuid.UUID]*core.Principal
	symptoms    []core.SymptomEntry
	predictions []core.Prediction
	cases       map[uuid.UUID]*core.Case
	audits      []core.AuditEvent
	nextAuditID int64
}

var (
	_ core.PrincipalStore = (*Memory)(nil)
	_ core.IntakeStore    = (*Memory)(nil)
	_ core.CaseStore      = (*Memory)(nil)
	_ core.AuditStore     = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		tenants:     make(map[uuid.UUID]*core.Tenant),
		principals:  make(map[uuid.UUID]*core.Principal),
		cases:       make(map[uuid.UUID]*core.Case),
		nextAuditID: 1,
	}
}

func (m *Memory) GetOrCreateTenant(_ context.Context, name string) (*core.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tenants {
		if t.Name == name {
			clone := *t
			return &clone, nil
		}
	}
	t := &core.Tenant{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
	m.tenants[t.ID] = t
	clone := *t
	return &clone, nil
}

func (m *Memory) FindPrincipalByEmail(_ context.Context, tenantID uuid.UUID, email string) (*core.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.principals {
		if p.TenantID == tenantID && strings.EqualFold(p.Email, email) {
			clone := *p
			return &clone, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *Memory) GetPrincipal(_ context.Context, id uuid.UUID) (*core.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.principals[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *Memory) CreatePrincipal(_ context.Context, p *core.Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.principals {
		if existing.TenantID == p.TenantID && strings.EqualFold(existing.Email, p.Email) {
			return core.ErrAlreadyExists
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	clone := *p
	m.principals[p.ID] = &clone
	return nil
}

func (m *Memory) UpdatePrincipal(_ context.Context, p *core.Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.principals[p.ID]; !ok {
		return core.ErrNotFound
	}
	clone := *p
	m.principals[p.ID] = &clone
	return nil
}

func (m *Memory) InsertSymptomEntry(_ context.Context, e *core.SymptomEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.symptoms = append(m.symptoms, *e)
	return nil
}

func (m *Memory) GetSymptomEntry(_ context.Context, id uuid.UUID) (*core.SymptomEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.symptoms {
		if e.ID == id {
			clone := e
			return &clone, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *Memory) ListSymptomEntries(
	_ context.Context,
	tenantID, patientID uuid.UUID,
	limit int,
	cursor *time.Time,
) ([]core.SymptomEntry, int, *time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []core.SymptomEntry
	total := 0
	for _, e := range m.symptoms {
		if e.TenantID != tenantID || e.PatientID != patientID {
			continue
		}
		if cursor != nil && !e.CreatedAt.Before(*cursor) {
			continue
		}
		// the total counts what remains past the cursor, not the whole
		// history, so callers see it shrink as they page
		total++
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	var next *time.Time
	if len(matched) > limit {
		t := matched[limit-1].CreatedAt
		next = &t
		matched = matched[:limit]
	}
	return matched, total, next, nil
}

func (m *Memory) SavePrediction(_ context.Context, p *core.Prediction, ev *core.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.predictions = append(m.predictions, *p)

	if ev != nil {
		ev.EntityID = p.ID.String()
		m.insertAuditLocked(ev)
	}
	return nil
}

func (m *Memory) ListPredictions(
	_ context.Context,
	tenantID, patientID uuid.UUID,
	limit, offset int,
) ([]core.Prediction, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []core.Prediction
	for _, p := range m.predictions {
		if p.TenantID == tenantID && p.PatientID == patientID {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (m *Memory) CreateCase(_ context.Context, c *core.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	clone := *c
	m.cases[c.ID] = &clone
	return nil
}

func (m *Memory) GetCase(_ context.Context, id uuid.UUID) (*core.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cases[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (m *Memory) ListCases(_ context.Context, tenantID, assignedTo uuid.UUID, status string) ([]core.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []core.Case
	for _, c := range m.cases {
		if c.TenantID != tenantID {
			continue
		}
		if assignedTo != uuid.Nil && (c.AssignedTo == nil || *c.AssignedTo != assignedTo) {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		matched = append(matched, *c)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})
	return matched, nil
}

func (m *Memory) UpdateCaseStatus(_ context.Context, id uuid.UUID, status string) (*core.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cases[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	clone := *c
	return &clone, nil
}

func (m *Memory) InsertAuditEvent(_ context.Context, ev *core.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertAuditLocked(ev)
	return nil
}

func (m *Memory) insertAuditLocked(ev *core.AuditEvent) {
	ev.ID = m.nextAuditID
	m.nextAuditID++
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	m.audits = append(m.audits, *ev)
}

func (m *Memory) RecentAuditEvents(_ context.Context, tenantID uuid.UUID, limit int) ([]core.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []core.AuditEvent
	for i := len(m.audits) - 1; i >= 0 && len(matched) < limit; i-- {
		if m.audits[i].TenantID == tenantID {
			matched = append(matched, m.audits[i])
		}
	}
	return matched, nil
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/admaesmo/AidDiag/internal/core"
)

func TestGetOrCreateTenantIsIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.GetOrCreateTenant(ctx, "demo")
	if err != nil {
		t.Fatalf("GetOrCreateTenant() error = %v", err)
	}
	second, err := m.GetOrCreateTenant(ctx, "demo")
	if err != nil {
		t.Fatalf("GetOrCreateTenant() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("tenant ids differ: %s vs %s", first.ID, second.ID)
	}
}

func TestPrincipalLookupIsCaseInsensitive(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tenant, _ := m.GetOrCreateTenant(ctx, "demo")

	p := &core.Principal{
		TenantID: tenant.ID,
		Email:    "Pat@Demo.Local",
		Role:     core.RolePatient,
		Active:   true,
	}
	if err := m.CreatePrincipal(ctx, p); err != nil {
		t.Fatalf("CreatePrincipal() error = %v", err)
	}

	got, err := m.FindPrincipalByEmail(ctx, tenant.ID, "pat@demo.local")
	if err != nil {
		t.Fatalf("FindPrincipalByEmail() error = %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("found %s, want %s", got.ID, p.ID)
	}

	dup := &core.Principal{TenantID: tenant.ID, Email: "PAT@DEMO.LOCAL", Role: core.RolePatient}
	if err := m.CreatePrincipal(ctx, dup); !errors.Is(err, core.ErrAlreadyExists) {
		t.Errorf("CreatePrincipal() duplicate error = %v, want core.ErrAlreadyExists", err)
	}
}

func TestPrincipalLookupIsTenantScoped(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tenant, _ := m.GetOrCreateTenant(ctx, "demo")
	other, _ := m.GetOrCreateTenant(ctx, "other")

	p := &core.Principal{TenantID: tenant.ID, Email: "pat@demo.local", Role: core.RolePatient}
	if err := m.CreatePrincipal(ctx, p); err != nil {
		t.Fatalf("CreatePrincipal() error = %v", err)
	}

	if _, err := m.FindPrincipalByEmail(ctx, other.ID, "pat@demo.local"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-tenant lookup error = %v, want core.ErrNotFound", err)
	}
}

func TestListSymptomEntriesKeysetPagination(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tenantID := uuid.New()
	patientID := uuid.New()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 7; i++ {
		e := &core.SymptomEntry{
			TenantID:  tenantID,
			PatientID: patientID,
			Payload:   map[string]any{"n": i},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := m.InsertSymptomEntry(ctx, e); err != nil {
			t.Fatalf("InsertSymptomEntry() error = %v", err)
		}
	}

	var all []core.SymptomEntry
	var cursor *time.Time
	pages := 0
	remaining := 7
	for {
		items, total, next, err := m.ListSymptomEntries(ctx, tenantID, patientID, 3, cursor)
		if err != nil {
			t.Fatalf("ListSymptomEntries() error = %v", err)
		}
		// total reflects only entries past the cursor, so it shrinks
		// from 7 to 4 to 1 as we page
		if total != remaining {
			t.Errorf("page %d: total = %d, want %d", pages, total, remaining)
		}
		all = append(all, items...)
		remaining -= len(items)
		pages++
		if next == nil {
			break
		}
		cursor = next
	}

	if len(all) != 7 {
		t.Fatalf("paged through %d entries, want 7", len(all))
	}
	if pages != 3 {
		t.Errorf("took %d pages, want 3", pages)
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatal("entries are not ordered newest first across pages")
		}
	}
}

func TestSavePredictionWritesAuditEventAtomically(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tenantID := uuid.New()

	p := &core.Prediction{
		TenantID:     tenantID,
		PatientID:    uuid.New(),
		ModelVersion: "stub-0.1",
		Score:        0.42,
		Label:        "NEG",
	}
	ev := &core.AuditEvent{
		TenantID: tenantID,
		ActorSub: uuid.New(),
		Action:   "predict",
		Entity:   "prediction",
	}
	if err := m.SavePrediction(ctx, p, ev); err != nil {
		t.Fatalf("SavePrediction() error = %v", err)
	}

	events, err := m.RecentAuditEvents(ctx, tenantID, 10)
	if err != nil {
		t.Fatalf("RecentAuditEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d audit events, want 1", len(events))
	}
	if events[0].EntityID != p.ID.String() {
		t.Errorf("EntityID = %q, want the prediction id %q", events[0].EntityID, p.ID)
	}
	if events[0].ID == 0 {
		t.Error("audit event id was not assigned")
	}
}

func TestListCasesFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tenantID := uuid.New()
	assignee := uuid.New()

	mk := func(assigned *uuid.UUID, status string) {
		t.Helper()
		if err := m.CreateCase(ctx, &core.Case{
			TenantID:   tenantID,
			PatientID:  uuid.New(),
			AssignedTo: assigned,
			Status:     status,
		}); err != nil {
			t.Fatal(err)
		}
	}
	mk(&assignee, "open")
	mk(nil, "open")
	mk(&assignee, "closed")

	open, err := m.ListCases(ctx, tenantID, uuid.Nil, "open")
	if err != nil {
		t.Fatalf("ListCases() error = %v", err)
	}
	if len(open) != 2 {
		t.Errorf("open cases = %d, want 2", len(open))
	}

	mine, err := m.ListCases(ctx, tenantID, assignee, "open")
	if err != nil {
		t.Fatalf("ListCases() error = %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("assigned open cases = %d, want 1", len(mine))
	}

	foreign, err := m.ListCases(ctx, uuid.New(), uuid.Nil, "open")
	if err != nil {
		t.Fatalf("ListCases() error = %v", err)
	}
	if len(foreign) != 0 {
		t.Errorf("foreign tenant cases = %d, want 0", len(foreign))
	}
}

func TestUpdateCaseStatusUnknownCase(t *testing.T) {
	m := NewMemory()
	if _, err := m.UpdateCaseStatus(context.Background(), uuid.New(), "closed"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UpdateCaseStatus() error = %v, want core.ErrNotFound", err)
	}
}

func TestRecentAuditEventsOrderAndLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tenantID := uuid.New()

	for i := 0; i < 5; i++ {
		if err := m.InsertAuditEvent(ctx, &core.AuditEvent{
			TenantID: tenantID,
			ActorSub: uuid.New(),
			Action:   "viewed",
			Entity:   "case",
		}); err != nil {
			t.Fatal(err)
		}
	}

	events, err := m.RecentAuditEvents(ctx, tenantID, 3)
	if err != nil {
		t.Fatalf("RecentAuditEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].ID > events[i-1].ID {
			t.Fatal("events are not ordered newest first")
		}
	}
}

package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PrincipalStore manages tenants and principals.
type PrincipalStore interface {
	// GetOrCreateTenant resolves a tenant by name, creating it if absent.
	GetOrCreateTenant(ctx context.Context, name string) (*Tenant, error)

	// FindPrincipalByEmail looks up a principal by case-insensitive email
	// within the tenant. Returns ErrNotFound if absent.
	FindPrincipalByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*Principal, error)

	// GetPrincipal looks up a principal by id. Returns ErrNotFound if absent.
	GetPrincipal(ctx context.Context, id uuid.UUID) (*Principal, error)

	// CreatePrincipal inserts a new principal.
	// Returns ErrAlreadyExists on a tenant+email conflict.
	CreatePrincipal(ctx context.Context, p *Principal) error

	// UpdatePrincipal persists role/active/mfa/password changes.
	UpdatePrincipal(ctx context.Context, p *Principal) error
}

// IntakeStore manages symptom entries and predictions.
type IntakeStore interface {
	InsertSymptomEntry(ctx context.Context, e *SymptomEntry) error
	GetSymptomEntry(ctx context.Context, id uuid.UUID) (*SymptomEntry, error)

	// ListSymptomEntries pages entries for a patient by created_at descending
	// (keyset pagination). A non-nil cursor restricts to entries created
	// strictly before it. nextCursor is nil on the last page.
	ListSymptomEntries(ctx context.Context, tenantID, patientID uuid.UUID, limit int, cursor *time.Time) (items []SymptomEntry, total int, nextCursor *time.Time, err error)

	// SavePrediction persists a prediction together with its audit event.
	// Backends that support transactions apply both atomically.
	SavePrediction(ctx context.Context, p *Prediction, ev *AuditEvent) error

	ListPredictions(ctx context.Context, tenantID, patientID uuid.UUID, limit, offset int) (items []Prediction, total int, err error)
}

// CaseStore manages care cases.
type CaseStore interface {
	CreateCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, id uuid.UUID) (*Case, error)
	ListCases(ctx context.Context, tenantID, assignedTo uuid.UUID, status string) ([]Case, error)
	UpdateCaseStatus(ctx context.Context, id uuid.UUID, status string) (*Case, error)
}

// AuditStore persists tenant-scoped audit events.
type AuditStore interface {
	InsertAuditEvent(ctx context.Context, ev *AuditEvent) error
	RecentAuditEvents(ctx context.Context, tenantID uuid.UUID, limit int) ([]AuditEvent, error)
}

package core

import (
	"time"

	"github.com/google/uuid"
)

// AuthRecord is an operational audit record for authentication decisions
// (sign-up, sign-in, refresh, denied authorization). It is written by the
// auth core through an Auditor, separate from the tenant-visible AuditEvent
// rows kept in the store.
type AuthRecord struct {
	// ID is the unique request ID (X-Correlation-ID).
	ID string `json:"id"`

	// Time is the timestamp of the event.
	Time time.Time `json:"time"`

	// Action describes what happened (e.g. "auth.signin", "auth.refresh").
	Action string `json:"action"`

	Email       string `json:"email,omitempty"`
	PrincipalID string `json:"principal_id,omitempty"`
	TenantID    string `json:"tenant_id,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Auditor records authentication decisions.
type Auditor interface {
	Log(rec AuthRecord) error
	Close() error
}

// AuditEvent is a tenant-scoped audit row (e.g. a prediction call).
type AuditEvent struct {
	ID       int64          `json:"id"`
	TenantID uuid.UUID      `json:"tenant_id"`
	ActorSub uuid.UUID      `json:"actor_sub"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id,omitempty"`
	Time     time.Time      `json:"ts"`
	Meta     map[string]any `json:"meta,omitempty"`
}

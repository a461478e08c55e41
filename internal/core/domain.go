package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the application role used for RBAC.
// Roles form a fixed set; authorization is decided by comparing a
// principal's role against an operation's required role set.
type Role string

const (
	RolePatient      Role = "patient"
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
)

// ParseRole converts a raw string into a known Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePatient, RoleProfessional, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Tenant is the isolation boundary grouping principals and their data.
// All claims and authorization checks are scoped to a tenant.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Principal is a user identity. It is owned by the persistence layer and
// referenced, never mutated, by the auth core.
type Principal struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	MFAEnabled   bool      `json:"mfa_enabled"`
	MFASecret    string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

package auth

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/admaesmo/AidDiag/internal/core"
)

// PrincipalContext is the request-scoped identity handed to downstream
// collaborators. Its tenant id must scope all data access.
type PrincipalContext struct {
	PrincipalID uuid.UUID
	TenantID    uuid.UUID
	Role        core.Role
	Scope       string
}

// Authorize enforces the required role set for an operation. Every protected
// operation declares its roles explicitly at the call site; they are never
// inferred. It fails with core.ErrForbidden if the claim's role is not in
// the set.
func Authorize(claims *core.ValidatedClaims, requiredRoles ...core.Role) (*PrincipalContext, error) {
	allowed := false
	for _, r := range requiredRoles {
		if claims.Role == r {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: role %q", core.ErrForbidden, claims.Role)
	}

	return &PrincipalContext{
		PrincipalID: claims.Subject,
		TenantID:    claims.TenantID,
		Role:        claims.Role,
		Scope:       claims.Scope,
	}, nil
}

package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/admaesmo/AidDiag/internal/core"
)

// Validator checks decoded claims against the expected issuer and audience.
// Checks run in a fixed order and the first failure determines the error
// kind; there is no partial success.
type Validator struct {
	Issuer   string
	Audience string
}

func NewValidator(issuer, audience string) *Validator {
	return &Validator{Issuer: issuer, Audience: audience}
}

// Validate runs the full check list:
//  1. issuer equals the expected issuer
//  2. audience equals the expected audience
//  3. type claim equals expectedType
//  4. expiry is strictly in the future
//  5. subject and tenant id are well-formed identifiers
func (v *Validator) Validate(claims *core.Claims, expectedType core.TokenType) (*core.ValidatedClaims, error) {
	if claims.Issuer != v.Issuer {
		return nil, fmt.Errorf("%w: got %q", core.ErrIssuerMismatch, claims.Issuer)
	}
	if claims.Audience != v.Audience {
		return nil, fmt.Errorf("%w: got %q", core.ErrAudienceMismatch, claims.Audience)
	}
	if claims.Type != expectedType {
		return nil, fmt.Errorf("%w: expected %q, got %q", core.ErrTypeMismatch, expectedType, claims.Type)
	}
	if !claims.ExpiresAt.After(time.Now()) {
		return nil, core.ErrTokenExpired
	}

	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject", core.ErrMalformedClaims)
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant id", core.ErrMalformedClaims)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: role", core.ErrMalformedClaims)
	}

	return &core.ValidatedClaims{
		Subject:   sub,
		TenantID:  tenantID,
		Role:      claims.Role,
		Scope:     claims.Scope,
		Type:      claims.Type,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

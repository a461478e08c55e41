package core

import (
	"time"

	"github.com/google/uuid"
)

// TokenType discriminates access from refresh tokens. A refresh token must
// never be accepted where an access token is required, and vice versa.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// DefaultScope is the scope string embedded in locally issued tokens.
const DefaultScope = "api.read api.write"

// Claims is the identity claim set carried by a signed token, exactly as
// decoded. Subject and TenantID stay raw strings until the Validator has
// checked them; nothing downstream should consume Claims directly.
type Claims struct {
	Issuer    string
	Audience  string
	Subject   string
	TenantID  string
	Role      Role
	Scope     string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ValidatedClaims is the strongly-typed claim set produced by the Validator
// after all checks passed. This is what business logic gets to see.
type ValidatedClaims struct {
	Subject   uuid.UUID
	TenantID  uuid.UUID
	Role      Role
	Scope     string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenArtifact is the result of a successful token issuance.
type TokenArtifact struct {
	// Value is the signed compact token string.
	Value string `json:"value"`

	// ExpiresAt indicates when this token becomes invalid.
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenPair bundles the access and refresh tokens issued at sign-in.
type TokenPair struct {
	Access  TokenArtifact `json:"access"`
	Refresh TokenArtifact `json:"refresh"`
}

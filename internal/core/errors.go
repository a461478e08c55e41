package core

import "errors"

// Key material failures are fatal and prevent process startup.
var ErrKeyMaterial = errors.New("key material unavailable")

// Codec failures. Missing required claims at encode time is a programming
// error; the decode errors cover token integrity.
var (
	ErrEncoding         = errors.New("missing required claim")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMalformed        = errors.New("malformed token")
)

// Validation failures. The first failing check determines the error kind;
// all of them map to an opaque 401 at the boundary.
var (
	ErrIssuerMismatch   = errors.New("issuer mismatch")
	ErrAudienceMismatch = errors.New("audience mismatch")
	ErrTypeMismatch     = errors.New("token type mismatch")
	ErrTokenExpired     = errors.New("token expired")
	ErrMalformedClaims  = errors.New("malformed claims")
)

// Sign-in failures. ErrInvalidCredentials covers both a wrong password and a
// missing principal so callers cannot enumerate accounts.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactivePrincipal  = errors.New("principal inactive")
)

// ErrForbidden is the authorization failure (role not in the required set).
var ErrForbidden = errors.New("forbidden")

// Refresh failures. All decode/validate failures on the refresh path
// collapse into ErrInvalidRefreshToken to avoid leaking which check failed.
var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrPrincipalNotFound   = errors.New("principal not found")
)

// Store-level conflicts.
var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
)

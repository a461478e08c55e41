package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/admaesmo/AidDiag/internal/core"
	"github.com/admaesmo/AidDiag/internal/token"
)

// dummyHash is compared against when no principal matches the email, so the
// sign-in path takes the same time for unknown and known accounts.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("aiddiag-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// Authenticator verifies credentials and issues access and refresh tokens.
type Authenticator struct {
	store      core.PrincipalStore
	codec      *token.Codec
	auditor    core.Auditor
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthenticator(
	store core.PrincipalStore,
	codec *token.Codec,
	auditor core.Auditor,
	issuer, audience string,
	accessTTL, refreshTTL time.Duration,
) *Authenticator {
	return &Authenticator{
		store:      store,
		codec:      codec,
		auditor:    auditor,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// SignIn looks up the principal by email within the tenant, verifies the
// password and issues a token pair. Missing principal and wrong password
// produce the same core.ErrInvalidCredentials.
func (a *Authenticator) SignIn(ctx context.Context, tenantID uuid.UUID, email, password string) (*core.TokenPair, error) {
	logger := log.Ctx(ctx)
	reqID, _ := ctx.Value("correlation_id").(string)

	rec := core.AuthRecord{
		ID:       reqID,
		Time:     time.Now(),
		Action:   "auth.signin",
		Email:    email,
		TenantID: tenantID.String(),
	}
	defer func() {
		if err := a.auditor.Log(rec); err != nil {
			logger.Error().Err(err).Msg("failed to write auth audit record")
		}
	}()

	principal, err := a.store.FindPrincipalByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// burn the same bcrypt cost as the happy path
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			rec.Error = "unknown principal"
			return nil, core.ErrInvalidCredentials
		}
		rec.Error = "store lookup failed"
		return nil, fmt.Errorf("looking up principal: %w", err)
	}
	rec.PrincipalID = principal.ID.String()

	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		rec.Error = "password mismatch"
		return nil, core.ErrInvalidCredentials
	}
	if !principal.Active {
		rec.Error = "principal inactive"
		return nil, core.ErrInactivePrincipal
	}

	pair, err := a.IssuePair(principal)
	if err != nil {
		rec.Error = "token issuance failed"
		return nil, err
	}

	rec.Success = true
	logger.Info().Str("sub", principal.ID.String()).Msg("sign-in succeeded")
	return pair, nil
}

// IssuePair issues an access and a refresh token bound to the principal's
// id, tenant id and role at issuance time. Role changes do not retroactively
// affect already-issued tokens.
func (a *Authenticator) IssuePair(p *core.Principal) (*core.TokenPair, error) {
	access, err := a.issueToken(p, core.TokenTypeAccess, a.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := a.issueToken(p, core.TokenTypeRefresh, a.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &core.TokenPair{Access: *access, Refresh: *refresh}, nil
}

func (a *Authenticator) issueToken(p *core.Principal, typ core.TokenType, ttl time.Duration) (*core.TokenArtifact, error) {
	now := time.Now()
	exp := now.Add(ttl)

	value, err := a.codec.Encode(&core.Claims{
		Issuer:    a.issuer,
		Audience:  a.audience,
		Subject:   p.ID.String(),
		TenantID:  p.TenantID.String(),
		Role:      p.Role,
		Scope:     core.DefaultScope,
		Type:      typ,
		IssuedAt:  now,
		ExpiresAt: exp,
	})
	if err != nil {
		return nil, fmt.Errorf("issuing %s token: %w", typ, err)
	}
	return &core.TokenArtifact{Value: value, ExpiresAt: exp}, nil
}

// HashPassword produces a salted bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(h), nil
}

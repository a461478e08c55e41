package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/admaesmo/AidDiag/internal/core"
	"github.com/admaesmo/AidDiag/internal/token"
)

// RefreshFlow exchanges a valid refresh token for a new access token without
// re-presenting credentials. The new token is bound to the principal's
// current role and active status, not the stale values embedded in the
// refresh token.
type RefreshFlow struct {
	store         core.PrincipalStore
	codec         *token.Codec
	validator     *Validator
	authenticator *Authenticator
	auditor       core.Auditor
}

func NewRefreshFlow(
	store core.PrincipalStore,
	codec *token.Codec,
	validator *Validator,
	authenticator *Authenticator,
	auditor core.Auditor,
) *RefreshFlow {
	return &RefreshFlow{
		store:         store,
		codec:         codec,
		validator:     validator,
		authenticator: authenticator,
		auditor:       auditor,
	}
}

// Refresh decodes and validates the presented token expecting type
// "refresh". Every decode/validate failure (signature, expiry, type
// mismatch) collapses into core.ErrInvalidRefreshToken so callers learn
// nothing about which check failed. The refresh token itself is not rotated.
func (f *RefreshFlow) Refresh(ctx context.Context, refreshToken string) (*core.TokenArtifact, error) {
	logger := log.Ctx(ctx)
	reqID, _ := ctx.Value("correlation_id").(string)

	rec := core.AuthRecord{
		ID:     reqID,
		Time:   time.Now(),
		Action: "auth.refresh",
	}
	defer func() {
		if err := f.auditor.Log(rec); err != nil {
			logger.Error().Err(err).Msg("failed to write auth audit record")
		}
	}()

	claims, err := f.codec.Decode(refreshToken)
	if err != nil {
		rec.Error = "decode failed"
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidRefreshToken, err)
	}

	validated, err := f.validator.Validate(claims, core.TokenTypeRefresh)
	if err != nil {
		rec.Error = "validation failed"
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidRefreshToken, err)
	}
	rec.PrincipalID = validated.Subject.String()
	rec.TenantID = validated.TenantID.String()

	principal, err := f.store.GetPrincipal(ctx, validated.Subject)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			rec.Error = "principal not found"
			return nil, core.ErrPrincipalNotFound
		}
		rec.Error = "store lookup failed"
		return nil, fmt.Errorf("looking up principal: %w", err)
	}
	if principal.TenantID != validated.TenantID {
		rec.Error = "tenant mismatch"
		return nil, core.ErrPrincipalNotFound
	}
	if !principal.Active {
		rec.Error = "principal inactive"
		return nil, core.ErrInactivePrincipal
	}

	artifact, err := f.authenticator.issueToken(principal, core.TokenTypeAccess, f.authenticator.accessTTL)
	if err != nil {
		rec.Error = "token issuance failed"
		return nil, err
	}

	rec.Success = true
	logger.Info().Str("sub", principal.ID.String()).Msg("access token refreshed")
	return artifact, nil
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/admaesmo/AidDiag/internal/api/presenter"
	"github.com/admaesmo/AidDiag/internal/auth"
	"github.com/admaesmo/AidDiag/internal/core"
	"github.com/admaesmo/AidDiag/internal/token"
)

type principalCtxKey struct{}

// PrincipalFrom retrieves the authenticated principal context stored by
// BearerAuth.
func PrincipalFrom(ctx context.Context) (*auth.PrincipalContext, bool) {
	pc, ok := ctx.Value(principalCtxKey{}).(*auth.PrincipalContext)
	return pc, ok
}

// BearerAuth authenticates a request with a bearer access token and
// authorizes it against the given role set. Token-integrity and validation
// failures all surface as an opaque 401; a role miss is a 403 and is written
// to the operational auditor. The principal context is stored for downstream
// handlers.
func BearerAuth(codec *token.Codec, validator *auth.Validator, auditor core.Auditor, requiredRoles ...core.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				presenter.Error(w, r, "missing Authorization header", http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if tokenStr == "" {
				presenter.Error(w, r, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			claims, err := codec.Decode(tokenStr)
			if err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Msg("bearer token decode failed")
				presenter.Error(w, r, "invalid token", http.StatusUnauthorized)
				return
			}

			validated, err := validator.Validate(claims, core.TokenTypeAccess)
			if err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Msg("bearer token validation failed")
				presenter.Error(w, r, "invalid token", http.StatusUnauthorized)
				return
			}

			pc, err := auth.Authorize(validated, requiredRoles...)
			if err != nil {
				if errors.Is(err, core.ErrForbidden) {
					log.Ctx(r.Context()).Warn().
						Str("sub", validated.Subject.String()).
						Str("role", string(validated.Role)).
						Msg("authorization denied")
					if logErr := auditor.Log(core.AuthRecord{
						ID:          CorrelationCtx(r.Context()),
						Time:        time.Now(),
						Action:      "authz.denied",
						PrincipalID: validated.Subject.String(),
						TenantID:    validated.TenantID.String(),
						Error:       r.Method + " " + r.URL.Path,
					}); logErr != nil {
						log.Ctx(r.Context()).Error().Err(logErr).Msg("failed to write auth audit record")
					}
					presenter.Error(w, r, "forbidden", http.StatusForbidden)
					return
				}
				presenter.Error(w, r, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalCtxKey{}, pc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

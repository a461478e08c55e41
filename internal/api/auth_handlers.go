package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/admaesmo/AidDiag/internal/api/middleware"
	"github.com/admaesmo/AidDiag/internal/api/presenter"
	"github.com/admaesmo/AidDiag/internal/auth"
	"github.com/admaesmo/AidDiag/internal/core"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLength = 8

// AuthTokenResponse is the sign-in/refresh response body.
type AuthTokenResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type SignUpPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// handleSignUp registers a principal in the configured tenant with a hashed
// password.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload SignUpPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if !emailPattern.MatchString(payload.Email) {
		presenter.Error(w, r, "invalid email", http.StatusBadRequest)
		return
	}
	if len(payload.Password) < minPasswordLength {
		presenter.Error(w, r, "password too short", http.StatusBadRequest)
		return
	}
	if payload.Role == "" {
		payload.Role = string(core.RolePatient)
	}
	role, err := core.ParseRole(payload.Role)
	if err != nil {
		presenter.Error(w, r, "unknown role", http.StatusBadRequest)
		return
	}

	tenant, err := s.principals.GetOrCreateTenant(ctx, s.tenantName)
	if err != nil {
		logger.Error().Err(err).Msg("resolving tenant failed")
		presenter.Error(w, r, "internal error", http.StatusInternalServerError)
		return
	}

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		logger.Error().Err(err).Msg("hashing password failed")
		presenter.Error(w, r, "internal error", http.StatusInternalServerError)
		return
	}

	principal := &core.Principal{
		TenantID:     tenant.ID,
		Email:        payload.Email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.principals.CreatePrincipal(ctx, principal); err != nil {
		if errors.Is(err, core.ErrAlreadyExists) {
			presenter.Error(w, r, "user already exists", http.StatusConflict)
			return
		}
		logger.Error().Err(err).Msg("creating principal failed")
		presenter.Error(w, r, "internal error", http.StatusInternalServerError)
		return
	}

	if err := s.auditor.Log(core.AuthRecord{
		ID:          middleware.CorrelationCtx(ctx),
		Time:        time.Now(),
		Action:      "auth.signup",
		Email:       principal.Email,
		PrincipalID: principal.ID.String(),
		TenantID:    tenant.ID.String(),
		Success:     true,
	}); err != nil {
		logger.Error().Err(err).Msg("failed to write auth audit record")
	}

	presenter.JSON(w, r, principal, http.StatusCreated)
}

type SignInPayload struct {
	// password mode
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`

	// OIDC mode
	IDToken     string `json:"id_token,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

// handleSignIn supports both local password-based login and OIDC validation.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload SignInPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	if payload.IDToken != "" {
		if s.oidc == nil {
			presenter.Error(w, r, "oidc sign-in not configured", http.StatusBadRequest)
			return
		}
		identity, err := s.oidc.VerifyIDToken(ctx, payload.IDToken)
		if err != nil {
			logger.Warn().Err(err).Msg("oidc verification failed")
			presenter.Error(w, r, "invalid credentials", http.StatusUnauthorized)
			return
		}
		presenter.JSON(w, r, AuthTokenResponse{
			Token:     payload.AccessToken,
			TokenType: "Bearer",
			ExpiresAt: identity.ExpiresAt,
		}, http.StatusOK)
		return
	}

	tenant, err := s.principals.GetOrCreateTenant(ctx, s.tenantName)
	if err != nil {
		logger.Error().Err(err).Msg("resolving tenant failed")
		presenter.Error(w, r, "internal error", http.StatusInternalServerError)
		return
	}

	pair, err := s.authenticator.SignIn(ctx, tenant.ID, payload.Email, payload.Password)
	if err != nil {
		// wrong password, unknown email and an inactive account all map to
		// the same opaque response to resist account enumeration
		if errors.Is(err, core.ErrInvalidCredentials) || errors.Is(err, core.ErrInactivePrincipal) {
			presenter.Error(w, r, "invalid credentials", http.StatusUnauthorized)
			return
		}
		logger.Error().Err(err).Msg("sign-in failed")
		presenter.Error(w, r, "internal error", http.StatusInternalServerError)
		return
	}

	presenter.JSON(w, r, AuthTokenResponse{
		Token:        pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		TokenType:    "Bearer",
		ExpiresAt:    pair.Access.ExpiresAt,
	}, http.StatusOK)
}

type RefreshPayload struct {
	RefreshToken string `json:"refresh_token"`
}

// handleRefresh issues a new access token using a valid refresh token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload RefreshPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	artifact, err := s.refreshFlow.Refresh(ctx, payload.RefreshToken)
	if err != nil {
		if errors.Is(err, core.ErrInvalidRefreshToken) ||
			errors.Is(err, core.ErrPrincipalNotFound) ||
			errors.Is(err, core.ErrInactivePrincipal) {
			presenter.Error(w, r, "invalid or expired refresh token", http.StatusUnauthorized)
			return
		}
		logger.Error().Err(err).Msg("refresh failed")
		presenter.Error(w, r, "internal error", http.StatusInternalServerError)
		return
	}

	presenter.JSON(w, r, AuthTokenResponse{
		Token:     artifact.Value,
		TokenType: "Bearer",
		ExpiresAt: artifact.ExpiresAt,
	}, http.StatusOK)
}

type AssignRolePayload struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

// handleAssignRole changes a principal's role (admin-only).
func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pc, _ := middleware.PrincipalFrom(ctx)

	var payload AssignRolePayload
	if err := DecodePayload(r, &payload, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	role, err := core.ParseRole(payload.Role)
	if err != nil {
		presenter.Error(w, r, "unknown role", http.StatusBadRequest)
		return
	}

	principal, err := s.principals.GetPrincipal(ctx, payload.UserID)
	if err != nil || principal.TenantID != pc.TenantID {
		presenter.Error(w, r, "user not found", http.StatusNotFound)
		return
	}

	principal.Role = role
	if err := s.principals.UpdatePrincipal(ctx, principal); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("updating principal failed")
		presenter.Error(w, r, "internal error", http.StatusInternalServerError)
		return
	}
	presenter.JSON(w, r, principal, http.StatusOK)
}

type EnableMFAPayload struct {
	UserID *uuid.UUID `json:"user_id,omitempty"`
}

// handleEnableMFA simulates enabling MFA by storing a generated secret.
// Non-admins may only enable it for themselves.
func (s *Server) handleEnableMFA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pc, _ := middleware.PrincipalFrom(ctx)

	var payload EnableMFAPayload
	if err := DecodePayload(r, &payload, true); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	targetID := pc.PrincipalID
	if payload.UserID != nil {
		targetID = *payload.UserID
	}
	if targetID != pc.PrincipalID && pc.Role != core.RoleAdmin {
		presenter.Error(w, r, "not allowed", http.StatusForbidden)
		return
	}

	principal, err := s.principals.GetPrincipal(ctx, targetID)
	if err != nil || principal.TenantID != pc.TenantID {
		presenter.Error(w, r, "user not found", http.StatusNotFound)
		return
	}

	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		presenter.Error(w, r, "internal error", http.StatusInternalServerError)
		return
	}
	principal.MFAEnabled = true
	principal.MFASecret = hex.EncodeToString(secret)

	if err := s.principals.UpdatePrincipal(ctx, principal); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("updating principal failed")
		presenter.Error(w, r, "internal error", http.StatusInternalServerError)
		return
	}
	presenter.JSON(w, r, principal, http.StatusOK)
}

type PasswordResetPayload struct {
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

// handlePasswordReset updates the stored hash. Non-admins may only reset
// their own password.
func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pc, _ := middleware.PrincipalFrom(ctx)

	var payload PasswordResetPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if len(payload.NewPassword) < minPasswordLength {
		presenter.Error(w, r, "password too short", http.StatusBadRequest)
		return
	}

	principal, err := s.principals.FindPrincipalByEmail(ctx, pc.TenantID, payload.Email)
	if err != nil {
		presenter.Error(w, r, "user not found", http.StatusNotFound)
		return
	}
	if principal.ID != pc.PrincipalID && pc.Role != core.RoleAdmin {
		presenter.Error(w, r, "not allowed", http.StatusForbidden)
		return
	}

	hash, err := auth.HashPassword(payload.NewPassword)
	if err != nil {
		presenter.Error(w, r, "internal error", http.StatusInternalServerError)
		return
	}
	principal.PasswordHash = hash

	if err := s.principals.UpdatePrincipal(ctx, principal); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("updating principal failed")
		presenter.Error(w, r, "internal error", http.StatusInternalServerError)
		return
	}
	presenter.JSON(w, r, principal, http.StatusOK)
}

// MeResponse is the authenticated profile plus the token's scopes.
type MeResponse struct {
	User   *core.Principal `json:"user"`
	Scopes []string        `json:"scopes"`
}

// handleMe returns the authenticated user's profile along with scopes.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pc, _ := middleware.PrincipalFrom(ctx)

	principal, err := s.principals.GetPrincipal(ctx, pc.PrincipalID)
	if err != nil {
		presenter.Error(w, r, "user not found", http.StatusNotFound)
		return
	}

	presenter.JSON(w, r, MeResponse{
		User:   principal,
		Scopes: strings.Fields(pc.Scope),
	}, http.StatusOK)
}

package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/admaesmo/AidDiag/internal/audit"
	"github.com/admaesmo/AidDiag/internal/core"
	"github.com/admaesmo/AidDiag/internal/keys"
	"github.com/admaesmo/AidDiag/internal/store"
	"github.com/admaesmo/AidDiag/internal/token"
)

type authFixture struct {
	store         *store.Memory
	codec         *token.Codec
	validator     *Validator
	authenticator *Authenticator
	refresh       *RefreshFlow
	tenant        *core.Tenant
}

func newAuthFixture(t *testing.T, accessTTL, refreshTTL time.Duration) *authFixture {
	t.Helper()

	material, err := keys.LoadOrGenerate(filepath.Join(t.TempDir(), "private.pem"), "test-kid")
	if err != nil {
		t.Fatalf("generating key material: %v", err)
	}

	mem := store.NewMemory()
	tenant, err := mem.GetOrCreateTenant(context.Background(), "demo")
	if err != nil {
		t.Fatalf("creating tenant: %v", err)
	}

	codec := token.NewCodec(material)
	validator := NewValidator(testIssuer, testAudience)
	auditor := audit.NewMemoryAuditor()
	authenticator := NewAuthenticator(mem, codec, auditor, testIssuer, testAudience, accessTTL, refreshTTL)

	return &authFixture{
		store:         mem,
		codec:         codec,
		validator:     validator,
		authenticator: authenticator,
		refresh:       NewRefreshFlow(mem, codec, validator, authenticator, auditor),
		tenant:        tenant,
	}
}

func (f *authFixture) createUser(t *testing.T, email, password string, role core.Role, active bool) *core.Principal {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	p := &core.Principal{
		TenantID:     f.tenant.ID,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       active,
	}
	if err := f.store.CreatePrincipal(context.Background(), p); err != nil {
		t.Fatalf("creating principal: %v", err)
	}
	return p
}

func TestSignInIssuesValidPair(t *testing.T) {
	f := newAuthFixture(t, 15*time.Minute, 7*24*time.Hour)
	user := f.createUser(t, "pro@demo.local", "Pro123!", core.RoleProfessional, true)

	pair, err := f.authenticator.SignIn(context.Background(), f.tenant.ID, "pro@demo.local", "Pro123!")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	access, err := f.codec.Decode(pair.Access.Value)
	if err != nil {
		t.Fatalf("decoding access token: %v", err)
	}
	validated, err := f.validator.Validate(access, core.TokenTypeAccess)
	if err != nil {
		t.Fatalf("validating access token: %v", err)
	}
	if validated.Subject != user.ID {
		t.Errorf("subject = %s, want %s", validated.Subject, user.ID)
	}
	if validated.TenantID != f.tenant.ID {
		t.Errorf("tenant = %s, want %s", validated.TenantID, f.tenant.ID)
	}
	if validated.Role != core.RoleProfessional {
		t.Errorf("role = %s, want professional", validated.Role)
	}

	refresh, err := f.codec.Decode(pair.Refresh.Value)
	if err != nil {
		t.Fatalf("decoding refresh token: %v", err)
	}
	if _, err := f.validator.Validate(refresh, core.TokenTypeRefresh); err != nil {
		t.Fatalf("validating refresh token: %v", err)
	}
	if !pair.Refresh.ExpiresAt.After(pair.Access.ExpiresAt) {
		t.Error("refresh token should outlive the access token")
	}
}

func TestSignInFailures(t *testing.T) {
	f := newAuthFixture(t, 15*time.Minute, 7*24*time.Hour)
	f.createUser(t, "pro@demo.local", "Pro123!", core.RoleProfessional, true)
	f.createUser(t, "ghost@demo.local", "Ghost123!", core.RolePatient, false)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"wrong password", "pro@demo.local", "nope", core.ErrInvalidCredentials},
		{"unknown email", "nobody@demo.local", "Pro123!", core.ErrInvalidCredentials},
		{"inactive account", "ghost@demo.local", "Ghost123!", core.ErrInactivePrincipal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.authenticator.SignIn(context.Background(), f.tenant.ID, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SignIn() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// unknown email and wrong password must be indistinguishable to the caller
func TestSignInEnumerationResistance(t *testing.T) {
	f := newAuthFixture(t, 15*time.Minute, 7*24*time.Hour)
	f.createUser(t, "pro@demo.local", "Pro123!", core.RoleProfessional, true)

	_, errWrongPassword := f.authenticator.SignIn(context.Background(), f.tenant.ID, "pro@demo.local", "nope")
	_, errUnknownEmail := f.authenticator.SignIn(context.Background(), f.tenant.ID, "nobody@demo.local", "nope")

	if !errors.Is(errWrongPassword, core.ErrInvalidCredentials) || !errors.Is(errUnknownEmail, core.ErrInvalidCredentials) {
		t.Fatalf("errors = %v / %v, want core.ErrInvalidCredentials for both", errWrongPassword, errUnknownEmail)
	}
}

func TestRefreshIssuesAccessToken(t *testing.T) {
	f := newAuthFixture(t, 15*time.Minute, 7*24*time.Hour)
	f.createUser(t, "pat@demo.local", "Patient123!", core.RolePatient, true)

	pair, err := f.authenticator.SignIn(context.Background(), f.tenant.ID, "pat@demo.local", "Patient123!")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	artifact, err := f.refresh.Refresh(context.Background(), pair.Refresh.Value)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	claims, err := f.codec.Decode(artifact.Value)
	if err != nil {
		t.Fatalf("decoding refreshed token: %v", err)
	}
	if _, err := f.validator.Validate(claims, core.TokenTypeAccess); err != nil {
		t.Errorf("refreshed token is not a valid access token: %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newAuthFixture(t, 15*time.Minute, 7*24*time.Hour)
	f.createUser(t, "pat@demo.local", "Patient123!", core.RolePatient, true)

	pair, err := f.authenticator.SignIn(context.Background(), f.tenant.ID, "pat@demo.local", "Patient123!")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	// access token presented where a refresh token is required
	_, err = f.refresh.Refresh(context.Background(), pair.Access.Value)
	if !errors.Is(err, core.ErrInvalidRefreshToken) {
		t.Errorf("Refresh() error = %v, want core.ErrInvalidRefreshToken", err)
	}
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	f := newAuthFixture(t, -time.Minute, -time.Minute)
	f.createUser(t, "pat@demo.local", "Patient123!", core.RolePatient, true)

	pair, err := f.authenticator.SignIn(context.Background(), f.tenant.ID, "pat@demo.local", "Patient123!")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	_, err = f.refresh.Refresh(context.Background(), pair.Refresh.Value)
	if !errors.Is(err, core.ErrInvalidRefreshToken) {
		t.Errorf("Refresh() error = %v, want core.ErrInvalidRefreshToken", err)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	f := newAuthFixture(t, 15*time.Minute, 7*24*time.Hour)

	_, err := f.refresh.Refresh(context.Background(), "garbage")
	if !errors.Is(err, core.ErrInvalidRefreshToken) {
		t.Errorf("Refresh() error = %v, want core.ErrInvalidRefreshToken", err)
	}
}

// a role change between sign-in and refresh must show up in the new access
// token
func TestRefreshPicksUpCurrentRole(t *testing.T) {
	f := newAuthFixture(t, 15*time.Minute, 7*24*time.Hour)
	user := f.createUser(t, "pat@demo.local", "Patient123!", core.RolePatient, true)

	pair, err := f.authenticator.SignIn(context.Background(), f.tenant.ID, "pat@demo.local", "Patient123!")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	user.Role = core.RoleProfessional
	if err := f.store.UpdatePrincipal(context.Background(), user); err != nil {
		t.Fatalf("updating principal: %v", err)
	}

	artifact, err := f.refresh.Refresh(context.Background(), pair.Refresh.Value)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	claims, err := f.codec.Decode(artifact.Value)
	if err != nil {
		t.Fatalf("decoding refreshed token: %v", err)
	}
	if claims.Role != core.RoleProfessional {
		t.Errorf("role = %s, want professional after role change", claims.Role)
	}
}

func TestRefreshRejectsDeactivatedPrincipal(t *testing.T) {
	f := newAuthFixture(t, 15*time.Minute, 7*24*time.Hour)
	user := f.createUser(t, "pat@demo.local", "Patient123!", core.RolePatient, true)

	pair, err := f.authenticator.SignIn(context.Background(), f.tenant.ID, "pat@demo.local", "Patient123!")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	user.Active = false
	if err := f.store.UpdatePrincipal(context.Background(), user); err != nil {
		t.Fatalf("updating principal: %v", err)
	}

	_, err = f.refresh.Refresh(context.Background(), pair.Refresh.Value)
	if !errors.Is(err, core.ErrInactivePrincipal) {
		t.Errorf("Refresh() error = %v, want core.ErrInactivePrincipal", err)
	}
}

func TestSignInWritesAuditRecords(t *testing.T) {
	material, err := keys.LoadOrGenerate(filepath.Join(t.TempDir(), "private.pem"), "test-kid")
	if err != nil {
		t.Fatalf("generating key material: %v", err)
	}
	mem := store.NewMemory()
	tenant, err := mem.GetOrCreateTenant(context.Background(), "demo")
	if err != nil {
		t.Fatalf("creating tenant: %v", err)
	}
	auditor := audit.NewMemoryAuditor()
	authenticator := NewAuthenticator(mem, token.NewCodec(material), auditor, testIssuer, testAudience, time.Minute, time.Hour)

	_, _ = authenticator.SignIn(context.Background(), tenant.ID, "nobody@demo.local", "nope")

	records := auditor.Recent(10)
	if len(records) != 1 {
		t.Fatalf("got %d audit records, want 1", len(records))
	}
	if records[0].Action != "auth.signin" || records[0].Success {
		t.Errorf("unexpected audit record: %+v", records[0])
	}
}

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier validates upstream identity tokens for the federated sign-in
// mode. It plays no part in locally issued tokens.
type OIDCVerifier struct {
	issuerURL string
	verifier  *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("creating oidc provider for %q: %w", issuerURL, err)
	}
	return &OIDCVerifier{
		issuerURL: issuerURL,
		verifier:  provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// UpstreamIdentity is the subset of upstream claims the sign-in boundary
// needs.
type UpstreamIdentity struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// VerifyIDToken validates the upstream id_token and extracts the identity.
func (v *OIDCVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (*UpstreamIdentity, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("oidc verification failed: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("extracting oidc claims: %w", err)
	}

	return &UpstreamIdentity{
		Subject:   idToken.Subject,
		Email:     claims.Email,
		ExpiresAt: idToken.Expiry,
	}, nil
}

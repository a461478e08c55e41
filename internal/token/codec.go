// Package token encodes and decodes the signed tokens carrying identity
// claims. Signing is RS256 with a kid header; verification resolves the kid
// against the public key set, never the private key.
package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/admaesmo/AidDiag/internal/core"
	"github.com/admaesmo/AidDiag/internal/keys"
)

// wireClaims is the JSON shape of claims on the wire.
type wireClaims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	Scope    string `json:"scope"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens. It is immutable after construction and
// safe for concurrent use.
type Codec struct {
	material *keys.Material
}

func NewCodec(material *keys.Material) *Codec {
	return &Codec{material: material}
}

// Encode signs the claim set with the private key. It fails with
// core.ErrEncoding if a required claim field is missing.
func (c *Codec) Encode(claims *core.Claims) (string, error) {
	for name, value := range map[string]string{
		"iss":       claims.Issuer,
		"aud":       claims.Audience,
		"sub":       claims.Subject,
		"tenant_id": claims.TenantID,
		"role":      string(claims.Role),
		"typ":       string(claims.Type),
	} {
		if value == "" {
			return "", fmt.Errorf("%w: %s", core.ErrEncoding, name)
		}
	}
	if claims.ExpiresAt.IsZero() {
		return "", fmt.Errorf("%w: exp", core.ErrEncoding)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, wireClaims{
		TenantID: claims.TenantID,
		Role:     string(claims.Role),
		Scope:    claims.Scope,
		Type:     string(claims.Type),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    claims.Issuer,
			Audience:  jwt.ClaimStrings{claims.Audience},
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	tok.Header["kid"] = c.material.KID()

	signed, err := tok.SignedString(c.material.Private())
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Decode parses the token and verifies its signature using the key id from
// the header, matched against the public key set. Claim validity (expiry,
// issuer, audience, type) is deliberately NOT checked here; that is the
// Validator's job, so each check has exactly one home.
func (c *Codec) Decode(tokenString string) (*core.Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	var wire wireClaims
	_, err := parser.ParseWithClaims(tokenString, &wire, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing key id")
		}
		pub, ok := c.material.KeySet().Lookup(kid)
		if !ok {
			return nil, fmt.Errorf("unknown signing key %q", kid)
		}
		return pub, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", core.ErrMalformed, err)
		}
		// unknown kid, wrong key and bad signatures all collapse here
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}

	claims := &core.Claims{
		Issuer:   wire.Issuer,
		Subject:  wire.Subject,
		TenantID: wire.TenantID,
		Role:     core.Role(wire.Role),
		Scope:    wire.Scope,
		Type:     core.TokenType(wire.Type),
	}
	if len(wire.Audience) > 0 {
		claims.Audience = wire.Audience[0]
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}
	return claims, nil
}

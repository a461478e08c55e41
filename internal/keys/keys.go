// Package keys loads or generates the RSA key pair used to sign locally
// issued tokens and exposes the public half as a JWKS.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/admaesmo/AidDiag/internal/core"
)

const keySize = 2048

// Material holds the private signing key and the derived verification set.
// It is constructed once at process start and read-only afterwards.
type Material struct {
	kid     string
	private *rsa.PrivateKey
	set     *Set
}

// LoadOrGenerate loads the PEM-encoded RSA private key at path, generating
// and persisting a fresh one on first run. The key is published atomically,
// so two instances racing at startup agree on a single winner: the loser
// re-reads the complete file the winner wrote.
func LoadOrGenerate(path, kid string) (*Material, error) {
	pemBytes, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if pemBytes, err = generate(path); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", core.ErrKeyMaterial, path, err)
	}

	private, err := parsePrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", core.ErrKeyMaterial, path, err)
	}

	m := &Material{kid: kid, private: private}
	m.set = &Set{Keys: []JWK{newJWK(kid, &private.PublicKey)}}
	return m, nil
}

func generate(path string) ([]byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, keySize)
	if err != nil {
		return nil, fmt.Errorf("%w: generating key: %v", core.ErrKeyMaterial, err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating key directory: %v", core.ErrKeyMaterial, err)
	}

	// write the full PEM to a temp file first, then publish it with a hard
	// link. Link fails if the path already exists, so there is never a
	// window where the key file is visible but incomplete.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".private-*.pem")
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp key file: %v", core.ErrKeyMaterial, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(pemBytes); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("%w: writing %s: %v", core.ErrKeyMaterial, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: writing %s: %v", core.ErrKeyMaterial, tmpPath, err)
	}

	if err := os.Link(tmpPath, path); err != nil {
		if os.IsExist(err) {
			// another instance won the race; use its key
			existing, readErr := os.ReadFile(path)
			if readErr != nil {
				return nil, fmt.Errorf("%w: reading concurrently created key: %v", core.ErrKeyMaterial, readErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("%w: creating %s: %v", core.ErrKeyMaterial, path, err)
	}
	return pemBytes, nil
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return key, nil
}

// KID returns the key id embedded in token headers.
func (m *Material) KID() string { return m.kid }

// Private returns the signing key. It must never leave the process.
func (m *Material) Private() *rsa.PrivateKey { return m.private }

// KeySet returns the public verification key set.
func (m *Material) KeySet() *Set { return m.set }

// JWK is a single RSA verification key in JWKS form.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Set is the public verification key set. No private material is ever
// exposed here.
type Set struct {
	Keys []JWK `json:"keys"`
}

func newJWK(kid string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// Lookup resolves a public key by key id.
func (s *Set) Lookup(kid string) (*rsa.PublicKey, bool) {
	for _, k := range s.Keys {
		if k.Kid != kid || k.Kty != "RSA" {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, false
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, false
		}
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(new(big.Int).SetBytes(eBytes).Int64()),
		}, true
	}
	return nil, false
}

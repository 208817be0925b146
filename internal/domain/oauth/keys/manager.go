package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"

	"github.com/google/uuid"

	"aegis-server-go/internal/platform/errors"
)

// JWK is a single RSA public key in JSON Web Key form.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the document served from the jwks endpoints.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// Manager holds the signing key material for the lifetime of the process.
// Keys are generated once at construction and never mutated afterwards, so
// reads need no locking.
type Manager struct {
	kid     string
	private *rsa.PrivateKey
	jwks    JWKS
}

const rsaKeyBits = 2048

// NewManager generates a fresh RSA-2048 keypair and assigns it a random kid.
func NewManager() (*Manager, error) {
	const op = "keys.NewManager"

	private, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, errors.Wrap(errors.KindPlatform, op, "generate rsa keypair", err)
	}

	kid := uuid.NewString()
	return &Manager{
		kid:     kid,
		private: private,
		jwks:    JWKS{Keys: []JWK{publicJWK(kid, &private.PublicKey)}},
	}, nil
}

// ActiveSigningKey returns the kid and private key used for new signatures.
func (m *Manager) ActiveSigningKey() (string, *rsa.PrivateKey) {
	return m.kid, m.private
}

// VerificationKey resolves a kid from a token header to its public key.
func (m *Manager) VerificationKey(kid string) (*rsa.PublicKey, error) {
	if kid != m.kid {
		return nil, errors.New(errors.KindOAuth, "keys.VerificationKey", "unknown key id")
	}
	return &m.private.PublicKey, nil
}

// PublicKeySet returns the published JWKS. The returned value shares no
// mutable state with the manager.
func (m *Manager) PublicKeySet() JWKS {
	keys := make([]JWK, len(m.jwks.Keys))
	copy(keys, m.jwks.Keys)
	return JWKS{Keys: keys}
}

func publicJWK(kid string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

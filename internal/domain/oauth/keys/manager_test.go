package keys

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"
)

func TestNewManagerGeneratesKeypair(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	kid, private := m.ActiveSigningKey()
	if kid == "" {
		t.Errorf("expected non-empty kid")
	}
	if private == nil || private.N.BitLen() != 2048 {
		t.Errorf("expected 2048-bit private key")
	}
	if err := private.Validate(); err != nil {
		t.Errorf("generated key failed validation: %v", err)
	}
}

func TestVerificationKey(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	kid, private := m.ActiveSigningKey()

	pub, err := m.VerificationKey(kid)
	if err != nil {
		t.Fatalf("VerificationKey: %v", err)
	}
	if pub.N.Cmp(private.N) != 0 {
		t.Errorf("verification key does not match signing key")
	}

	if _, err := m.VerificationKey("not-a-kid"); err == nil {
		t.Errorf("expected error for unknown kid")
	}
}

func TestPublicKeySetMatchesSigningKey(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	kid, private := m.ActiveSigningKey()

	set := m.PublicKeySet()
	if len(set.Keys) != 1 {
		t.Fatalf("expected exactly one key, got %d", len(set.Keys))
	}

	jwk := set.Keys[0]
	if jwk.Kty != "RSA" || jwk.Use != "sig" || jwk.Alg != "RS256" {
		t.Errorf("unexpected key parameters: %+v", jwk)
	}
	if jwk.Kid != kid {
		t.Errorf("jwks kid %q does not match signing kid %q", jwk.Kid, kid)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		t.Fatalf("decode modulus: %v", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		t.Fatalf("decode exponent: %v", err)
	}

	rebuilt := &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}
	if rebuilt.N.Cmp(private.N) != 0 || rebuilt.E != private.E {
		t.Errorf("jwks does not round-trip to the signing key")
	}
}

func TestPublicKeySetSerializes(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	raw, err := json.Marshal(m.PublicKeySet())
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}

	var decoded map[string][]map[string]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal jwks: %v", err)
	}
	if len(decoded["keys"]) != 1 {
		t.Fatalf("expected keys array with one entry: %s", raw)
	}
	for _, field := range []string{"kty", "use", "alg", "kid", "n", "e"} {
		if decoded["keys"][0][field] == "" {
			t.Errorf("missing %s field in %s", field, raw)
		}
	}
}

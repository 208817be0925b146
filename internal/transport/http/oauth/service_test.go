package oauth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"aegis-server-go/internal/domain/eventbus/infrastructure"
	"aegis-server-go/internal/domain/oauth/accounts"
	"aegis-server-go/internal/domain/oauth/clients"
	"aegis-server-go/internal/domain/oauth/grant"
	"aegis-server-go/internal/domain/oauth/keys"
	"aegis-server-go/internal/domain/oauth/store"
	"aegis-server-go/internal/domain/oauth/token"
	"aegis-server-go/internal/platform/config"
	platformtesting "aegis-server-go/internal/platform/testing"
	httptransport "aegis-server-go/internal/transport/http"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db := platformtesting.OpenTestDB(t, "http")
	platformtesting.SeedApplication(t, db, "app-1", "s3cr3t", "password,refresh_token", "public.read,admin.read")
	platformtesting.SeedApplication(t, db, "app-2", "s3cr3t", "client_credentials", "public.read")
	platformtesting.SeedAccount(t, db, "alice", "pw123")

	km, err := keys.NewManager()
	if err != nil {
		t.Fatalf("keys.NewManager: %v", err)
	}
	verifier := accounts.NewVerifier(db)
	generator := token.NewGenerator(km, "aegis-server", token.NewAccountClaims(verifier, nil))
	authStore, err := store.NewSQLite(db)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	dispatcher := grant.NewDispatcher(clients.NewRegistry(db), verifier, generator, authStore, nopLogger{})

	router, err := httptransport.Build(httptransport.Options{Config: &config.Config{}})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	service, err := NewService(dispatcher, generator, km, authStore, infrastructure.NewEventRepository(db), nopLogger{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := service.Register(context.Background(), router); err != nil {
		t.Fatalf("Register: %v", err)
	}

	srv := httptest.NewServer(router.Engine)
	t.Cleanup(srv.Close)
	return srv
}

func postToken(t *testing.T, srv *httptest.Server, clientID, clientSecret string, form url.Values) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if clientID != "" {
		req.SetBasicAuth(clientID, clientSecret)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, body
}

func TestTokenEndpointPasswordGrant(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postToken(t, srv, "app-1", "s3cr3t", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"pw123"},
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
	if body["access_token"] == "" || body["token_type"] != "Bearer" {
		t.Errorf("unexpected body: %v", body)
	}
	if exp, _ := body["expires_in"].(float64); int64(exp) != 300 {
		t.Errorf("expires_in = %v, want 300", body["expires_in"])
	}
	if body["refresh_token"] == "" {
		t.Errorf("expected refresh_token in response")
	}
}

func TestTokenEndpointFormClientAuth(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postToken(t, srv, "", "", url.Values{
		"grant_type":    {"password"},
		"client_id":     {"app-1"},
		"client_secret": {"s3cr3t"},
		"username":      {"alice"},
		"password":      {"pw123"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
}

func TestTokenEndpointBadPassword(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postToken(t, srv, "app-1", "s3cr3t", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"nope"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["error"] != "invalid_grant" {
		t.Errorf("error = %v, want invalid_grant", body["error"])
	}
}

func TestTokenEndpointUnknownClient(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postToken(t, srv, "ghost", "whatever", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"pw123"},
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body["error"] != "invalid_client" {
		t.Errorf("error = %v, want invalid_client", body["error"])
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Errorf("expected WWW-Authenticate header")
	}
}

func TestTokenEndpointDisallowedGrant(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postToken(t, srv, "app-2", "s3cr3t", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"pw123"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["error"] != "unauthorized_client" {
		t.Errorf("error = %v, want unauthorized_client", body["error"])
	}
}

func TestTokenEndpointRefreshFlow(t *testing.T) {
	srv := newTestServer(t)

	_, first := postToken(t, srv, "app-1", "s3cr3t", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"pw123"},
	})

	refresh, _ := first["refresh_token"].(string)
	if refresh == "" {
		t.Fatalf("no refresh token issued")
	}

	resp, second := postToken(t, srv, "app-1", "s3cr3t", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, body = %v", resp.StatusCode, second)
	}
	if second["access_token"] == first["access_token"] {
		t.Errorf("refresh must mint a new access token")
	}
}

func TestJWKSEndpointVerifiesIssuedTokens(t *testing.T) {
	srv := newTestServer(t)

	_, body := postToken(t, srv, "app-1", "s3cr3t", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"pw123"},
	})
	access, _ := body["access_token"].(string)
	if access == "" {
		t.Fatalf("no access token issued")
	}

	for _, path := range []string{"/oauth2/jwks", "/.well-known/jwks.json"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		var jwks struct {
			Keys []struct {
				Kty string `json:"kty"`
				Kid string `json:"kid"`
				N   string `json:"n"`
				E   string `json:"e"`
			} `json:"keys"`
		}
		err = json.NewDecoder(resp.Body).Decode(&jwks)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode jwks: %v", err)
		}
		if len(jwks.Keys) != 1 || jwks.Keys[0].Kty != "RSA" {
			t.Fatalf("unexpected jwks from %s: %+v", path, jwks)
		}

		nBytes, err := base64.RawURLEncoding.DecodeString(jwks.Keys[0].N)
		if err != nil {
			t.Fatalf("decode modulus: %v", err)
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(jwks.Keys[0].E)
		if err != nil {
			t.Fatalf("decode exponent: %v", err)
		}
		pub := &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(new(big.Int).SetBytes(eBytes).Int64()),
		}

		parsed, err := jwt.Parse(access, func(tok *jwt.Token) (any, error) {
			if tok.Header["kid"] != jwks.Keys[0].Kid {
				return nil, fmt.Errorf("kid mismatch")
			}
			return pub, nil
		})
		if err != nil || !parsed.Valid {
			t.Fatalf("published key must verify issued tokens: %v", err)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func adminToken(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	_, body := postToken(t, srv, "app-1", "s3cr3t", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"pw123"},
		"scope":      {"admin.read"},
	})
	access, _ := body["access_token"].(string)
	if access == "" {
		t.Fatalf("no admin token issued: %v", body)
	}
	return access
}

func adminRequest(t *testing.T, srv *httptest.Server, method, path, bearer string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestAdminRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := adminRequest(t, srv, http.MethodGet, "/api/admin/authorizations", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAdminRequiresAdminScope(t *testing.T) {
	srv := newTestServer(t)

	_, body := postToken(t, srv, "app-1", "s3cr3t", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"pw123"},
		"scope":      {"public.read"},
	})
	access, _ := body["access_token"].(string)

	resp, _ := adminRequest(t, srv, http.MethodGet, "/api/admin/authorizations", access)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestAdminListAndRevoke(t *testing.T) {
	srv := newTestServer(t)
	bearer := adminToken(t, srv)

	// A second authorization to inspect and revoke.
	_, victim := postToken(t, srv, "app-1", "s3cr3t", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"pw123"},
		"scope":      {"public.read"},
	})

	resp, body := adminRequest(t, srv, http.MethodGet, "/api/admin/authorizations", bearer)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d: %v", resp.StatusCode, body)
	}
	data, _ := body["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("expected 2 authorizations, got %d", len(data))
	}

	var victimID string
	victimAccess, _ := victim["access_token"].(string)
	for _, raw := range data {
		entry, _ := raw.(map[string]any)
		scopes := fmt.Sprintf("%v", entry["scopes"])
		if !strings.Contains(scopes, "admin.read") {
			victimID, _ = entry["id"].(string)
		}
	}
	if victimID == "" {
		t.Fatalf("could not identify second authorization in %v", data)
	}

	resp, _ = adminRequest(t, srv, http.MethodDelete, "/api/admin/authorizations/"+victimID, bearer)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke status = %d", resp.StatusCode)
	}

	// The revoked token no longer authenticates.
	resp, _ = adminRequest(t, srv, http.MethodGet, "/api/admin/stats", victimAccess)
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		t.Fatalf("revoked token status = %d, want 401 or 403", resp.StatusCode)
	}

	resp, _ = adminRequest(t, srv, http.MethodDelete, "/api/admin/authorizations/"+victimID, bearer)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second revoke status = %d, want 404", resp.StatusCode)
	}
}

func TestAdminStats(t *testing.T) {
	srv := newTestServer(t)
	bearer := adminToken(t, srv)

	resp, body := adminRequest(t, srv, http.MethodGet, "/api/admin/stats", bearer)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d: %v", resp.StatusCode, body)
	}
	data, _ := body["data"].(map[string]any)
	if data["type"] != "sqlite" {
		t.Errorf("unexpected stats: %v", data)
	}
}

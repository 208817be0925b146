package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"aegis-server-go/internal/domain/oauth/model"
	platformtesting "aegis-server-go/internal/platform/testing"
)

func TestRegistryResolve(t *testing.T) {
	ctx := context.Background()
	db := platformtesting.OpenTestDB(t, "clients")
	platformtesting.SeedApplication(t, db, "app-1", "s3cr3t", "password, refresh_token", "admin")

	registry := NewRegistry(db)
	client, err := registry.Resolve(ctx, "app-1")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if client.ID != "app-1" {
		t.Errorf("unexpected client id: %s", client.ID)
	}
	if !client.AllowsGrant(model.GrantPassword) || !client.AllowsGrant(model.GrantRefreshToken) {
		t.Errorf("grant types not parsed: %v", client.GrantTypes)
	}
	if client.AllowsGrant(model.GrantClientCredentials) {
		t.Errorf("client_credentials should not be allowed")
	}
	if client.AccessTokenTTL != 300*time.Second {
		t.Errorf("unexpected access TTL: %v", client.AccessTokenTTL)
	}
	if !client.AllowsScope("admin") {
		t.Errorf("scopes not parsed: %v", client.Scopes)
	}
}

func TestRegistryResolveUnknown(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(platformtesting.OpenTestDB(t, "clients"))

	if _, err := registry.Resolve(ctx, "ghost"); !errors.Is(err, ErrUnknownClient) {
		t.Fatalf("expected ErrUnknownClient, got %v", err)
	}
	if _, err := registry.Resolve(ctx, ""); !errors.Is(err, ErrUnknownClient) {
		t.Fatalf("expected ErrUnknownClient for empty id, got %v", err)
	}
}

func TestRegistryVerifySecret(t *testing.T) {
	ctx := context.Background()
	db := platformtesting.OpenTestDB(t, "clients")
	platformtesting.SeedApplication(t, db, "app-1", "s3cr3t", "password", "")

	registry := NewRegistry(db)
	client, err := registry.Resolve(ctx, "app-1")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if !registry.VerifySecret(client, "s3cr3t") {
		t.Errorf("expected correct secret to verify")
	}
	if registry.VerifySecret(client, "wrong") {
		t.Errorf("expected wrong secret to be rejected")
	}
	if registry.VerifySecret(model.Client{}, "anything") {
		t.Errorf("client without a hash must never verify")
	}
}

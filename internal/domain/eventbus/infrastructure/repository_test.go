package infrastructure

import (
	"context"
	"testing"
	"time"

	"aegis-server-go/internal/domain/eventbus/repository"
	platformtesting "aegis-server-go/internal/platform/testing"
)

func newRepo(t *testing.T) repository.EventRepository {
	t.Helper()
	return NewEventRepository(platformtesting.OpenTestDB(t, "audit"))
}

func TestStoreAndFind(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	event := repository.Event{
		EventType:     "oauth:token:issued",
		ClientID:      "app-1",
		PrincipalName: "alice",
		Data:          map[string]any{"grant_type": "password"},
		CreatedAt:     time.Now(),
	}
	if err := repo.Store(ctx, event); err != nil {
		t.Fatalf("Store: %v", err)
	}

	byClient, err := repo.FindByClientID(ctx, "app-1")
	if err != nil {
		t.Fatalf("FindByClientID: %v", err)
	}
	if len(byClient) != 1 || byClient[0].PrincipalName != "alice" {
		t.Fatalf("unexpected events: %+v", byClient)
	}

	byType, err := repo.FindByEventType(ctx, "oauth:token:issued", 10)
	if err != nil {
		t.Fatalf("FindByEventType: %v", err)
	}
	if len(byType) != 1 {
		t.Fatalf("unexpected events: %+v", byType)
	}

	stats, err := repo.GetEventStats(ctx)
	if err != nil {
		t.Fatalf("GetEventStats: %v", err)
	}
	if stats["oauth:token:issued"] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestDeleteOldEvents(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	old := repository.Event{EventType: "oauth:token:issued", ClientID: "app-1", CreatedAt: time.Now().Add(-48 * time.Hour)}
	recent := repository.Event{EventType: "oauth:token:issued", ClientID: "app-1", CreatedAt: time.Now()}
	if err := repo.Store(ctx, old); err != nil {
		t.Fatalf("Store old: %v", err)
	}
	if err := repo.Store(ctx, recent); err != nil {
		t.Fatalf("Store recent: %v", err)
	}

	if err := repo.DeleteOldEvents(ctx, time.Now().Add(-24*time.Hour)); err != nil {
		t.Fatalf("DeleteOldEvents: %v", err)
	}

	events, err := repo.FindByClientID(ctx, "app-1")
	if err != nil {
		t.Fatalf("FindByClientID: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one remaining event, got %d", len(events))
	}
}

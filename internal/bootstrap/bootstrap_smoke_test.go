package bootstrap

import (
	"context"
	"fmt"
	"testing"
	"time"

	platformconfig "aegis-server-go/internal/platform/config"
	platformstorage "aegis-server-go/internal/platform/storage"
)

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init",
		"observability:setup",
		"storage:init",
		"oauth:init-core",
		"events:subscribe",
	}
	if len(steps) != len(want) {
		t.Fatalf("unexpected step count: got %d want %d", len(steps), len(want))
	}
	for i, step := range steps {
		if step.ID != want[i] {
			t.Fatalf("step %d mismatch: got %s want %s", i, step.ID, want[i])
		}
	}
}

func TestExecuteInitGraph(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AEGIS_DB_DSN", fmt.Sprintf("file:bootstrap-test-%d?mode=memory&cache=shared", time.Now().UnixNano()))

	state := &appState{}
	if err := executeInitSteps(context.Background(), InitGraph(), state); err != nil {
		t.Fatalf("executeInitSteps failed: %v", err)
	}
	if state.config == nil {
		t.Fatal("config is nil after init")
	}
	if state.logger == nil {
		t.Fatal("logger is nil after init")
	}
	if state.dispatcher == nil {
		t.Fatal("dispatcher is nil after init")
	}
	if state.authStore == nil {
		t.Fatal("authorization store is nil after init")
	}
	if state.keyManager == nil {
		t.Fatal("key manager is nil after init")
	}
	if state.observabilityShutdown == nil {
		t.Fatal("observability shutdown hook not set")
	}

	defer state.logger.Close()
	defer state.authStore.Close(context.Background())
	defer state.observabilityShutdown(context.Background())
}

func TestBuildAuthStoreDriverSelection(t *testing.T) {
	ctx := context.Background()
	db, err := platformstorage.Open(fmt.Sprintf("file:authstore-test-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	cfg := platformconfig.DefaultConfig()
	cfg.OAuth.Store.Type = "database"
	s, err := buildAuthStore(cfg, db)
	if err != nil {
		t.Fatalf("database alias must select the sqlite store: %v", err)
	}
	s.Close(ctx)

	cfg.OAuth.Store.Type = "etcd"
	if _, err := buildAuthStore(cfg, db); err == nil {
		t.Fatal("expected error for unknown store type")
	}
}

func TestExecuteInitStepsRejectsUnmetDependency(t *testing.T) {
	steps := []initStep{
		{
			ID:        "b",
			Title:     "b",
			DependsOn: []string{"a"},
			Execute:   func(context.Context, *appState) error { return nil },
		},
	}
	if err := executeInitSteps(context.Background(), steps, &appState{}); err == nil {
		t.Fatal("expected dependency error")
	}
}

package testing

import (
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"aegis-server-go/internal/platform/config"
	"aegis-server-go/internal/platform/logging"
	"aegis-server-go/internal/platform/storage"
)

func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Log.Level = "debug"
	cfg.Log.Dir = t.TempDir()
	cfg.DB.DSN = "file::memory:?cache=shared"
	cfg.OAuth.Seed.Enabled = true
	return cfg
}

func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

// OpenTestDB opens a throwaway in-memory sqlite database with migrations
// applied. Each call gets its own shared-cache namespace so tests never see
// each other's rows.
func OpenTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := storage.Open(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

// SeedAccount inserts an account row with a bcrypt-hashed password.
func SeedAccount(t *testing.T, db *gorm.DB, username, password string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := db.Create(&storage.Account{Username: username, PasswordHash: string(hash)}).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

// SeedApplication inserts an application row with a bcrypt-hashed secret and
// the fixture TTLs used throughout the tests (300s access, 600s refresh).
func SeedApplication(t *testing.T, db *gorm.DB, id, secret, grants, scopes string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	if err := db.Create(&storage.Application{
		ID:              id,
		Name:            id,
		SecretHash:      string(hash),
		GrantTypes:      grants,
		Scopes:          scopes,
		AccessTokenTTL:  300,
		RefreshTokenTTL: 600,
	}).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

func AssertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if expected != actual {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}

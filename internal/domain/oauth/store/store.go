package store

import (
	"context"
	"errors"
	"time"

	"aegis-server-go/internal/domain/oauth/model"
)

// ErrNotFound is returned when no authorization matches the lookup.
var ErrNotFound = errors.New("authorization not found")

// Store persists authorization records for the issuance pipeline.
type Store interface {
	Save(ctx context.Context, auth model.Authorization) error
	FindByID(ctx context.Context, id string) (model.Authorization, error)
	FindByAccessToken(ctx context.Context, value string) (model.Authorization, error)
	FindByRefreshToken(ctx context.Context, value string) (model.Authorization, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.Authorization, error)
	CleanupExpired(ctx context.Context) error
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver          string
	Redis           *RedisConfig
	SQLite          *SQLiteConfig
	Memory          *MemoryConfig
	BackgroundClean bool
}

// MemoryConfig holds in-memory tuning knobs.
type MemoryConfig struct {
	GCInterval time.Duration
}

// SQLiteConfig provides the database dependency.
type SQLiteConfig struct {
	DSN string
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

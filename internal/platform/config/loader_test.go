package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoader_Load(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, ".config.yaml")

	configContent := `
server:
  ip: "127.0.0.1"
  port: 9090
log:
  log_level: "DEBUG"
  log_dir: "/tmp/logs"
  log_file: "test.log"
database:
  dsn: "file::memory:?cache=shared"
oauth:
  issuer: "test-issuer"
  store:
    type: "memory"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader := NewLoader().WithDotEnv(false).WithPath(configFile)
	result, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	cfg := result.Config

	if cfg.Server.IP != "127.0.0.1" {
		t.Errorf("expected server IP 127.0.0.1, got %s", cfg.Server.IP)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected server port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("expected log level DEBUG, got %s", cfg.Log.Level)
	}
	if cfg.OAuth.Issuer != "test-issuer" {
		t.Errorf("expected issuer test-issuer, got %s", cfg.OAuth.Issuer)
	}
	if cfg.OAuth.Store.Type != "memory" {
		t.Errorf("expected memory store, got %s", cfg.OAuth.Store.Type)
	}
	if result.Path != configFile {
		t.Errorf("expected path %s, got %s", configFile, result.Path)
	}
}

func TestLoader_DefaultsWhenMissing(t *testing.T) {
	loader := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "absent.yaml"))
	result, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if result.Path != "defaults" {
		t.Errorf("expected defaults path marker, got %s", result.Path)
	}
	cfg := result.Config
	if len(cfg.OAuth.Seed.Applications) != 1 {
		t.Fatalf("expected one seed application, got %d", len(cfg.OAuth.Seed.Applications))
	}
	app := cfg.OAuth.Seed.Applications[0]
	if app.AccessTokenTTL != 5*time.Minute || app.RefreshTokenTTL != 10*time.Minute {
		t.Errorf("unexpected seed TTLs: %v / %v", app.AccessTokenTTL, app.RefreshTokenTTL)
	}
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("AEGIS_SERVER_PORT", "7171")
	t.Setenv("AEGIS_OAUTH_STORE", "memory")

	loader := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "absent.yaml"))
	result, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if result.Config.Server.Port != 7171 {
		t.Errorf("expected env override port 7171, got %d", result.Config.Server.Port)
	}
	if result.Config.OAuth.Store.Type != "memory" {
		t.Errorf("expected env override store memory, got %s", result.Config.OAuth.Store.Type)
	}
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "invalid server port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "missing dsn",
			mutate:  func(c *Config) { c.DB.DSN = "" },
			wantErr: true,
		},
		{
			name:    "database store alias",
			mutate:  func(c *Config) { c.OAuth.Store.Type = "database" },
			wantErr: false,
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.OAuth.Store.Type = "etcd" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := loader.validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

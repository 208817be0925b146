package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from a YAML file with environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader that searches the default config locations.
func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the configuration file path (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load reads the config file (falling back to defaults when absent),
// applies environment overrides and validates the result.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()
	path := "defaults"

	for _, candidate := range l.candidates() {
		data, err := os.ReadFile(candidate)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read config %s: %w", candidate, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", candidate, err)
		}
		path = candidate
		break
	}

	l.applyEnv(cfg)

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func (l *Loader) candidates() []string {
	if l.path != "" {
		return []string{l.path}
	}
	if env := os.Getenv("AEGIS_CONFIG"); env != "" {
		return []string{env}
	}
	return []string{".config.yaml", "config.yaml"}
}

func (l *Loader) applyEnv(cfg *Config) {
	if v := os.Getenv("AEGIS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("AEGIS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("AEGIS_DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("AEGIS_OAUTH_ISSUER"); v != "" {
		cfg.OAuth.Issuer = v
	}
	if v := os.Getenv("AEGIS_OAUTH_STORE"); v != "" {
		cfg.OAuth.Store.Type = v
	}
	if v := os.Getenv("AEGIS_REDIS_ADDR"); v != "" {
		cfg.OAuth.Store.Redis.Addr = v
	}
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.DB.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if cfg.OAuth.Issuer == "" {
		return fmt.Errorf("oauth issuer is required")
	}
	switch cfg.OAuth.Store.Type {
	case "", "memory", "sqlite", "database", "redis":
	default:
		return fmt.Errorf("unsupported authorization store type: %s", cfg.OAuth.Store.Type)
	}
	return nil
}

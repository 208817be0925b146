package config

import (
	"time"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	DB     DBConfig     `yaml:"database"`
	OAuth  OAuthConfig  `yaml:"oauth"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type DBConfig struct {
	DSN string `yaml:"dsn"`
}

// OAuthConfig groups everything the token-issuance core needs.
type OAuthConfig struct {
	Issuer string      `yaml:"issuer"`
	Store  StoreConfig `yaml:"store"`
	Seed   SeedConfig  `yaml:"seed"`
}

// StoreConfig selects the authorization-record store backend.
type StoreConfig struct {
	Type    string           `yaml:"type"`
	Cleanup time.Duration    `yaml:"cleanup"`
	Redis   RedisStoreConfig `yaml:"redis,omitempty"`
	SQLite  SQLiteStore      `yaml:"sqlite,omitempty"`
	Memory  MemoryStore      `yaml:"memory,omitempty"`
}

type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type SQLiteStore struct {
	DSN string `yaml:"dsn,omitempty"`
}

type MemoryStore struct {
	Cleanup time.Duration `yaml:"cleanup"`
}

// SeedConfig lists clients and accounts created on first boot when the
// corresponding tables are empty. Secrets are given in the clear here and
// hashed before being written.
type SeedConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Applications []SeedApplication `yaml:"applications"`
	Accounts     []SeedAccount     `yaml:"accounts"`
}

type SeedApplication struct {
	ClientID        string        `yaml:"client_id"`
	Name            string        `yaml:"name"`
	Secret          string        `yaml:"secret"`
	GrantTypes      string        `yaml:"grant_types"`
	Scopes          string        `yaml:"scopes"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

type SeedAccount struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

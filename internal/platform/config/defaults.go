package config

import "time"

// DefaultConfig returns the configuration used when no config file is
// present. The seed entries mirror the fixtures the service has always
// shipped with so a fresh checkout can issue tokens immediately.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		DB: DBConfig{
			DSN: "data/aegis.db",
		},
		OAuth: OAuthConfig{
			Issuer: "aegis-server",
			Store: StoreConfig{
				Type:    "sqlite",
				Cleanup: 10 * time.Minute,
				Memory: MemoryStore{
					Cleanup: 5 * time.Minute,
				},
			},
			Seed: SeedConfig{
				Enabled: true,
				Applications: []SeedApplication{
					{
						ClientID:        "2d5171b5-3e7f-4b08-8ab6-06d586ecef87",
						Name:            "test",
						Secret:          "test123",
						GrantTypes:      "password,refresh_token,client_credentials",
						Scopes:          "public.*,private.*,admin.*",
						AccessTokenTTL:  5 * time.Minute,
						RefreshTokenTTL: 10 * time.Minute,
					},
				},
				Accounts: []SeedAccount{
					{Username: "admin", Password: "admin123"},
				},
			},
		},
	}
}

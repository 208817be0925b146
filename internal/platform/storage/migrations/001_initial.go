package migrations

import (
	"gorm.io/gorm"
)

// Migration001Initial creates the identity and authorization tables.
type Migration001Initial struct{}

func (m *Migration001Initial) Version() string {
	return "001_initial"
}

func (m *Migration001Initial) Description() string {
	return "Create applications, accounts and authorization record tables"
}

func (m *Migration001Initial) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS applications (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255),
			secret_hash VARCHAR(255) NOT NULL,
			grant_types VARCHAR(255) NOT NULL,
			scopes VARCHAR(1024),
			access_token_ttl INTEGER NOT NULL,
			refresh_token_ttl INTEGER NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		)
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		)
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS authorization_records (
			id VARCHAR(64) PRIMARY KEY,
			client_id VARCHAR(64) NOT NULL,
			principal_name VARCHAR(255) NOT NULL,
			grant_type VARCHAR(32) NOT NULL,
			scopes JSON,
			access_token_value VARCHAR(4096) NOT NULL UNIQUE,
			access_token_issued_at DATETIME NOT NULL,
			access_token_expires_at DATETIME NOT NULL,
			refresh_token_value VARCHAR(4096),
			refresh_token_issued_at DATETIME,
			refresh_token_expires_at DATETIME,
			claims JSON,
			created_at DATETIME
		)
	`).Error; err != nil {
		return err
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_authorization_records_client_id ON authorization_records(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_authorization_records_principal_name ON authorization_records(principal_name)`,
		`CREATE INDEX IF NOT EXISTS idx_authorization_records_access_expires ON authorization_records(access_token_expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_authorization_records_refresh_token ON authorization_records(refresh_token_value)`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}

func (m *Migration001Initial) Down(db *gorm.DB) error {
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS authorization_records`,
		`DROP TABLE IF EXISTS accounts`,
		`DROP TABLE IF EXISTS applications`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

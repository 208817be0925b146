package migrations

import (
	"gorm.io/gorm"
)

// Migration002AuditEvents creates the audit event table.
type Migration002AuditEvents struct{}

func (m *Migration002AuditEvents) Version() string {
	return "002_audit_events"
}

func (m *Migration002AuditEvents) Description() string {
	return "Create audit event table"
}

func (m *Migration002AuditEvents) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type VARCHAR(64) NOT NULL,
			client_id VARCHAR(64),
			principal_name VARCHAR(255),
			data TEXT,
			created_at DATETIME
		)
	`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type)`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_events_client_id ON audit_events(client_id)`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_events_created_at ON audit_events(created_at)`).Error
}

func (m *Migration002AuditEvents) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS audit_events`).Error
}

package storage

import (
	"time"

	"gorm.io/datatypes"
)

// Application is a registered OAuth2 client. Grant types and scopes are
// stored as comma-separated lists, TTLs as whole seconds.
type Application struct {
	ID              string `gorm:"primaryKey;size:64"`
	Name            string `gorm:"size:255"`
	SecretHash      string `gorm:"not null;size:255"`
	GrantTypes      string `gorm:"not null;size:255"`
	Scopes          string `gorm:"size:1024"`
	AccessTokenTTL  int64  `gorm:"not null"`
	RefreshTokenTTL int64  `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Account is a resource owner. Usernames are case-sensitive and unique.
type Account struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string `gorm:"not null;size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthorizationRecord is one successful token issuance. Records are never
// updated; a refresh supersedes the old record with a new one.
type AuthorizationRecord struct {
	ID                    string `gorm:"primaryKey;size:64"`
	ClientID              string `gorm:"index;not null;size:64"`
	PrincipalName         string `gorm:"index;not null;size:255"`
	GrantType             string `gorm:"not null;size:32"`
	Scopes                datatypes.JSON
	AccessTokenValue      string    `gorm:"uniqueIndex;not null;size:4096"`
	AccessTokenIssuedAt   time.Time `gorm:"not null"`
	AccessTokenExpiresAt  time.Time `gorm:"not null;index"`
	RefreshTokenValue     *string   `gorm:"index;size:4096"`
	RefreshTokenIssuedAt  *time.Time
	RefreshTokenExpiresAt *time.Time
	Claims                datatypes.JSON
	CreatedAt             time.Time
}

// AuditEvent is one persisted domain event, kept for the admin surface.
type AuditEvent struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	EventType     string `gorm:"index;not null;size:64"`
	ClientID      string `gorm:"index;size:64"`
	PrincipalName string `gorm:"size:255"`
	Data          datatypes.JSON
	CreatedAt     time.Time `gorm:"index"`
}

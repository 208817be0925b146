package storage

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"aegis-server-go/internal/platform/config"
	"aegis-server-go/internal/platform/errors"
)

// Seed creates the configured default applications and accounts. Each
// table is only seeded while it is empty, so operator-managed rows are
// never overwritten on restart.
func Seed(db *gorm.DB, cfg config.SeedConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if err := seedAccounts(db, cfg.Accounts); err != nil {
		return err
	}
	return seedApplications(db, cfg.Applications)
}

func seedAccounts(db *gorm.DB, accounts []config.SeedAccount) error {
	var count int64
	if err := db.Model(&Account{}).Count(&count).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "seed.accounts", "count accounts", err)
	}
	if count > 0 {
		return nil
	}

	for _, acct := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(acct.Password), bcrypt.DefaultCost)
		if err != nil {
			return errors.Wrap(errors.KindStorage, "seed.accounts", "hash password", err)
		}
		if err := db.Create(&Account{
			Username:     acct.Username,
			PasswordHash: string(hash),
		}).Error; err != nil {
			return errors.Wrap(errors.KindStorage, "seed.accounts", "create account "+acct.Username, err)
		}
	}
	return nil
}

func seedApplications(db *gorm.DB, apps []config.SeedApplication) error {
	var count int64
	if err := db.Model(&Application{}).Count(&count).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "seed.applications", "count applications", err)
	}
	if count > 0 {
		return nil
	}

	for _, app := range apps {
		hash, err := bcrypt.GenerateFromPassword([]byte(app.Secret), bcrypt.DefaultCost)
		if err != nil {
			return errors.Wrap(errors.KindStorage, "seed.applications", "hash secret", err)
		}
		if err := db.Create(&Application{
			ID:              app.ClientID,
			Name:            app.Name,
			SecretHash:      string(hash),
			GrantTypes:      normalizeList(app.GrantTypes),
			Scopes:          normalizeList(app.Scopes),
			AccessTokenTTL:  int64(app.AccessTokenTTL.Seconds()),
			RefreshTokenTTL: int64(app.RefreshTokenTTL.Seconds()),
		}).Error; err != nil {
			return errors.Wrap(errors.KindStorage, "seed.applications", "create application "+app.ClientID, err)
		}
	}
	return nil
}

func normalizeList(raw string) string {
	parts := strings.Split(raw, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, ",")
}

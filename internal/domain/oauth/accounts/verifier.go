package accounts

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"aegis-server-go/internal/domain/oauth/model"
	"aegis-server-go/internal/platform/storage"
)

// ErrBadResourceOwnerCredentials covers both unknown usernames and
// wrong passwords; callers map it to invalid_grant uniformly.
var ErrBadResourceOwnerCredentials = errors.New("bad resource owner credentials")

const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Verifier validates resource-owner credentials against stored hashes.
type Verifier interface {
	VerifyResourceOwner(ctx context.Context, username, password string) (model.Account, error)
}

// Lookup provides read-only account resolution for claim enrichment.
type Lookup interface {
	FindByUsername(ctx context.Context, username string) (model.Account, error)
}

// ErrAccountNotFound is returned by Lookup when no account matches.
var ErrAccountNotFound = errors.New("account not found")

// NewVerifier builds a Verifier (and Lookup) backed by the accounts table.
func NewVerifier(db *gorm.DB) *GormVerifier {
	return &GormVerifier{db: db}
}

// GormVerifier implements Verifier and Lookup over the accounts table.
type GormVerifier struct {
	db *gorm.DB
}

// VerifyResourceOwner looks the account up by exact username match and
// compares the password with the cost factor recorded in the stored
// hash. A dummy comparison runs for unknown users so both failure paths
// cost the same.
func (v *GormVerifier) VerifyResourceOwner(ctx context.Context, username, password string) (model.Account, error) {
	var acct storage.Account
	err := v.db.WithContext(ctx).First(&acct, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return model.Account{}, ErrBadResourceOwnerCredentials
	}
	if err != nil {
		return model.Account{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return model.Account{}, ErrBadResourceOwnerCredentials
	}
	return model.Account{ID: acct.ID, Username: acct.Username}, nil
}

// FindByUsername resolves an account without checking credentials.
func (v *GormVerifier) FindByUsername(ctx context.Context, username string) (model.Account, error) {
	var acct storage.Account
	err := v.db.WithContext(ctx).First(&acct, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	return model.Account{ID: acct.ID, Username: acct.Username}, nil
}

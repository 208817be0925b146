package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"aegis-server-go/internal/domain/oauth/model"
	"aegis-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db *gorm.DB
}

// NewSQLite builds a SQLite-backed authorization store.
func NewSQLite(db *gorm.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Save(ctx context.Context, auth model.Authorization) error {
	if auth.ID == "" {
		return fmt.Errorf("authorization id required")
	}
	if auth.CreatedAt.IsZero() {
		auth.CreatedAt = time.Now()
	}
	record, err := toRecord(auth)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", auth.ID).Delete(&storage.AuthorizationRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
}

func (s *sqliteStore) FindByID(ctx context.Context, id string) (model.Authorization, error) {
	return s.fetch(ctx, "id = ?", id)
}

func (s *sqliteStore) FindByAccessToken(ctx context.Context, value string) (model.Authorization, error) {
	return s.fetch(ctx, "access_token_value = ?", value)
}

func (s *sqliteStore) FindByRefreshToken(ctx context.Context, value string) (model.Authorization, error) {
	return s.fetch(ctx, "refresh_token_value = ?", value)
}

func (s *sqliteStore) Remove(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&storage.AuthorizationRecord{}).Error
}

func (s *sqliteStore) List(ctx context.Context) ([]model.Authorization, error) {
	var records []storage.AuthorizationRecord
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]model.Authorization, 0, len(records))
	for _, r := range records {
		auth, err := fromRecord(r)
		if err != nil {
			return nil, err
		}
		if !auth.Expired(now) {
			out = append(out, auth)
		}
	}
	return out, nil
}

func (s *sqliteStore) CleanupExpired(ctx context.Context) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Where("access_token_expires_at < ? AND (refresh_token_expires_at IS NULL OR refresh_token_expires_at < ?)", now, now).
		Delete(&storage.AuthorizationRecord{}).
		Error
}

func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&storage.AuthorizationRecord{}).Count(&total).Error; err != nil {
		return nil, err
	}
	var active int64
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&storage.AuthorizationRecord{}).
		Where("access_token_expires_at >= ? OR refresh_token_expires_at >= ?", now, now).
		Count(&active).Error
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":   "sqlite",
		"total":  total,
		"active": active,
	}, nil
}

func (s *sqliteStore) Close(context.Context) error {
	return nil
}

func (s *sqliteStore) fetch(ctx context.Context, query string, arg any) (model.Authorization, error) {
	var record storage.AuthorizationRecord
	err := s.db.WithContext(ctx).Where(query, arg).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Authorization{}, ErrNotFound
	}
	if err != nil {
		return model.Authorization{}, err
	}
	auth, err := fromRecord(record)
	if err != nil {
		return model.Authorization{}, err
	}
	if auth.Expired(time.Now()) {
		return model.Authorization{}, ErrNotFound
	}
	return auth, nil
}

func toRecord(auth model.Authorization) (*storage.AuthorizationRecord, error) {
	scopes, err := json.Marshal(auth.Scopes)
	if err != nil {
		return nil, err
	}
	var claims []byte
	if auth.Claims != nil {
		if claims, err = json.Marshal(auth.Claims); err != nil {
			return nil, err
		}
	}

	record := &storage.AuthorizationRecord{
		ID:                   auth.ID,
		ClientID:             auth.ClientID,
		PrincipalName:        auth.PrincipalName,
		GrantType:            string(auth.GrantType),
		Scopes:               scopes,
		AccessTokenValue:     auth.AccessToken.Value,
		AccessTokenIssuedAt:  auth.AccessToken.IssuedAt,
		AccessTokenExpiresAt: auth.AccessToken.ExpiresAt,
		Claims:               claims,
		CreatedAt:            auth.CreatedAt,
	}
	if auth.RefreshToken != nil {
		record.RefreshTokenValue = &auth.RefreshToken.Value
		record.RefreshTokenIssuedAt = &auth.RefreshToken.IssuedAt
		record.RefreshTokenExpiresAt = &auth.RefreshToken.ExpiresAt
	}
	return record, nil
}

func fromRecord(record storage.AuthorizationRecord) (model.Authorization, error) {
	auth := model.Authorization{
		ID:            record.ID,
		ClientID:      record.ClientID,
		PrincipalName: record.PrincipalName,
		GrantType:     model.GrantType(record.GrantType),
		AccessToken: model.Token{
			Value:     record.AccessTokenValue,
			IssuedAt:  record.AccessTokenIssuedAt,
			ExpiresAt: record.AccessTokenExpiresAt,
		},
		CreatedAt: record.CreatedAt,
	}
	if len(record.Scopes) > 0 {
		if err := json.Unmarshal(record.Scopes, &auth.Scopes); err != nil {
			return model.Authorization{}, err
		}
	}
	if len(record.Claims) > 0 {
		if err := json.Unmarshal(record.Claims, &auth.Claims); err != nil {
			return model.Authorization{}, err
		}
	}
	if record.RefreshTokenValue != nil {
		token := model.Token{Value: *record.RefreshTokenValue}
		if record.RefreshTokenIssuedAt != nil {
			token.IssuedAt = *record.RefreshTokenIssuedAt
		}
		if record.RefreshTokenExpiresAt != nil {
			token.ExpiresAt = *record.RefreshTokenExpiresAt
		}
		auth.RefreshToken = &token
	}
	return auth, nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"aegis-server-go/internal/domain/oauth/model"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis constructs a redis-backed authorization store. Records live under
// <prefix><id> with index keys mapping token values back to record ids, all
// expiring with the longest-lived token.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "oauth:authz:"
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) key(id string) string {
	return s.prefix + id
}

func (s *redisStore) accessKey(value string) string {
	return s.prefix + "access:" + value
}

func (s *redisStore) refreshKey(value string) string {
	return s.prefix + "refresh:" + value
}

func (s *redisStore) Save(ctx context.Context, auth model.Authorization) error {
	if auth.ID == "" {
		return fmt.Errorf("authorization id required")
	}
	if auth.CreatedAt.IsZero() {
		auth.CreatedAt = time.Now()
	}
	data, err := json.Marshal(auth)
	if err != nil {
		return err
	}

	expiry := time.Until(auth.AccessToken.ExpiresAt)
	if auth.RefreshToken != nil {
		if until := time.Until(auth.RefreshToken.ExpiresAt); until > expiry {
			expiry = until
		}
	}
	if expiry <= 0 {
		return fmt.Errorf("authorization already expired")
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(auth.ID), data, expiry)
	pipe.Set(ctx, s.accessKey(auth.AccessToken.Value), auth.ID, expiry)
	if auth.RefreshToken != nil {
		pipe.Set(ctx, s.refreshKey(auth.RefreshToken.Value), auth.ID, expiry)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) FindByID(ctx context.Context, id string) (model.Authorization, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Authorization{}, ErrNotFound
		}
		return model.Authorization{}, err
	}
	var auth model.Authorization
	if err := json.Unmarshal(raw, &auth); err != nil {
		return model.Authorization{}, err
	}
	if auth.Expired(time.Now()) {
		_ = s.Remove(ctx, id)
		return model.Authorization{}, ErrNotFound
	}
	return auth, nil
}

func (s *redisStore) FindByAccessToken(ctx context.Context, value string) (model.Authorization, error) {
	return s.findByIndex(ctx, s.accessKey(value))
}

func (s *redisStore) FindByRefreshToken(ctx context.Context, value string) (model.Authorization, error) {
	return s.findByIndex(ctx, s.refreshKey(value))
}

func (s *redisStore) findByIndex(ctx context.Context, indexKey string) (model.Authorization, error) {
	id, err := s.client.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Authorization{}, ErrNotFound
		}
		return model.Authorization{}, err
	}
	return s.FindByID(ctx, id)
}

func (s *redisStore) Remove(ctx context.Context, id string) error {
	auth, err := s.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.client.Del(ctx, s.key(id)).Err()
		}
		return err
	}

	keys := []string{s.key(id), s.accessKey(auth.AccessToken.Value)}
	if auth.RefreshToken != nil {
		keys = append(keys, s.refreshKey(auth.RefreshToken.Value))
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *redisStore) List(ctx context.Context) ([]model.Authorization, error) {
	var cursor uint64
	out := make([]model.Authorization, 0)
	pattern := s.prefix + "*"
	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			suffix := strings.TrimPrefix(key, s.prefix)
			if strings.HasPrefix(suffix, "access:") || strings.HasPrefix(suffix, "refresh:") {
				continue
			}
			auth, err := s.FindByID(ctx, suffix)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, auth)
		}
		if nextCursor == 0 {
			break
		}
		cursor = nextCursor
	}
	return out, nil
}

func (s *redisStore) CleanupExpired(context.Context) error {
	// Redis handles expiration via TTL.
	return nil
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":   "redis",
		"total":  len(records),
		"active": len(records),
	}, nil
}

func (s *redisStore) Close(ctx context.Context) error {
	return s.client.Close()
}

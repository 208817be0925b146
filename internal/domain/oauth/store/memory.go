package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aegis-server-go/internal/domain/oauth/model"
)

type memoryStore struct {
	items       map[string]model.Authorization
	byAccess    map[string]string
	byRefresh   map[string]string
	mutex       sync.RWMutex
	cleanupFreq time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewMemory builds an in-memory authorization store.
func NewMemory(cfg Config) Store {
	cleanup := 5 * time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		cleanup = cfg.Memory.GCInterval
	}
	s := &memoryStore{
		items:       make(map[string]model.Authorization),
		byAccess:    make(map[string]string),
		byRefresh:   make(map[string]string),
		cleanupFreq: cleanup,
		stop:        make(chan struct{}),
	}
	go s.gcLoop()
	return s
}

func (s *memoryStore) gcLoop() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.CleanupExpired(context.Background())
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) Save(_ context.Context, auth model.Authorization) error {
	if auth.ID == "" {
		return fmt.Errorf("authorization id required")
	}
	if auth.CreatedAt.IsZero() {
		auth.CreatedAt = time.Now()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if prev, ok := s.items[auth.ID]; ok {
		s.unindex(prev)
	}
	s.items[auth.ID] = auth
	s.byAccess[auth.AccessToken.Value] = auth.ID
	if auth.RefreshToken != nil {
		s.byRefresh[auth.RefreshToken.Value] = auth.ID
	}
	return nil
}

func (s *memoryStore) FindByID(_ context.Context, id string) (model.Authorization, error) {
	s.mutex.RLock()
	auth, ok := s.items[id]
	s.mutex.RUnlock()
	if !ok || auth.Expired(time.Now()) {
		return model.Authorization{}, ErrNotFound
	}
	return auth, nil
}

func (s *memoryStore) FindByAccessToken(ctx context.Context, value string) (model.Authorization, error) {
	s.mutex.RLock()
	id, ok := s.byAccess[value]
	s.mutex.RUnlock()
	if !ok {
		return model.Authorization{}, ErrNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *memoryStore) FindByRefreshToken(ctx context.Context, value string) (model.Authorization, error) {
	s.mutex.RLock()
	id, ok := s.byRefresh[value]
	s.mutex.RUnlock()
	if !ok {
		return model.Authorization{}, ErrNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *memoryStore) Remove(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	auth, ok := s.items[id]
	if !ok {
		return nil
	}
	s.unindex(auth)
	delete(s.items, id)
	return nil
}

func (s *memoryStore) List(_ context.Context) ([]model.Authorization, error) {
	now := time.Now()
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]model.Authorization, 0, len(s.items))
	for _, auth := range s.items {
		if !auth.Expired(now) {
			out = append(out, auth)
		}
	}
	return out, nil
}

func (s *memoryStore) CleanupExpired(_ context.Context) error {
	now := time.Now()
	s.mutex.Lock()
	for id, auth := range s.items {
		if auth.Expired(now) {
			s.unindex(auth)
			delete(s.items, id)
		}
	}
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	now := time.Now()
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	total := len(s.items)
	active := 0
	for _, auth := range s.items {
		if !auth.Expired(now) {
			active++
		}
	}
	return map[string]any{
		"type":   "memory",
		"total":  total,
		"active": active,
	}, nil
}

func (s *memoryStore) Close(_ context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}

// unindex must be called with the write lock held.
func (s *memoryStore) unindex(auth model.Authorization) {
	delete(s.byAccess, auth.AccessToken.Value)
	if auth.RefreshToken != nil {
		delete(s.byRefresh, auth.RefreshToken.Value)
	}
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PermissionCacheStore caches resolved permission-name sets per user.
// Invalidation is epoch-based: bumping an epoch orphans every key minted
// under the old epoch instead of scanning for them.
type PermissionCacheStore interface {
	Get(ctx context.Context, userID string) ([]string, bool, error)
	Set(ctx context.Context, userID string, permissions []string, ttl time.Duration) error
	InvalidateUser(ctx context.Context, userID string) error
	InvalidateAll(ctx context.Context) error
}

type NoopPermissionCacheStore struct{}

func NewNoopPermissionCacheStore() *NoopPermissionCacheStore {
	return &NoopPermissionCacheStore{}
}

func (s *NoopPermissionCacheStore) Get(context.Context, string) ([]string, bool, error) {
	return nil, false, nil
}

func (s *NoopPermissionCacheStore) Set(context.Context, string, []string, time.Duration) error {
	return nil
}

func (s *NoopPermissionCacheStore) InvalidateUser(context.Context, string) error {
	return nil
}

func (s *NoopPermissionCacheStore) InvalidateAll(context.Context) error {
	return nil
}

type permissionCacheEntry struct {
	permissions []string
	expiresAt   time.Time
}

type InMemoryPermissionCacheStore struct {
	mu          sync.RWMutex
	data        map[string]permissionCacheEntry
	globalEpoch uint64
	userEpoch   map[string]uint64
}

func NewInMemoryPermissionCacheStore() *InMemoryPermissionCacheStore {
	return &InMemoryPermissionCacheStore{
		data:      make(map[string]permissionCacheEntry),
		userEpoch: make(map[string]uint64),
	}
}

func (s *InMemoryPermissionCacheStore) Get(_ context.Context, userID string) ([]string, bool, error) {
	now := time.Now().UTC()
	s.mu.RLock()
	key := s.cacheKeyLocked(userID)
	entry, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if now.After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.data, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]string(nil), entry.permissions...), true, nil
}

func (s *InMemoryPermissionCacheStore) Set(_ context.Context, userID string, permissions []string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.cacheKeyLocked(userID)
	s.data[key] = permissionCacheEntry{
		permissions: append([]string(nil), permissions...),
		expiresAt:   time.Now().UTC().Add(ttl),
	}
	return nil
}

func (s *InMemoryPermissionCacheStore) InvalidateUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userEpoch[userID]++
	return nil
}

func (s *InMemoryPermissionCacheStore) InvalidateAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalEpoch++
	return nil
}

func (s *InMemoryPermissionCacheStore) cacheKeyLocked(userID string) string {
	return buildPermissionCacheKey(s.globalEpoch, s.userEpoch[userID], userID)
}

func buildPermissionCacheKey(globalEpoch, userEpoch uint64, userID string) string {
	return fmt.Sprintf("perm:g%d:u%d:user:%s", globalEpoch, userEpoch, userID)
}

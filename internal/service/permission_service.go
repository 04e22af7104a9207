package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"directory-admin-service/internal/observability"
	"directory-admin-service/internal/repository"
)

// PermissionService is the assignment utility: grant, revoke, and list
// permission names per user. Grants auto-create the named permission;
// both grant and revoke report whether anything actually changed.
type PermissionService struct {
	userRepo repository.UserRepository
	permRepo repository.PermissionRepository
	cache    PermissionCacheStore
	logger   *slog.Logger
}

func NewPermissionService(
	userRepo repository.UserRepository,
	permRepo repository.PermissionRepository,
	cache PermissionCacheStore,
	logger *slog.Logger,
) *PermissionService {
	if cache == nil {
		cache = NewNoopPermissionCacheStore()
	}
	return &PermissionService{userRepo: userRepo, permRepo: permRepo, cache: cache, logger: logger}
}

// Assign grants the named permission to the user, creating the permission
// row if it does not exist yet. Returns false when the user already held it.
func (s *PermissionService) Assign(ctx context.Context, userID, name string) (bool, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return false, fmt.Errorf("assign permission: %w", err)
	}
	perm, err := s.permRepo.FindOrCreateByName(ctx, name)
	if err != nil {
		return false, fmt.Errorf("assign permission: %w", err)
	}
	held, err := s.permRepo.UserHas(ctx, userID, perm.ID)
	if err != nil {
		return false, fmt.Errorf("assign permission: %w", err)
	}
	if held {
		return false, nil
	}
	if err := s.permRepo.Attach(ctx, userID, perm.ID); err != nil {
		return false, fmt.Errorf("assign permission: %w", err)
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("invalidate permission cache", "user_id", userID, "error", err)
	}
	observability.RecordPermissionCacheEvent("invalidate_user")
	s.logger.Info("permission assigned", "user_id", userID, "permission", name)
	return true, nil
}

// Revoke removes the named permission from the user. Returns false when
// the permission does not exist or the user never held it.
func (s *PermissionService) Revoke(ctx context.Context, userID, name string) (bool, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return false, fmt.Errorf("revoke permission: %w", err)
	}
	perm, err := s.permRepo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrPermissionNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("revoke permission: %w", err)
	}
	held, err := s.permRepo.UserHas(ctx, userID, perm.ID)
	if err != nil {
		return false, fmt.Errorf("revoke permission: %w", err)
	}
	if !held {
		return false, nil
	}
	if err := s.permRepo.Detach(ctx, userID, perm.ID); err != nil {
		return false, fmt.Errorf("revoke permission: %w", err)
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("invalidate permission cache", "user_id", userID, "error", err)
	}
	observability.RecordPermissionCacheEvent("invalidate_user")
	s.logger.Info("permission revoked", "user_id", userID, "permission", name)
	return true, nil
}

// List returns the user's permission names sorted alphabetically.
func (s *PermissionService) List(ctx context.Context, userID string) ([]string, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	names, err := s.permRepo.ListNamesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return names, nil
}

// CachedPermissionResolver answers "what permissions does this user hold"
// for the policy middleware, consulting the cache before the database.
type CachedPermissionResolver struct {
	cache    PermissionCacheStore
	permRepo repository.PermissionRepository
	ttl      time.Duration
}

func NewCachedPermissionResolver(cache PermissionCacheStore, permRepo repository.PermissionRepository, ttl time.Duration) *CachedPermissionResolver {
	if cache == nil {
		cache = NewNoopPermissionCacheStore()
	}
	return &CachedPermissionResolver{cache: cache, permRepo: permRepo, ttl: ttl}
}

func (r *CachedPermissionResolver) ResolvePermissions(ctx context.Context, userID string) ([]string, error) {
	if r.ttl > 0 {
		cached, ok, err := r.cache.Get(ctx, userID)
		if err == nil && ok {
			observability.RecordPermissionCacheEvent("hit")
			return cached, nil
		}
		observability.RecordPermissionCacheEvent("miss")
	}

	names, err := r.permRepo.ListNamesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if r.ttl > 0 {
		if err := r.cache.Set(ctx, userID, names, r.ttl); err == nil {
			observability.RecordPermissionCacheEvent("fill")
		}
	}
	return names, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"directory-admin-service/internal/domain"
	"directory-admin-service/internal/repository"
	"directory-admin-service/internal/security"
)

var ErrEmailTaken = errors.New("email already registered")

type UserService struct {
	userRepo repository.UserRepository
	hasher   *security.PasswordHasher
	logger   *slog.Logger
}

func NewUserService(userRepo repository.UserRepository, hasher *security.PasswordHasher, logger *slog.Logger) *UserService {
	return &UserService{userRepo: userRepo, hasher: hasher, logger: logger}
}

// Register creates an active non-privileged user. Email comparison is
// case-insensitive via lowercasing at the edge.
func (s *UserService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("register user: %w", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	user := &domain.User{
		Email:    email,
		Password: hashed,
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// CreateSuperuser provisions an admin-capable account, used by the CLI.
func (s *UserService) CreateSuperuser(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("create superuser: %w", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("create superuser: %w", err)
	}
	user := &domain.User{
		Email:       email,
		Password:    hashed,
		IsActive:    true,
		IsAdmin:     true,
		IsSuperuser: true,
		IsStaffuser: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create superuser: %w", err)
	}
	s.logger.Info("superuser created", "user_id", user.ID)
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, query repository.UserListQuery) (repository.PageResult[domain.User], error) {
	return s.userRepo.ListPaged(ctx, query)
}

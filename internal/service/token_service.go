package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"directory-admin-service/internal/authz"
	"directory-admin-service/internal/domain"
	"directory-admin-service/internal/observability"
	"directory-admin-service/internal/repository"
	"directory-admin-service/internal/security"
)

// TokenPair is what clients receive on issuance: the wire forms of both
// halves plus their expiry instants.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenService owns the lifecycle of opaque bearer token pairs: issue,
// validate, refresh, deactivate, revoke. Validation is side-effecting:
// observing an expired pair flips it inactive and persists that before
// the denial is returned, so expiry observation repairs stale rows.
type TokenService struct {
	tokens         *security.OpaqueTokens
	userRepo       repository.UserRepository
	tokenRepo      repository.TokenRepository
	accessTTL      time.Duration
	refreshTTL     time.Duration
	renewThreshold time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

func NewTokenService(
	tokens *security.OpaqueTokens,
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	accessTTL, refreshTTL, renewThreshold time.Duration,
	logger *slog.Logger,
) *TokenService {
	return &TokenService{
		tokens:         tokens,
		userRepo:       userRepo,
		tokenRepo:      tokenRepo,
		accessTTL:      accessTTL,
		refreshTTL:     refreshTTL,
		renewThreshold: renewThreshold,
		logger:         logger,
		now:            time.Now,
	}
}

// Issue creates and stores a fresh active pair for the user. The user
// must exist; issuance does not require the user to be active, only
// validation does.
func (s *TokenService) Issue(ctx context.Context, userID string) (*domain.Token, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		observability.RecordTokenLifecycle("issue", "error")
		return nil, fmt.Errorf("issue token: %w", err)
	}

	now := s.now()
	token := &domain.Token{
		UserID:           userID,
		AccessToken:      s.tokens.Issue(),
		RefreshToken:     s.tokens.Issue(),
		IsActive:         true,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		observability.RecordTokenLifecycle("issue", "error")
		return nil, fmt.Errorf("issue token: %w", err)
	}

	observability.RecordTokenLifecycle("issue", "success")
	s.logger.Debug("token pair issued", "user_id", userID, "token_id", token.ID)
	return token, nil
}

// ValidateAccess resolves a wire-form access token to its active user.
// Denials come back as *authz.Denial through the error return; anything
// else is an unexpected store failure.
func (s *TokenService) ValidateAccess(ctx context.Context, accessToken string) (*domain.User, *domain.Token, error) {
	token, err := s.tokenRepo.FindByAccess(ctx, accessToken)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			observability.RecordTokenLifecycle("validate", "not_found")
			return nil, nil, authz.Deny(authz.ReasonTokenNotFound)
		}
		observability.RecordTokenLifecycle("validate", "error")
		return nil, nil, fmt.Errorf("validate access token: %w", err)
	}

	if !token.IsActive {
		observability.RecordTokenLifecycle("validate", "inactive")
		return nil, nil, authz.Deny(authz.ReasonTokenInactive)
	}

	if token.Expired(s.now()) {
		if derr := s.deactivate(ctx, token); derr != nil {
			s.logger.Warn("deactivate expired token", "token_id", token.ID, "error", derr)
		}
		observability.RecordTokenLifecycle("validate", "expired")
		return nil, nil, authz.Deny(authz.ReasonTokenExpired)
	}

	user, err := s.userRepo.FindByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordTokenLifecycle("validate", "user_not_found")
			return nil, nil, authz.Deny(authz.ReasonUserNotFound)
		}
		observability.RecordTokenLifecycle("validate", "error")
		return nil, nil, fmt.Errorf("validate access token: %w", err)
	}
	if !user.IsActive {
		observability.RecordTokenLifecycle("validate", "user_inactive")
		return nil, nil, authz.Deny(authz.ReasonUserInactive)
	}

	observability.RecordTokenLifecycle("validate", "success")
	return user, token, nil
}

// Exchange resolves a wire-form refresh token to its stored pair without
// rotating anything. Used by the access-token exchange endpoint.
func (s *TokenService) Exchange(ctx context.Context, refreshToken string) (*domain.Token, error) {
	token, err := s.tokenRepo.FindByRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			observability.RecordTokenLifecycle("exchange", "not_found")
			return nil, authz.Deny(authz.ReasonTokenNotFound)
		}
		observability.RecordTokenLifecycle("exchange", "error")
		return nil, fmt.Errorf("exchange refresh token: %w", err)
	}
	if token.RefreshExpired(s.now()) {
		if derr := s.deactivate(ctx, token); derr != nil {
			s.logger.Warn("deactivate expired token", "token_id", token.ID, "error", derr)
		}
		observability.RecordTokenLifecycle("exchange", "expired")
		return nil, authz.Deny(authz.ReasonRefreshExpired)
	}
	observability.RecordTokenLifecycle("exchange", "success")
	return token, nil
}

// Refresh rotates the access half of the pair named by a refresh token.
// The pair is reactivated (an expired access half may have flipped it
// inactive), the access expiry resets to a full window, and when the
// refresh half is within the renewal threshold of its own expiry the
// refresh window extends too.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*domain.Token, error) {
	token, err := s.tokenRepo.FindByRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			observability.RecordTokenLifecycle("refresh", "not_found")
			return nil, authz.Deny(authz.ReasonTokenNotFound)
		}
		observability.RecordTokenLifecycle("refresh", "error")
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	now := s.now()
	if token.RefreshExpired(now) {
		if derr := s.deactivate(ctx, token); derr != nil {
			s.logger.Warn("deactivate expired token", "token_id", token.ID, "error", derr)
		}
		observability.RecordTokenLifecycle("refresh", "expired")
		return nil, authz.Deny(authz.ReasonRefreshExpired)
	}

	token.AccessToken = s.tokens.Issue()
	token.AccessExpiresAt = now.Add(s.accessTTL)
	token.IsActive = true
	if token.RefreshExpiresAt.Sub(now) < s.renewThreshold {
		token.RefreshExpiresAt = now.Add(s.refreshTTL)
	}
	if err := s.tokenRepo.Save(ctx, token); err != nil {
		observability.RecordTokenLifecycle("refresh", "error")
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	observability.RecordTokenLifecycle("refresh", "success")
	s.logger.Debug("token pair refreshed", "user_id", token.UserID, "token_id", token.ID)
	return token, nil
}

// Deactivate flips the pair named by an access token inactive. Unknown
// tokens are a no-op, so logout is idempotent.
func (s *TokenService) Deactivate(ctx context.Context, accessToken string) error {
	token, err := s.tokenRepo.FindByAccess(ctx, accessToken)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil
		}
		return fmt.Errorf("deactivate token: %w", err)
	}
	if err := s.deactivate(ctx, token); err != nil {
		observability.RecordTokenLifecycle("deactivate", "error")
		return fmt.Errorf("deactivate token: %w", err)
	}
	observability.RecordTokenLifecycle("deactivate", "success")
	return nil
}

// Revoke deactivates the pair and records a blacklist entry so the
// revocation survives even if the row is later resurrected.
func (s *TokenService) Revoke(ctx context.Context, accessToken string) error {
	token, err := s.tokenRepo.FindByAccess(ctx, accessToken)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil
		}
		return fmt.Errorf("revoke token: %w", err)
	}
	if err := s.deactivate(ctx, token); err != nil {
		observability.RecordTokenLifecycle("revoke", "error")
		return fmt.Errorf("revoke token: %w", err)
	}
	entry := &domain.BlacklistToken{UserID: &token.UserID, TokenID: &token.ID}
	if err := s.tokenRepo.Blacklist(ctx, entry); err != nil {
		observability.RecordTokenLifecycle("revoke", "error")
		return fmt.Errorf("revoke token: %w", err)
	}
	observability.RecordTokenLifecycle("revoke", "success")
	s.logger.Info("token revoked", "user_id", token.UserID, "token_id", token.ID)
	return nil
}

func (s *TokenService) deactivate(ctx context.Context, token *domain.Token) error {
	if !token.IsActive {
		return nil
	}
	token.IsActive = false
	return s.tokenRepo.Save(ctx, token)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"directory-admin-service/internal/authz"
	"directory-admin-service/internal/domain"
	"directory-admin-service/internal/repository"
	"directory-admin-service/internal/security"

	"github.com/google/uuid"
)

// ErrInvalidCredentials covers both unknown email and wrong password so
// responses never reveal which half failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

// SessionService handles browser logins: credential verification, the
// session row, and the signed cookie the browser carries afterwards.
type SessionService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	hasher      *security.PasswordHasher
	codec       *security.SessionCodec
	sessionTTL  time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewSessionService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	hasher *security.PasswordHasher,
	codec *security.SessionCodec,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		codec:       codec,
		sessionTTL:  sessionTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// Login verifies credentials and opens a session. Admin logins require an
// active superuser and stamp the admin claims into the cookie; that denial
// comes back as *authz.Denial. Bad credentials of any kind return
// ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, email, password string, admin bool) (*domain.User, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("login: %w", err)
	}
	if !user.IsActive || !s.hasher.Verify(password, user.Password) {
		return nil, "", ErrInvalidCredentials
	}
	if admin && !user.IsSuperuser {
		return nil, "", authz.Deny(authz.ReasonSuperuserRequired)
	}

	session := &domain.Session{
		UserID:    user.ID,
		IsAdmin:   admin,
		IsActive:  true,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, "", fmt.Errorf("login: %w", err)
	}

	claims := security.SessionClaims{SessionID: session.ID}
	if admin {
		claims.AdminUserID = user.ID
		claims.AdminToken = uuid.NewString()
	} else {
		claims.UserID = user.ID
	}
	cookie, err := s.codec.Encode(claims)
	if err != nil {
		return nil, "", fmt.Errorf("login: %w", err)
	}

	s.logger.Info("session opened", "user_id", user.ID, "session_id", session.ID, "admin", admin)
	return user, cookie, nil
}

// Logout deactivates the session behind a cookie. Invalid or expired
// cookies are a no-op; the caller clears the cookie either way.
func (s *SessionService) Logout(ctx context.Context, cookie string) error {
	claims, err := s.codec.Decode(cookie)
	if err != nil || claims.SessionID == "" {
		return nil
	}
	if err := s.sessionRepo.Deactivate(ctx, claims.SessionID); err != nil &&
		!errors.Is(err, repository.ErrSessionNotFound) {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Resolve maps decoded cookie claims back to an active user. The session
// row must exist, be active, and be unexpired; the user must be active.
func (s *SessionService) Resolve(ctx context.Context, claims *security.SessionClaims) (*domain.User, error) {
	if claims.SessionID != "" {
		session, err := s.sessionRepo.FindByID(ctx, claims.SessionID)
		if err != nil {
			return nil, err
		}
		if !session.IsActive || session.Expired(s.now()) {
			return nil, repository.ErrSessionNotFound
		}
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.AdminUserID
	}
	if userID == "" {
		return nil, repository.ErrUserNotFound
	}
	return s.userRepo.FindActiveByID(ctx, userID)
}

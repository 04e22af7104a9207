package repository

import (
	"context"
	"errors"
	"time"

	"directory-admin-service/internal/domain"
	"directory-admin-service/internal/observability"

	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	Deactivate(ctx context.Context, id string) error
	DeactivateByUser(ctx context.Context, userID string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", "find_by_id", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "session", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "find_by_id", "success")
	return &s, nil
}

func (r *GormSessionRepository) Deactivate(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "deactivate", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "deactivate", "success")
	return nil
}

func (r *GormSessionRepository) DeactivateByUser(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "deactivate_by_user", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "deactivate_by_user", "success")
	return nil
}

func (r *GormSessionRepository) CleanupExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "cleanup_expired", "success")
	return res.RowsAffected, nil
}

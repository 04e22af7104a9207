package repository

import (
	"context"
	"errors"

	"directory-admin-service/internal/domain"
	"directory-admin-service/internal/observability"

	"gorm.io/gorm"
)

var ErrTokenNotFound = errors.New("token not found")

type TokenRepository interface {
	Create(ctx context.Context, token *domain.Token) error
	FindByAccess(ctx context.Context, accessToken string) (*domain.Token, error)
	FindByRefresh(ctx context.Context, refreshToken string) (*domain.Token, error)
	Save(ctx context.Context, token *domain.Token) error
	Blacklist(ctx context.Context, entry *domain.BlacklistToken) error
}

type GormTokenRepository struct{ db *gorm.DB }

func NewTokenRepository(db *gorm.DB) TokenRepository { return &GormTokenRepository{db: db} }

func (r *GormTokenRepository) Create(ctx context.Context, token *domain.Token) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "token", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "token", "create", "success")
	return nil
}

func (r *GormTokenRepository) FindByAccess(ctx context.Context, accessToken string) (*domain.Token, error) {
	return r.findByColumn(ctx, "access_token", accessToken, "find_by_access")
}

func (r *GormTokenRepository) FindByRefresh(ctx context.Context, refreshToken string) (*domain.Token, error) {
	return r.findByColumn(ctx, "refresh_token", refreshToken, "find_by_refresh")
}

func (r *GormTokenRepository) findByColumn(ctx context.Context, column, value, op string) (*domain.Token, error) {
	var t domain.Token
	err := r.db.WithContext(ctx).Where(column+" = ?", value).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "token", op, "not_found")
			return nil, ErrTokenNotFound
		}
		observability.RecordRepositoryOperation(ctx, "token", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "token", op, "success")
	return &t, nil
}

func (r *GormTokenRepository) Save(ctx context.Context, token *domain.Token) error {
	if err := r.db.WithContext(ctx).Save(token).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "token", "save", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "token", "save", "success")
	return nil
}

func (r *GormTokenRepository) Blacklist(ctx context.Context, entry *domain.BlacklistToken) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "token", "blacklist", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "token", "blacklist", "success")
	return nil
}

package repository

import (
	"context"
	"errors"

	"directory-admin-service/internal/domain"
	"directory-admin-service/internal/observability"

	"gorm.io/gorm"
)

var ErrPermissionNotFound = errors.New("permission not found")

type PermissionRepository interface {
	FindByName(ctx context.Context, name string) (*domain.Permission, error)
	FindOrCreateByName(ctx context.Context, name string) (*domain.Permission, error)
	ListNamesByUser(ctx context.Context, userID string) ([]string, error)
	UserHas(ctx context.Context, userID, permissionID string) (bool, error)
	Attach(ctx context.Context, userID, permissionID string) error
	Detach(ctx context.Context, userID, permissionID string) error
}

type GormPermissionRepository struct{ db *gorm.DB }

func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &GormPermissionRepository{db: db}
}

func (r *GormPermissionRepository) FindByName(ctx context.Context, name string) (*domain.Permission, error) {
	var p domain.Permission
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "permission", "find_by_name", "not_found")
			return nil, ErrPermissionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "permission", "find_by_name", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "permission", "find_by_name", "success")
	return &p, nil
}

func (r *GormPermissionRepository) FindOrCreateByName(ctx context.Context, name string) (*domain.Permission, error) {
	p, err := r.FindByName(ctx, name)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrPermissionNotFound) {
		return nil, err
	}
	created := &domain.Permission{Name: name}
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "permission", "create", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "permission", "create", "success")
	return created, nil
}

func (r *GormPermissionRepository) ListNamesByUser(ctx context.Context, userID string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&domain.Permission{}).
		Joins("JOIN user_permissions up ON up.permission_id = permissions.id").
		Where("up.user_id = ?", userID).
		Order("permissions.name").
		Pluck("permissions.name", &names).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "permission", "list_names_by_user", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "permission", "list_names_by_user", "success")
	return names, nil
}

func (r *GormPermissionRepository) UserHas(ctx context.Context, userID, permissionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("user_permissions").
		Where("user_id = ? AND permission_id = ?", userID, permissionID).
		Count(&count).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "permission", "user_has", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(ctx, "permission", "user_has", "success")
	return count > 0, nil
}

func (r *GormPermissionRepository) Attach(ctx context.Context, userID, permissionID string) error {
	user := domain.User{ID: userID}
	perm := domain.Permission{ID: permissionID}
	if err := r.db.WithContext(ctx).Model(&user).Association("Permissions").Append(&perm); err != nil {
		observability.RecordRepositoryOperation(ctx, "permission", "attach", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "permission", "attach", "success")
	return nil
}

func (r *GormPermissionRepository) Detach(ctx context.Context, userID, permissionID string) error {
	user := domain.User{ID: userID}
	perm := domain.Permission{ID: permissionID}
	if err := r.db.WithContext(ctx).Model(&user).Association("Permissions").Delete(&perm); err != nil {
		observability.RecordRepositoryOperation(ctx, "permission", "detach", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "permission", "detach", "success")
	return nil
}

package repository

import (
	"context"
	"errors"

	"directory-admin-service/internal/domain"
	"directory-admin-service/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrDepartmentNotFound = errors.New("department not found")
	ErrLocationNotFound   = errors.New("location not found")
)

type DepartmentRepository interface {
	List(ctx context.Context) ([]domain.Department, error)
	FindByID(ctx context.Context, id string) (*domain.Department, error)
	Create(ctx context.Context, d *domain.Department) error
	Update(ctx context.Context, d *domain.Department) error
	DeleteByID(ctx context.Context, id string) error
}

type LocationRepository interface {
	List(ctx context.Context) ([]domain.Location, error)
	FindByID(ctx context.Context, id string) (*domain.Location, error)
	Create(ctx context.Context, l *domain.Location) error
	Update(ctx context.Context, l *domain.Location) error
	DeleteByID(ctx context.Context, id string) error
}

type GormDepartmentRepository struct{ db *gorm.DB }

func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &GormDepartmentRepository{db: db}
}

func (r *GormDepartmentRepository) List(ctx context.Context) ([]domain.Department, error) {
	var items []domain.Department
	if err := r.db.WithContext(ctx).Order("name").Find(&items).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "department", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "department", "list", "success")
	return items, nil
}

func (r *GormDepartmentRepository) FindByID(ctx context.Context, id string) (*domain.Department, error) {
	var d domain.Department
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "department", "find_by_id", "not_found")
			return nil, ErrDepartmentNotFound
		}
		observability.RecordRepositoryOperation(ctx, "department", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "department", "find_by_id", "success")
	return &d, nil
}

func (r *GormDepartmentRepository) Create(ctx context.Context, d *domain.Department) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "department", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "department", "create", "success")
	return nil
}

func (r *GormDepartmentRepository) Update(ctx context.Context, d *domain.Department) error {
	if err := r.db.WithContext(ctx).Save(d).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "department", "update", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "department", "update", "success")
	return nil
}

func (r *GormDepartmentRepository) DeleteByID(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Department{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "department", "delete_by_id", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "department", "delete_by_id", "not_found")
		return ErrDepartmentNotFound
	}
	observability.RecordRepositoryOperation(ctx, "department", "delete_by_id", "success")
	return nil
}

type GormLocationRepository struct{ db *gorm.DB }

func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &GormLocationRepository{db: db}
}

func (r *GormLocationRepository) List(ctx context.Context) ([]domain.Location, error) {
	var items []domain.Location
	if err := r.db.WithContext(ctx).Order("name").Find(&items).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "location", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "location", "list", "success")
	return items, nil
}

func (r *GormLocationRepository) FindByID(ctx context.Context, id string) (*domain.Location, error) {
	var l domain.Location
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "location", "find_by_id", "not_found")
			return nil, ErrLocationNotFound
		}
		observability.RecordRepositoryOperation(ctx, "location", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "location", "find_by_id", "success")
	return &l, nil
}

func (r *GormLocationRepository) Create(ctx context.Context, l *domain.Location) error {
	if err := r.db.WithContext(ctx).Create(l).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "location", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "location", "create", "success")
	return nil
}

func (r *GormLocationRepository) Update(ctx context.Context, l *domain.Location) error {
	if err := r.db.WithContext(ctx).Save(l).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "location", "update", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "location", "update", "success")
	return nil
}

func (r *GormLocationRepository) DeleteByID(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Location{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "location", "delete_by_id", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "location", "delete_by_id", "not_found")
		return ErrLocationNotFound
	}
	observability.RecordRepositoryOperation(ctx, "location", "delete_by_id", "success")
	return nil
}

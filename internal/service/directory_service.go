package service

import (
	"context"
	"fmt"
	"log/slog"

	"directory-admin-service/internal/domain"
	"directory-admin-service/internal/repository"
)

// DirectoryService fronts the department and location records the admin
// panel and API manage. Authorization happens in the HTTP layer; this
// layer owns persistence and ownership stamping.
type DirectoryService struct {
	departments repository.DepartmentRepository
	locations   repository.LocationRepository
	logger      *slog.Logger
}

func NewDirectoryService(
	departments repository.DepartmentRepository,
	locations repository.LocationRepository,
	logger *slog.Logger,
) *DirectoryService {
	return &DirectoryService{departments: departments, locations: locations, logger: logger}
}

func (s *DirectoryService) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	return s.departments.List(ctx)
}

func (s *DirectoryService) GetDepartment(ctx context.Context, id string) (*domain.Department, error) {
	return s.departments.FindByID(ctx, id)
}

func (s *DirectoryService) CreateDepartment(ctx context.Context, name, ownerID string) (*domain.Department, error) {
	d := &domain.Department{Name: name, OwnerID: ownerID}
	if err := s.departments.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create department: %w", err)
	}
	s.logger.Info("department created", "department_id", d.ID, "owner_id", ownerID)
	return d, nil
}

func (s *DirectoryService) UpdateDepartment(ctx context.Context, d *domain.Department) error {
	if err := s.departments.Update(ctx, d); err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}

func (s *DirectoryService) DeleteDepartment(ctx context.Context, id string) error {
	if err := s.departments.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	s.logger.Info("department deleted", "department_id", id)
	return nil
}

func (s *DirectoryService) ListLocations(ctx context.Context) ([]domain.Location, error) {
	return s.locations.List(ctx)
}

func (s *DirectoryService) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	return s.locations.FindByID(ctx, id)
}

func (s *DirectoryService) CreateLocation(ctx context.Context, l *domain.Location) error {
	if err := s.locations.Create(ctx, l); err != nil {
		return fmt.Errorf("create location: %w", err)
	}
	s.logger.Info("location created", "location_id", l.ID, "owner_id", l.OwnerID)
	return nil
}

func (s *DirectoryService) UpdateLocation(ctx context.Context, l *domain.Location) error {
	if err := s.locations.Update(ctx, l); err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	return nil
}

func (s *DirectoryService) DeleteLocation(ctx context.Context, id string) error {
	if err := s.locations.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	s.logger.Info("location deleted", "location_id", id)
	return nil
}

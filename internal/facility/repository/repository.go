package repository

import (
	"context"

	"gym-access-control/backend/internal/facility/domain"
)

// Repository defines persistence for facilities and staff assignments.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Facility, error)
	Create(ctx context.Context, f *domain.Facility) error
	GetStaffByIdentityAndFacility(ctx context.Context, identityID, facilityID string) (*domain.StaffAssignment, error)
	CreateStaff(ctx context.Context, s *domain.StaffAssignment) error
}

package repository

import (
	"context"

	"gym-access-control/backend/internal/membership/domain"
)

// Repository defines persistence for memberships. The gate only reads; writes
// (renewal, suspension) belong to the directory subsystem and exist here for
// cmd/seed and tests.
type Repository interface {
	GetByIdentityAndFacility(ctx context.Context, identityID, facilityID string) (*domain.Membership, error)
	Create(ctx context.Context, m *domain.Membership) error
}

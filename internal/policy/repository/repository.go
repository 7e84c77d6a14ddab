package repository

import (
	"context"

	"gym-access-control/backend/internal/policy/domain"
)

// Repository defines persistence for facility entry policies.
type Repository interface {
	GetByFacility(ctx context.Context, facilityID string) (*domain.FacilityPolicy, error)
	Upsert(ctx context.Context, p *domain.FacilityPolicy) error
}

package repository

import (
	"context"

	"gym-access-control/backend/internal/audit/domain"
)

// Repository defines persistence for access logs. Append-only: there is no
// update or delete. ListByFacility and CountByFacility are the read contract
// the reporting subsystem consumes.
type Repository interface {
	Create(ctx context.Context, a *domain.AccessLog) error
	ListByFacility(ctx context.Context, facilityID string, limit, offset int32) ([]*domain.AccessLog, error)
	CountByFacility(ctx context.Context, facilityID string) (int64, error)
}

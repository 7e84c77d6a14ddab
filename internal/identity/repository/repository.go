package repository

import (
	"context"

	"gym-access-control/backend/internal/identity/domain"
)

// Repository defines persistence for identities. The request path only reads;
// Create exists for cmd/seed and tests.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
}

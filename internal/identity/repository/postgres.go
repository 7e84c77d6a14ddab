package repository

import (
	"context"
	"database/sql"
	"errors"

	"gym-access-control/backend/internal/identity/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an identity repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the identity for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	var i domain.Identity
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, photo_ref, created_at FROM identities WHERE id = $1`, id,
	).Scan(&i.ID, &i.Name, &i.PhotoRef, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

// Create persists the identity. The identity must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (id, name, photo_ref, created_at) VALUES ($1, $2, $3, $4)`,
		i.ID, i.Name, i.PhotoRef, i.CreatedAt,
	)
	return err
}

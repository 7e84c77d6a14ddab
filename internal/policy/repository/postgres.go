package repository

import (
	"context"
	"database/sql"
	"errors"

	"gym-access-control/backend/internal/policy/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByFacility returns the entry policy for the facility, or nil if the
// facility has no override. It returns an error only for database failures.
func (r *PostgresRepository) GetByFacility(ctx context.Context, facilityID string) (*domain.FacilityPolicy, error) {
	var p domain.FacilityPolicy
	err := r.db.QueryRowContext(ctx,
		`SELECT facility_id, rego, updated_at FROM facility_policies WHERE facility_id = $1`,
		facilityID,
	).Scan(&p.FacilityID, &p.Rego, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Upsert inserts or replaces the facility's entry policy.
func (r *PostgresRepository) Upsert(ctx context.Context, p *domain.FacilityPolicy) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO facility_policies (facility_id, rego, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (facility_id) DO UPDATE SET rego = EXCLUDED.rego, updated_at = EXCLUDED.updated_at`,
		p.FacilityID, p.Rego, p.UpdatedAt,
	)
	return err
}

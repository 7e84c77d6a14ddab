package repository

import (
	"context"
	"database/sql"
	"errors"

	"gym-access-control/backend/internal/membership/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a membership repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByIdentityAndFacility returns the membership for the given identity and
// facility, or nil if not found. The read is a single point-in-time snapshot;
// it takes no locks beyond the statement itself, so directory writers are
// never blocked.
func (r *PostgresRepository) GetByIdentityAndFacility(ctx context.Context, identityID, facilityID string) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.QueryRowContext(ctx,
		`SELECT id, identity_id, facility_id, type, status, expires_at, created_at, updated_at
		 FROM memberships WHERE identity_id = $1 AND facility_id = $2`,
		identityID, facilityID,
	).Scan(&m.ID, &m.IdentityID, &m.FacilityID, &m.Type, &m.Status, &m.ExpiresAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// Create persists the membership. The membership must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (id, identity_id, facility_id, type, status, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.IdentityID, m.FacilityID, m.Type, m.Status, m.ExpiresAt, m.CreatedAt, m.UpdatedAt,
	)
	return err
}

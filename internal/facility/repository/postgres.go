package repository

import (
	"context"
	"database/sql"
	"errors"

	"gym-access-control/backend/internal/facility/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a facility repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the facility for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Facility, error) {
	var f domain.Facility
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM facilities WHERE id = $1`, id,
	).Scan(&f.ID, &f.Name, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

// Create persists the facility. The facility must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, f *domain.Facility) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO facilities (id, name, created_at) VALUES ($1, $2, $3)`,
		f.ID, f.Name, f.CreatedAt,
	)
	return err
}

// GetStaffByIdentityAndFacility returns the staff assignment for the given
// identity and facility, or nil if none exists.
func (r *PostgresRepository) GetStaffByIdentityAndFacility(ctx context.Context, identityID, facilityID string) (*domain.StaffAssignment, error) {
	var s domain.StaffAssignment
	err := r.db.QueryRowContext(ctx,
		`SELECT id, identity_id, facility_id, role, created_at
		 FROM facility_staff WHERE identity_id = $1 AND facility_id = $2`,
		identityID, facilityID,
	).Scan(&s.ID, &s.IdentityID, &s.FacilityID, &s.Role, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// CreateStaff persists the staff assignment. The assignment must have ID set.
func (r *PostgresRepository) CreateStaff(ctx context.Context, s *domain.StaffAssignment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO facility_staff (id, identity_id, facility_id, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.IdentityID, s.FacilityID, s.Role, s.CreatedAt,
	)
	return err
}

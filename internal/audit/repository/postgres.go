package repository

import (
	"context"
	"database/sql"

	"gym-access-control/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an access log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create appends one access log row. The log must have ID set. A single
// INSERT commits or fails as a unit; a decision is never half logged.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AccessLog) error {
	identityID := sql.NullString{String: a.IdentityID, Valid: a.IdentityID != ""}
	fingerprint := sql.NullString{String: a.TokenFingerprint, Valid: a.TokenFingerprint != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_logs (id, facility_id, identity_id, validator_identity_id, outcome, reason, token_fingerprint, occurred_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.FacilityID, identityID, a.ValidatorIdentityID, a.Outcome, a.Reason, fingerprint, a.OccurredAt, a.CreatedAt,
	)
	return err
}

// ListByFacility returns access logs for the facility, newest first, paginated
// by limit and offset.
func (r *PostgresRepository) ListByFacility(ctx context.Context, facilityID string, limit, offset int32) ([]*domain.AccessLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, facility_id, identity_id, validator_identity_id, outcome, reason, token_fingerprint, occurred_at, created_at
		 FROM access_logs WHERE facility_id = $1
		 ORDER BY occurred_at DESC LIMIT $2 OFFSET $3`,
		facilityID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AccessLog
	for rows.Next() {
		var a domain.AccessLog
		var identityID, fingerprint sql.NullString
		if err := rows.Scan(&a.ID, &a.FacilityID, &identityID, &a.ValidatorIdentityID, &a.Outcome, &a.Reason, &fingerprint, &a.OccurredAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.IdentityID = identityID.String
		a.TokenFingerprint = fingerprint.String
		out = append(out, &a)
	}
	return out, rows.Err()
}

// CountByFacility returns the number of access logs recorded for the facility.
func (r *PostgresRepository) CountByFacility(ctx context.Context, facilityID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM access_logs WHERE facility_id = $1`, facilityID,
	).Scan(&n)
	return n, err
}

// Package rbac resolves whether an authenticated identity may act as a gate
// validator for a facility. The facility_staff table is the authority; role
// hints carried in JWTs are never trusted.
package rbac

import (
	"context"
	"errors"
	"fmt"

	"gym-access-control/backend/internal/facility/domain"
)

var (
	// ErrNotStaff is returned when the identity holds no staff role at the facility.
	ErrNotStaff = errors.New("identity is not staff at this facility")
)

// StaffGetter is the minimal staff lookup needed by RequireFacilityStaff.
type StaffGetter interface {
	GetStaffByIdentityAndFacility(ctx context.Context, identityID, facilityID string) (*domain.StaffAssignment, error)
}

// RequireFacilityStaff ensures identityID holds a staff role (any level) at
// facilityID. Returns the assignment on success; ErrNotStaff when there is
// none; a wrapped error for storage failures.
func RequireFacilityStaff(ctx context.Context, getter StaffGetter, identityID, facilityID string) (*domain.StaffAssignment, error) {
	if identityID == "" || facilityID == "" {
		return nil, ErrNotStaff
	}
	s, err := getter.GetStaffByIdentityAndFacility(ctx, identityID, facilityID)
	if err != nil {
		return nil, fmt.Errorf("resolve staff assignment: %w", err)
	}
	if s == nil {
		return nil, ErrNotStaff
	}
	return s, nil
}

package domain

import "time"

// Facility is a tenant-scoped physical location (a gym) that owns memberships
// and access logs.
type Facility struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// StaffRole is the role an identity holds at a facility.
type StaffRole string

const (
	RoleStaff   StaffRole = "staff"
	RoleManager StaffRole = "manager"
)

// StaffAssignment grants an identity a staff role at one facility. Only
// identities with an assignment may run gate validations for that facility.
type StaffAssignment struct {
	ID         string
	IdentityID string
	FacilityID string
	Role       StaffRole
	CreatedAt  time.Time
}

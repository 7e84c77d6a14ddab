package domain

import "time"

// Membership authorizes an identity's entry to one facility. Status is a cache
// of the expiry condition and can go stale between directory writes; the gate
// rechecks ExpiresAt independently.
type Membership struct {
	ID         string
	IdentityID string
	FacilityID string
	Type       string
	Status     Status
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusExpired   Status = "EXPIRED"
	StatusSuspended Status = "SUSPENDED"
)

// Snapshot is the subset of membership state the gate returns on a grant, so
// the terminal can render a confirmation without a second read.
type Snapshot struct {
	Type      string
	ExpiresAt time.Time
}

package domain

import "time"

// Identity is a person known to the system, independent of role.
// The ID is opaque and stable; records are immutable once created.
type Identity struct {
	ID        string
	Name      string
	PhotoRef  string
	CreatedAt time.Time
}

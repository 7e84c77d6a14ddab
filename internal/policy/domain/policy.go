package domain

import "time"

// FacilityPolicy is a facility-level entry policy written in Rego. At most one
// per facility; when absent the compiled-in default applies.
type FacilityPolicy struct {
	FacilityID string
	Rego       string
	UpdatedAt  time.Time
}

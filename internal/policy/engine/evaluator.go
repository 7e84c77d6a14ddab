package engine

import (
	"context"
	"time"

	membershipdomain "gym-access-control/backend/internal/membership/domain"
)

// EntryResult holds the result of facility entry policy evaluation.
type EntryResult struct {
	Allow  bool
	Reason string
}

// Evaluator evaluates facility entry policies using OPA or other engines.
// Policies only run for memberships that already passed the gate's status and
// expiry checks; they can further restrict entry (e.g. off-peak membership
// types outside their hours) but never widen it.
type Evaluator interface {
	EvaluateEntry(ctx context.Context, facilityID string, m *membershipdomain.Membership, now time.Time) (EntryResult, error)
}

// Package membership decides whether an identity's membership currently
// authorizes entry to a facility.
package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gym-access-control/backend/internal/membership/domain"
	policyengine "gym-access-control/backend/internal/policy/engine"
)

// Denial reasons. The decision engine logs these verbatim; storage failures
// are ordinary errors and never one of these.
var (
	ErrNoMembership        = errors.New("no membership for this facility")
	ErrMembershipNotActive = errors.New("membership is not active")
	ErrMembershipExpired   = errors.New("membership has expired")
	ErrPolicyDenied        = errors.New("entry denied by facility policy")
)

// DenyByPolicy returns an ErrPolicyDenied carrying the facility policy's
// reason, recoverable with PolicyReason.
func DenyByPolicy(reason string) error {
	return &policyDeniedError{reason: reason}
}

// PolicyReason extracts the facility policy's reason from an ErrPolicyDenied
// returned by Authorize. Empty for other errors.
func PolicyReason(err error) string {
	var pe *policyDeniedError
	if errors.As(err, &pe) {
		return pe.reason
	}
	return ""
}

type policyDeniedError struct {
	reason string
}

func (e *policyDeniedError) Error() string { return "entry denied by facility policy: " + e.reason }
func (e *policyDeniedError) Is(target error) bool { return target == ErrPolicyDenied }

// Repo is the minimal membership lookup needed by the gate.
type Repo interface {
	GetByIdentityAndFacility(ctx context.Context, identityID, facilityID string) (*domain.Membership, error)
}

// Gate authorizes entry against the membership for (identity, facility).
// It trusts ExpiresAt over the stored status: status is a cache written by the
// directory and can be stale.
type Gate struct {
	repo      Repo
	evaluator policyengine.Evaluator
}

// NewGate returns a Gate over repo. evaluator may be nil; then no facility
// policy runs beyond the status and expiry checks.
func NewGate(repo Repo, evaluator policyengine.Evaluator) *Gate {
	return &Gate{repo: repo, evaluator: evaluator}
}

// Authorize returns a membership snapshot when entry is authorized at now.
// Denials are the sentinel errors above; any other error is a storage or
// policy-engine failure and must not be treated as a denial.
func (g *Gate) Authorize(ctx context.Context, identityID, facilityID string, now time.Time) (*domain.Snapshot, error) {
	m, err := g.repo.GetByIdentityAndFacility(ctx, identityID, facilityID)
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	if m == nil {
		return nil, ErrNoMembership
	}
	if m.Status != domain.StatusActive {
		return nil, ErrMembershipNotActive
	}
	if !m.ExpiresAt.After(now) {
		return nil, ErrMembershipExpired
	}

	if g.evaluator != nil {
		res, err := g.evaluator.EvaluateEntry(ctx, facilityID, m, now)
		if err != nil {
			return nil, fmt.Errorf("entry policy: %w", err)
		}
		if !res.Allow {
			return nil, DenyByPolicy(res.Reason)
		}
	}

	return &domain.Snapshot{Type: m.Type, ExpiresAt: m.ExpiresAt}, nil
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	membershipdomain "gym-access-control/backend/internal/membership/domain"
	policydomain "gym-access-control/backend/internal/policy/domain"
)

type memPolicyRepo struct {
	byFacility map[string]*policydomain.FacilityPolicy
	err        error
}

func (r *memPolicyRepo) GetByFacility(ctx context.Context, facilityID string) (*policydomain.FacilityPolicy, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.byFacility[facilityID], nil
}

func (r *memPolicyRepo) Upsert(ctx context.Context, p *policydomain.FacilityPolicy) error {
	if r.byFacility == nil {
		r.byFacility = map[string]*policydomain.FacilityPolicy{}
	}
	r.byFacility[p.FacilityID] = p
	return nil
}

func activeMembership(typ string) *membershipdomain.Membership {
	return &membershipdomain.Membership{
		ID:         "m-1",
		IdentityID: "id-1",
		FacilityID: "fac-1",
		Type:       typ,
		Status:     membershipdomain.StatusActive,
		ExpiresAt:  time.Now().UTC().Add(240 * time.Hour),
	}
}

func TestHealthCheck(t *testing.T) {
	e := NewOPAEvaluator(&memPolicyRepo{})
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestEvaluateEntry_DefaultPolicyAllows(t *testing.T) {
	e := NewOPAEvaluator(&memPolicyRepo{})

	res, err := e.EvaluateEntry(context.Background(), "fac-1", activeMembership("standard"), time.Now().UTC())
	if err != nil {
		t.Fatalf("EvaluateEntry: %v", err)
	}
	if !res.Allow {
		t.Error("default policy should allow an active membership")
	}
}

const offpeakPolicy = `package gym.entry

default allow = false
default reason = "outside_allowed_hours"

allow if {
	input.membership.type != "offpeak"
}

allow if {
	input.membership.type == "offpeak"
	input.time.hour >= 10
	input.time.hour < 16
}
`

func TestEvaluateEntry_FacilityOverride_OffpeakInsideHours(t *testing.T) {
	repo := &memPolicyRepo{byFacility: map[string]*policydomain.FacilityPolicy{
		"fac-1": {FacilityID: "fac-1", Rego: offpeakPolicy},
	}}
	e := NewOPAEvaluator(repo)

	noon := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	res, err := e.EvaluateEntry(context.Background(), "fac-1", activeMembership("offpeak"), noon)
	if err != nil {
		t.Fatalf("EvaluateEntry: %v", err)
	}
	if !res.Allow {
		t.Errorf("offpeak member at noon should be allowed, reason = %q", res.Reason)
	}
}

func TestEvaluateEntry_FacilityOverride_OffpeakOutsideHours(t *testing.T) {
	repo := &memPolicyRepo{byFacility: map[string]*policydomain.FacilityPolicy{
		"fac-1": {FacilityID: "fac-1", Rego: offpeakPolicy},
	}}
	e := NewOPAEvaluator(repo)

	evening := time.Date(2025, 6, 2, 19, 0, 0, 0, time.UTC)
	res, err := e.EvaluateEntry(context.Background(), "fac-1", activeMembership("offpeak"), evening)
	if err != nil {
		t.Fatalf("EvaluateEntry: %v", err)
	}
	if res.Allow {
		t.Error("offpeak member in the evening should be denied")
	}
	if res.Reason != "outside_allowed_hours" {
		t.Errorf("reason = %q, want outside_allowed_hours", res.Reason)
	}
}

func TestEvaluateEntry_FacilityOverride_StandardUnaffected(t *testing.T) {
	repo := &memPolicyRepo{byFacility: map[string]*policydomain.FacilityPolicy{
		"fac-1": {FacilityID: "fac-1", Rego: offpeakPolicy},
	}}
	e := NewOPAEvaluator(repo)

	evening := time.Date(2025, 6, 2, 19, 0, 0, 0, time.UTC)
	res, err := e.EvaluateEntry(context.Background(), "fac-1", activeMembership("standard"), evening)
	if err != nil {
		t.Fatalf("EvaluateEntry: %v", err)
	}
	if !res.Allow {
		t.Errorf("standard member should be unaffected by offpeak hours, reason = %q", res.Reason)
	}
}

func TestEvaluateEntry_BrokenPolicyAllows(t *testing.T) {
	repo := &memPolicyRepo{byFacility: map[string]*policydomain.FacilityPolicy{
		"fac-1": {FacilityID: "fac-1", Rego: "package gym.entry\n\nthis is not rego"},
	}}
	e := NewOPAEvaluator(repo)

	res, err := e.EvaluateEntry(context.Background(), "fac-1", activeMembership("standard"), time.Now().UTC())
	if err != nil {
		t.Fatalf("EvaluateEntry: %v", err)
	}
	if !res.Allow {
		t.Error("a policy that fails to compile must not deny entry")
	}
}

func TestEvaluateEntry_RepoErrorSurfaces(t *testing.T) {
	e := NewOPAEvaluator(&memPolicyRepo{err: errors.New("connection refused")})

	_, err := e.EvaluateEntry(context.Background(), "fac-1", activeMembership("standard"), time.Now().UTC())
	if err == nil {
		t.Fatal("repository failure should surface as an error, not a decision")
	}
}

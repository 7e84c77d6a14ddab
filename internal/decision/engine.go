// Package decision orchestrates one gate scan: token validation, membership
// gating, audit recording, response. The engine is stateless per request and
// safe for concurrent use by many terminals.
package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	auditdomain "gym-access-control/backend/internal/audit/domain"
	"gym-access-control/backend/internal/clock"
	identitydomain "gym-access-control/backend/internal/identity/domain"
	"gym-access-control/backend/internal/membership"
	membershipdomain "gym-access-control/backend/internal/membership/domain"
	"gym-access-control/backend/internal/telemetry"
	"gym-access-control/backend/internal/token"
)

// ErrUnavailable is returned when storage or the policy engine fails or times
// out. It is a system error, never a DENIED decision: reporting it as a
// denial would misrepresent membership status, and granting on it would let
// an outage open the door.
var ErrUnavailable = errors.New("system unavailable")

// Denial reasons as they appear on the wire and in access logs.
const (
	ReasonMalformedToken      = "malformed_token"
	ReasonIntegrityMismatch   = "integrity_mismatch"
	ReasonTokenExpired        = "token_expired"
	ReasonNoMembership        = "no_membership"
	ReasonMembershipNotActive = "membership_not_active"
	ReasonMembershipExpired   = "membership_expired"
	ReasonPolicyDenied        = "policy_denied"
)

// Request is one scan from a gate terminal. FacilityID is the terminal's own
// facility and ValidatorIdentityID the authenticated staff member; neither is
// ever taken from the token.
type Request struct {
	RawToken            string
	FacilityID          string
	ValidatorIdentityID string
}

// IdentityDisplay is the minimal identity surface shown to the operator for
// visual confirmation. Never the full identity record.
type IdentityDisplay struct {
	Name     string `json:"name"`
	PhotoRef string `json:"photo_ref,omitempty"`
}

// MembershipInfo is the membership snapshot returned on a grant.
type MembershipInfo struct {
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Response is the decision returned to the terminal.
type Response struct {
	Outcome auditdomain.Outcome `json:"outcome"`
	Reason  string              `json:"reason,omitempty"`
	// Detail carries the facility policy's own reason on policy_denied.
	Detail     string           `json:"detail,omitempty"`
	Identity   *IdentityDisplay `json:"identity,omitempty"`
	Membership *MembershipInfo  `json:"membership,omitempty"`
	// Replayed marks a repeat presentation of the same token; the original
	// decision is returned and no second entry is represented.
	Replayed bool `json:"replayed"`
}

// Authorizer is the membership gate as the engine consumes it.
type Authorizer interface {
	Authorize(ctx context.Context, identityID, facilityID string, now time.Time) (*membershipdomain.Snapshot, error)
}

// IdentityGetter is the minimal identity lookup needed for display fields.
type IdentityGetter interface {
	GetByID(ctx context.Context, id string) (*identitydomain.Identity, error)
}

// Recorder appends one access log per decision.
type Recorder interface {
	Record(ctx context.Context, entry *auditdomain.AccessLog) error
}

// Engine runs the per-scan pass: RECEIVED, token validated, membership
// checked, logged, responded, with early exits to a logged DENIED.
type Engine struct {
	validator    *token.Validator
	replays      token.ReplayStore
	gate         Authorizer
	identities   IdentityGetter
	recorder     Recorder
	metrics      *telemetry.Metrics
	clk          clock.Clock
	storeTimeout time.Duration
	// flight collapses concurrent presentations of the same proof into one
	// resolution, so a terminal retry racing the original request cannot
	// produce two independent grants or two access logs.
	flight singleflight.Group
}

// NewEngine returns an Engine. replays and metrics may be nil (replay
// idempotency and counters disabled); the rest are required.
func NewEngine(
	validator *token.Validator,
	replays token.ReplayStore,
	gate Authorizer,
	identities IdentityGetter,
	recorder Recorder,
	metrics *telemetry.Metrics,
	clk clock.Clock,
	storeTimeout time.Duration,
) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	if storeTimeout <= 0 {
		storeTimeout = 3 * time.Second
	}
	return &Engine{
		validator:    validator,
		replays:      replays,
		gate:         gate,
		identities:   identities,
		recorder:     recorder,
		metrics:      metrics,
		clk:          clk,
		storeTimeout: storeTimeout,
	}
}

// Decide runs one scan. Every completed call produces exactly one access log
// write (replays of a cached decision produce none and are marked Replayed).
// Returns ErrUnavailable when storage fails; no decision is fabricated then.
func (e *Engine) Decide(ctx context.Context, req Request) (*Response, error) {
	now := e.clk.Now()

	claims, err := e.validator.Validate(req.RawToken, now)
	if err != nil {
		// Invalid tokens never trigger a membership lookup, so a forged or
		// stale token reveals nothing about membership state.
		resp := &Response{Outcome: auditdomain.OutcomeDenied, Reason: validationReason(err)}
		e.record(ctx, req, "", "", resp, now)
		return resp, nil
	}

	if e.replays != nil {
		if v, ok := e.replays.Get(ctx, claims.Proof); ok {
			return e.replayOf(ctx, v.(*Response)), nil
		}
	}

	// The cache is rechecked inside the flight: a caller that missed the
	// cache but lost the race for the flight slot must not resolve again.
	var resolved bool
	v, err, _ := e.flight.Do(claims.Proof, func() (any, error) {
		if e.replays != nil {
			if v, ok := e.replays.Get(ctx, claims.Proof); ok {
				return v, nil
			}
		}
		resolved = true
		return e.resolve(ctx, req, claims, now)
	})
	if err != nil {
		return nil, err
	}
	resp := v.(*Response)
	if !resolved {
		return e.replayOf(ctx, resp), nil
	}
	return resp, nil
}

// replayOf returns a copy of the original decision marked as a replay.
func (e *Engine) replayOf(ctx context.Context, original *Response) *Response {
	e.metrics.RecordReplay(ctx)
	dup := *original
	dup.Replayed = true
	return &dup
}

// resolve runs the gate pass for a validated token. Called at most once per
// proof per window; the decision it returns is cached and recorded exactly
// once.
func (e *Engine) resolve(ctx context.Context, req Request, claims *token.Claims, now time.Time) (*Response, error) {
	snap, err := e.authorize(ctx, claims.IdentityID, req.FacilityID, now)
	if err != nil {
		reason, ok := denialReason(err)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		resp := &Response{
			Outcome: auditdomain.OutcomeDenied,
			Reason:  reason,
			Detail:  membership.PolicyReason(err),
		}
		e.record(ctx, req, claims.IdentityID, claims.Proof, resp, now)
		e.cache(ctx, claims, resp)
		return resp, nil
	}

	display, err := e.displayFields(ctx, claims.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp := &Response{
		Outcome:    auditdomain.OutcomeGranted,
		Identity:   display,
		Membership: &MembershipInfo{Type: snap.Type, ExpiresAt: snap.ExpiresAt},
	}
	e.record(ctx, req, claims.IdentityID, claims.Proof, resp, now)
	e.cache(ctx, claims, resp)
	return resp, nil
}

func (e *Engine) authorize(ctx context.Context, identityID, facilityID string, now time.Time) (*membershipdomain.Snapshot, error) {
	tctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	return e.gate.Authorize(tctx, identityID, facilityID, now)
}

func (e *Engine) displayFields(ctx context.Context, identityID string) (*IdentityDisplay, error) {
	tctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	ident, err := e.identities.GetByID(tctx, identityID)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return &IdentityDisplay{}, nil
	}
	return &IdentityDisplay{Name: ident.Name, PhotoRef: ident.PhotoRef}, nil
}

// record appends the access log for resp. Fail-open: a write failure is
// counted (the recorder alerts and retries) and the decision stands.
func (e *Engine) record(ctx context.Context, req Request, identityID, fingerprint string, resp *Response, now time.Time) {
	reason := resp.Reason
	if resp.Detail != "" {
		reason = resp.Reason + ": " + resp.Detail
	}
	entry := &auditdomain.AccessLog{
		ID:                  uuid.New().String(),
		FacilityID:          req.FacilityID,
		IdentityID:          identityID,
		ValidatorIdentityID: req.ValidatorIdentityID,
		Outcome:             resp.Outcome,
		Reason:              reason,
		TokenFingerprint:    fingerprint,
		OccurredAt:          now,
		CreatedAt:           now,
	}
	tctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := e.recorder.Record(tctx, entry); err != nil {
		e.metrics.RecordAuditWriteFailure(ctx)
	}
	e.metrics.RecordDecision(ctx, string(resp.Outcome), resp.Reason)
}

// cache stores the decision for the remainder of the token's window so a
// repeat presentation resolves idempotently.
func (e *Engine) cache(ctx context.Context, claims *token.Claims, resp *Response) {
	if e.replays == nil {
		return
	}
	e.replays.Put(ctx, claims.Proof, resp, claims.IssuedAt.Add(e.validator.Window()))
}

func validationReason(err error) string {
	switch {
	case errors.Is(err, token.ErrIntegrityMismatch):
		return ReasonIntegrityMismatch
	case errors.Is(err, token.ErrTokenExpired):
		return ReasonTokenExpired
	default:
		return ReasonMalformedToken
	}
}

func denialReason(err error) (string, bool) {
	switch {
	case errors.Is(err, membership.ErrNoMembership):
		return ReasonNoMembership, true
	case errors.Is(err, membership.ErrMembershipNotActive):
		return ReasonMembershipNotActive, true
	case errors.Is(err, membership.ErrMembershipExpired):
		return ReasonMembershipExpired, true
	case errors.Is(err, membership.ErrPolicyDenied):
		return ReasonPolicyDenied, true
	default:
		return "", false
	}
}

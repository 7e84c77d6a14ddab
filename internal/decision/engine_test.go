package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	auditdomain "gym-access-control/backend/internal/audit/domain"
	"gym-access-control/backend/internal/clock"
	identitydomain "gym-access-control/backend/internal/identity/domain"
	"gym-access-control/backend/internal/membership"
	membershipdomain "gym-access-control/backend/internal/membership/domain"
	"gym-access-control/backend/internal/token"
)

var (
	engineKey = []byte("0123456789abcdef0123456789abcdef")
	engineT0  = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
)

type fakeGate struct {
	snap  *membershipdomain.Snapshot
	err   error
	calls int
}

func (f *fakeGate) Authorize(ctx context.Context, identityID, facilityID string, now time.Time) (*membershipdomain.Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

type fakeIdentities struct {
	ident *identitydomain.Identity
	err   error
}

func (f *fakeIdentities) GetByID(ctx context.Context, id string) (*identitydomain.Identity, error) {
	return f.ident, f.err
}

type captureRecorder struct {
	mu      sync.Mutex
	entries []*auditdomain.AccessLog
	err     error
}

func (c *captureRecorder) Record(ctx context.Context, entry *auditdomain.AccessLog) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	return c.err
}

func (c *captureRecorder) all() []*auditdomain.AccessLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*auditdomain.AccessLog(nil), c.entries...)
}

// slowGate grants after a fixed delay, counting invocations.
type slowGate struct {
	snap  *membershipdomain.Snapshot
	delay time.Duration
	calls atomic.Int32
}

func (g *slowGate) Authorize(ctx context.Context, identityID, facilityID string, now time.Time) (*membershipdomain.Snapshot, error) {
	g.calls.Add(1)
	time.Sleep(g.delay)
	return g.snap, nil
}

func activeSnap() *membershipdomain.Snapshot {
	return &membershipdomain.Snapshot{Type: "standard", ExpiresAt: engineT0.AddDate(0, 6, 0)}
}

func newTestEngine(gate Authorizer, ids *fakeIdentities, rec *captureRecorder) *Engine {
	validator := token.NewValidator(engineKey, token.DefaultWindow)
	replays := token.NewMemoryReplayStore(clock.Fixed{T: engineT0})
	return NewEngine(validator, replays, gate, ids, rec, nil, clock.Fixed{T: engineT0}, time.Second)
}

func issue(t *testing.T, identityID string, at time.Time) string {
	t.Helper()
	return token.Encode(engineKey, identityID, at)
}

func TestDecideGrant(t *testing.T) {
	gate := &fakeGate{snap: activeSnap()}
	ids := &fakeIdentities{ident: &identitydomain.Identity{ID: "mem-1", Name: "Ada Lovelace", PhotoRef: "photos/mem-1"}}
	rec := &captureRecorder{}
	eng := newTestEngine(gate, ids, rec)

	resp, err := eng.Decide(context.Background(), Request{
		RawToken:            issue(t, "mem-1", engineT0.Add(-5*time.Second)),
		FacilityID:          "fac-1",
		ValidatorIdentityID: "staff-1",
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if resp.Outcome != auditdomain.OutcomeGranted {
		t.Fatalf("outcome = %s, want GRANTED", resp.Outcome)
	}
	if resp.Reason != "" {
		t.Errorf("reason = %q, want empty", resp.Reason)
	}
	if resp.Identity == nil || resp.Identity.Name != "Ada Lovelace" {
		t.Errorf("identity = %+v, want name Ada Lovelace", resp.Identity)
	}
	if resp.Membership == nil || resp.Membership.Type != "standard" {
		t.Errorf("membership = %+v, want type standard", resp.Membership)
	}
	if resp.Replayed {
		t.Error("first presentation marked replayed")
	}

	if len(rec.entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(rec.entries))
	}
	entry := rec.entries[0]
	if entry.Outcome != auditdomain.OutcomeGranted || entry.IdentityID != "mem-1" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.ValidatorIdentityID != "staff-1" || entry.FacilityID != "fac-1" {
		t.Errorf("entry attribution = %+v", entry)
	}
	if len(entry.TokenFingerprint) != 64 {
		t.Errorf("fingerprint = %q, want proof hex", entry.TokenFingerprint)
	}
}

func TestDecideInvalidTokenSkipsMembership(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		reason string
	}{
		{"malformed", "not-a-token", ReasonMalformedToken},
		{"tampered", tamper(token.Encode(engineKey, "mem-1", engineT0)), ReasonIntegrityMismatch},
		{"expired", token.Encode(engineKey, "mem-1", engineT0.Add(-time.Minute)), ReasonTokenExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := &fakeGate{snap: activeSnap()}
			rec := &captureRecorder{}
			eng := newTestEngine(gate, &fakeIdentities{}, rec)

			resp, err := eng.Decide(context.Background(), Request{RawToken: tc.raw, FacilityID: "fac-1", ValidatorIdentityID: "staff-1"})
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if resp.Outcome != auditdomain.OutcomeDenied || resp.Reason != tc.reason {
				t.Errorf("got %s/%s, want DENIED/%s", resp.Outcome, resp.Reason, tc.reason)
			}
			if gate.calls != 0 {
				t.Error("membership consulted for an invalid token")
			}
			if len(rec.entries) != 1 || rec.entries[0].Reason != tc.reason {
				t.Errorf("entries = %+v, want one with reason %s", rec.entries, tc.reason)
			}
			if rec.entries[0].IdentityID != "" {
				t.Errorf("identity %q attributed from an unverified token", rec.entries[0].IdentityID)
			}
		})
	}
}

// tamper flips one character of the proof segment.
func tamper(raw string) string {
	parts := strings.Split(raw, token.Delimiter)
	proof := []byte(parts[2])
	if proof[0] == 'a' {
		proof[0] = 'b'
	} else {
		proof[0] = 'a'
	}
	parts[2] = string(proof)
	return strings.Join(parts, token.Delimiter)
}

func TestDecideMembershipDenials(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		reason string
	}{
		{"none", membership.ErrNoMembership, ReasonNoMembership},
		{"not active", membership.ErrMembershipNotActive, ReasonMembershipNotActive},
		{"expired", membership.ErrMembershipExpired, ReasonMembershipExpired},
		{"policy", membership.ErrPolicyDenied, ReasonPolicyDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &captureRecorder{}
			eng := newTestEngine(&fakeGate{err: tc.err}, &fakeIdentities{}, rec)

			resp, err := eng.Decide(context.Background(), Request{
				RawToken:            issue(t, "mem-1", engineT0),
				FacilityID:          "fac-1",
				ValidatorIdentityID: "staff-1",
			})
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if resp.Outcome != auditdomain.OutcomeDenied || resp.Reason != tc.reason {
				t.Errorf("got %s/%s, want DENIED/%s", resp.Outcome, resp.Reason, tc.reason)
			}
			if len(rec.entries) != 1 || rec.entries[0].IdentityID != "mem-1" {
				t.Errorf("entries = %+v, want one attributed to mem-1", rec.entries)
			}
		})
	}
}

func TestDecideReplayReturnsCachedDecision(t *testing.T) {
	gate := &fakeGate{snap: activeSnap()}
	ids := &fakeIdentities{ident: &identitydomain.Identity{ID: "mem-1", Name: "Ada Lovelace"}}
	rec := &captureRecorder{}
	eng := newTestEngine(gate, ids, rec)

	req := Request{RawToken: issue(t, "mem-1", engineT0), FacilityID: "fac-1", ValidatorIdentityID: "staff-1"}

	first, err := eng.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	second, err := eng.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("second Decide: %v", err)
	}

	if first.Replayed {
		t.Error("first presentation marked replayed")
	}
	if !second.Replayed {
		t.Error("second presentation not marked replayed")
	}
	if second.Outcome != first.Outcome {
		t.Errorf("replayed outcome %s differs from original %s", second.Outcome, first.Outcome)
	}
	if gate.calls != 1 {
		t.Errorf("gate consulted %d times, want 1", gate.calls)
	}
	if len(rec.entries) != 1 {
		t.Errorf("recorded %d entries, want 1; a replay is not a second entry", len(rec.entries))
	}
}

func TestDecideReplayedDenialStaysDenied(t *testing.T) {
	rec := &captureRecorder{}
	eng := newTestEngine(&fakeGate{err: membership.ErrNoMembership}, &fakeIdentities{}, rec)

	req := Request{RawToken: issue(t, "mem-1", engineT0), FacilityID: "fac-1", ValidatorIdentityID: "staff-1"}
	if _, err := eng.Decide(context.Background(), req); err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	resp, err := eng.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("second Decide: %v", err)
	}
	if resp.Outcome != auditdomain.OutcomeDenied || !resp.Replayed {
		t.Errorf("got %s replayed=%v, want cached DENIED", resp.Outcome, resp.Replayed)
	}
	if len(rec.entries) != 1 {
		t.Errorf("recorded %d entries, want 1", len(rec.entries))
	}
}

func TestDecideConcurrentSameTokenLogsOnce(t *testing.T) {
	// A terminal network retry re-posts the same token while the original
	// request is still in flight. However the scans interleave, only one may
	// resolve: one access log, one unreplayed response.
	const scans = 8

	gate := &slowGate{snap: activeSnap(), delay: 100 * time.Millisecond}
	ids := &fakeIdentities{ident: &identitydomain.Identity{ID: "mem-1", Name: "Ada Lovelace"}}
	rec := &captureRecorder{}
	eng := newTestEngine(gate, ids, rec)

	req := Request{RawToken: issue(t, "mem-1", engineT0), FacilityID: "fac-1", ValidatorIdentityID: "staff-1"}

	start := make(chan struct{})
	responses := make([]*Response, scans)
	errs := make([]error, scans)
	var wg sync.WaitGroup
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			responses[i], errs[i] = eng.Decide(context.Background(), req)
		}(i)
	}
	close(start)
	wg.Wait()

	replayed := 0
	for i := 0; i < scans; i++ {
		if errs[i] != nil {
			t.Fatalf("Decide %d: %v", i, errs[i])
		}
		if responses[i].Outcome != auditdomain.OutcomeGranted {
			t.Errorf("response %d outcome = %s, want GRANTED", i, responses[i].Outcome)
		}
		if responses[i].Replayed {
			replayed++
		}
	}
	if replayed != scans-1 {
		t.Errorf("replayed responses = %d, want %d", replayed, scans-1)
	}
	if got := len(rec.all()); got != 1 {
		t.Errorf("access logs written = %d, want 1", got)
	}
	if got := gate.calls.Load(); got != 1 {
		t.Errorf("gate consulted %d times, want 1", got)
	}
}

func TestDecideConcurrentDistinctTokensLogEach(t *testing.T) {
	const scans = 8

	gate := &slowGate{snap: activeSnap(), delay: 20 * time.Millisecond}
	ids := &fakeIdentities{ident: &identitydomain.Identity{ID: "mem-1", Name: "Ada Lovelace"}}
	rec := &captureRecorder{}
	eng := newTestEngine(gate, ids, rec)

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			req := Request{
				RawToken:            issue(t, fmt.Sprintf("mem-%d", i), engineT0),
				FacilityID:          "fac-1",
				ValidatorIdentityID: "staff-1",
			}
			if _, err := eng.Decide(context.Background(), req); err != nil {
				t.Errorf("Decide %d: %v", i, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if got := len(rec.all()); got != scans {
		t.Errorf("access logs written = %d, want one per scan (%d)", got, scans)
	}
}

func TestDecidePolicyDenialCarriesPolicyReason(t *testing.T) {
	rec := &captureRecorder{}
	eng := newTestEngine(&fakeGate{err: membership.DenyByPolicy("outside_allowed_hours")}, &fakeIdentities{}, rec)

	resp, err := eng.Decide(context.Background(), Request{
		RawToken:            issue(t, "mem-1", engineT0),
		FacilityID:          "fac-1",
		ValidatorIdentityID: "staff-1",
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if resp.Reason != ReasonPolicyDenied || resp.Detail != "outside_allowed_hours" {
		t.Errorf("got reason %q detail %q, want policy_denied/outside_allowed_hours", resp.Reason, resp.Detail)
	}
	entries := rec.all()
	if len(entries) != 1 || entries[0].Reason != "policy_denied: outside_allowed_hours" {
		t.Errorf("entries = %+v, want one with the policy's reason", entries)
	}
}

func TestDecideStorageFailureIsNotADenial(t *testing.T) {
	rec := &captureRecorder{}
	eng := newTestEngine(&fakeGate{err: errors.New("connection refused")}, &fakeIdentities{}, rec)

	resp, err := eng.Decide(context.Background(), Request{
		RawToken:            issue(t, "mem-1", engineT0),
		FacilityID:          "fac-1",
		ValidatorIdentityID: "staff-1",
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if resp != nil {
		t.Errorf("resp = %+v, want nil; no decision is fabricated on outage", resp)
	}
	if len(rec.entries) != 0 {
		t.Errorf("recorded %d entries for an aborted scan, want 0", len(rec.entries))
	}
}

func TestDecideAuditFailureDoesNotChangeOutcome(t *testing.T) {
	ids := &fakeIdentities{ident: &identitydomain.Identity{ID: "mem-1", Name: "Ada Lovelace"}}
	rec := &captureRecorder{err: errors.New("insert failed")}
	eng := newTestEngine(&fakeGate{snap: activeSnap()}, ids, rec)

	resp, err := eng.Decide(context.Background(), Request{
		RawToken:            issue(t, "mem-1", engineT0),
		FacilityID:          "fac-1",
		ValidatorIdentityID: "staff-1",
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if resp.Outcome != auditdomain.OutcomeGranted {
		t.Errorf("outcome = %s, want GRANTED despite audit failure", resp.Outcome)
	}
}

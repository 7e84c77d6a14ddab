package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	membershipdomain "gym-access-control/backend/internal/membership/domain"
	"gym-access-control/backend/internal/policy/repository"
)

// Default Rego policy: any membership that passed the gate's status and expiry
// checks may enter at any hour. Facilities override this via facility_policies.
const defaultRegoPolicy = `package gym.entry

default allow = true
default reason = ""
`

// OPAEvaluator evaluates facility entry policies using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
}

// NewOPAEvaluator returns an OPA-based entry policy evaluator.
func NewOPAEvaluator(policyRepo repository.Repository) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and
// evaluate the default policy. Does not touch the policy repo or database.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := ast.CompileModules(map[string]string{"policy_0.rego": defaultRegoPolicy})
	if err != nil {
		return fmt.Errorf("compile default policy: %w", err)
	}
	q := rego.New(
		rego.Query("data.gym.entry.allow"),
		rego.Compiler(compiler),
		rego.Input(minimalInput()),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateEntry evaluates the facility's entry policy for the membership.
// Falls back to the default policy when the facility has no override, and to
// an allow result when evaluation itself fails (the gate's hard checks have
// already run; a broken policy must not lock members out).
func (e *OPAEvaluator) EvaluateEntry(ctx context.Context, facilityID string, m *membershipdomain.Membership, now time.Time) (EntryResult, error) {
	policySrc := defaultRegoPolicy
	if e.policyRepo != nil {
		p, err := e.policyRepo.GetByFacility(ctx, facilityID)
		if err != nil {
			return EntryResult{}, fmt.Errorf("load entry policy: %w", err)
		}
		if p != nil && p.Rego != "" {
			policySrc = p.Rego
		}
	}

	result, err := e.evaluate(ctx, policySrc, buildInput(facilityID, m, now))
	if err != nil {
		log.Printf("policy: evaluation failed for facility %s: %v, allowing", facilityID, err)
		return EntryResult{Allow: true}, nil
	}
	return result, nil
}

func buildInput(facilityID string, m *membershipdomain.Membership, now time.Time) map[string]interface{} {
	membership := map[string]interface{}{
		"type":   "",
		"status": "",
	}
	if m != nil {
		membership["type"] = m.Type
		membership["status"] = string(m.Status)
		membership["expires_at"] = m.ExpiresAt.Format(time.RFC3339)
	}
	return map[string]interface{}{
		"facility":   map[string]interface{}{"id": facilityID},
		"membership": membership,
		"time": map[string]interface{}{
			"hour":    now.UTC().Hour(),
			"weekday": int(now.UTC().Weekday()),
		},
	}
}

func minimalInput() map[string]interface{} {
	return buildInput("", &membershipdomain.Membership{
		Type:      "standard",
		Status:    membershipdomain.StatusActive,
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}, time.Now().UTC())
}

func (e *OPAEvaluator) evaluate(ctx context.Context, policySrc string, input map[string]interface{}) (EntryResult, error) {
	compiler, err := ast.CompileModules(map[string]string{"policy_0.rego": policySrc})
	if err != nil {
		return EntryResult{}, fmt.Errorf("compile policy: %w", err)
	}

	out := EntryResult{Allow: true}

	allowQuery := rego.New(
		rego.Query("data.gym.entry.allow"),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	allowRS, err := allowQuery.Eval(ctx)
	if err != nil {
		return EntryResult{}, fmt.Errorf("eval allow: %w", err)
	}
	if len(allowRS) > 0 && len(allowRS[0].Expressions) > 0 {
		if v, ok := allowRS[0].Expressions[0].Value.(bool); ok {
			out.Allow = v
		}
	}

	if !out.Allow {
		reasonQuery := rego.New(
			rego.Query("data.gym.entry.reason"),
			rego.Compiler(compiler),
			rego.Input(input),
		)
		reasonRS, err := reasonQuery.Eval(ctx)
		if err == nil && len(reasonRS) > 0 && len(reasonRS[0].Expressions) > 0 {
			if v, ok := reasonRS[0].Expressions[0].Value.(string); ok {
				out.Reason = v
			}
		}
	}

	return out, nil
}

package domain

import "time"

// Outcome is the result of one access decision.
type Outcome string

const (
	OutcomeGranted Outcome = "GRANTED"
	OutcomeDenied  Outcome = "DENIED"
)

// AccessLog is the immutable record of one gate decision. Created exactly once
// per decision, never mutated or deleted; owned by the facility for retention
// and export.
type AccessLog struct {
	ID         string
	FacilityID string
	// IdentityID is empty when the token never resolved to an identity
	// (malformed or forged tokens).
	IdentityID          string
	ValidatorIdentityID string
	Outcome             Outcome
	Reason              string
	// TokenFingerprint is the token's hex HMAC proof, never the raw token.
	TokenFingerprint string
	OccurredAt       time.Time
	CreatedAt        time.Time
}

package token

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Validation errors. Each maps to a logged DENIED decision; none is ever an
// infrastructure failure.
var (
	ErrMalformedToken    = errors.New("malformed token")
	ErrIntegrityMismatch = errors.New("token integrity proof mismatch")
	ErrTokenExpired      = errors.New("token expired")
)

// skewAllowance tolerates small clock drift between the issuing device and
// the validator before a future-dated token is rejected.
const skewAllowance = 2 * time.Second

// Validator parses and validates presented tokens. It does not consult
// membership state; authorization is the gate's concern.
type Validator struct {
	key    []byte
	window time.Duration
}

// NewValidator returns a Validator checking proofs against key within window.
// A non-positive window falls back to DefaultWindow.
func NewValidator(key []byte, window time.Duration) *Validator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Validator{key: key, window: window}
}

// Window returns the validity window, which is also how long replay-cache
// entries for validated tokens stay live.
func (v *Validator) Window() time.Duration { return v.window }

// Validate checks raw's shape, integrity proof, and age against now.
// Integrity is verified before expiry so a tampered timestamp reports as
// forgery rather than as a merely stale token.
func (v *Validator) Validate(raw string, now time.Time) (*Claims, error) {
	parts := strings.Split(raw, Delimiter)
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}
	identityID, millisStr, proof := parts[0], parts[1], parts[2]
	if identityID == "" {
		return nil, ErrMalformedToken
	}
	millis, err := strconv.ParseInt(millisStr, 10, 64)
	if err != nil {
		return nil, ErrMalformedToken
	}
	if _, err := hex.DecodeString(proof); err != nil || len(proof) != 64 {
		return nil, ErrMalformedToken
	}

	want := computeProof(v.key, identityID, millisStr)
	if subtle.ConstantTimeCompare([]byte(want), []byte(proof)) != 1 {
		return nil, ErrIntegrityMismatch
	}

	issuedAt := time.UnixMilli(millis).UTC()
	age := now.Sub(issuedAt)
	if age < -skewAllowance || age > v.window {
		return nil, ErrTokenExpired
	}

	return &Claims{IdentityID: identityID, IssuedAt: issuedAt, Proof: proof}, nil
}

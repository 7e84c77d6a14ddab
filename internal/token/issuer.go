package token

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gym-access-control/backend/internal/clock"
	identitydomain "gym-access-control/backend/internal/identity/domain"
)

// ErrUnknownIdentity is returned when issuance is requested for an identity
// the directory does not know.
var ErrUnknownIdentity = errors.New("unknown identity")

// ErrBadIdentityID is returned when the identity ID cannot be carried in the
// token's wire format.
var ErrBadIdentityID = errors.New("identity id contains the token delimiter")

// IdentityGetter is the minimal identity lookup needed by the issuer.
type IdentityGetter interface {
	GetByID(ctx context.Context, id string) (*identitydomain.Identity, error)
}

// Issuer produces signed, time-scoped access tokens. Issuance is pure apart
// from the existence check: nothing is written to storage.
type Issuer struct {
	key        []byte
	identities IdentityGetter
	clk        clock.Clock
}

// NewIssuer returns an Issuer signing with key. identities may be nil; then
// the existence check is skipped (the issuer normally runs inside the
// member's authenticated context where the identity is already proven).
func NewIssuer(key []byte, identities IdentityGetter, clk clock.Clock) *Issuer {
	if clk == nil {
		clk = clock.System{}
	}
	return &Issuer{key: key, identities: identities, clk: clk}
}

// Issue returns a token for identityID issued at the current instant.
func (i *Issuer) Issue(ctx context.Context, identityID string) (*Token, error) {
	if identityID == "" || strings.Contains(identityID, Delimiter) {
		return nil, ErrBadIdentityID
	}
	if i.identities != nil {
		ident, err := i.identities.GetByID(ctx, identityID)
		if err != nil {
			return nil, fmt.Errorf("look up identity: %w", err)
		}
		if ident == nil {
			return nil, ErrUnknownIdentity
		}
	}

	issuedAt := i.clk.Now()
	raw := Encode(i.key, identityID, issuedAt)
	proof := raw[strings.LastIndex(raw, Delimiter)+1:]
	return &Token{
		IdentityID: identityID,
		IssuedAt:   issuedAt,
		Proof:      proof,
		Raw:        raw,
	}, nil
}

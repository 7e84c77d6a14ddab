// Package token implements the gate access token: an ephemeral proof of
// identity carried in a QR payload, valid for a short window from issuance.
//
// Wire format: identityID.issuedAtMillis.proofHex. The "." delimiter cannot
// appear in a UUID, a decimal epoch-millis timestamp, or lowercase hex, so the
// three fields split unambiguously. The proof is an HMAC-SHA256 over the first
// two fields with a key shared only between the issuing and validating trust
// boundary; anything unsigned or altered fails validation.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Delimiter separates the three token fields. Not permitted in any field's alphabet.
const Delimiter = "."

// DefaultWindow is the validity window measured from issuance. Long enough to
// cover display and scan latency, short enough to make screenshot replay
// impractical.
const DefaultWindow = 30 * time.Second

// Claims are the decoded fields of a validated token.
type Claims struct {
	IdentityID string
	IssuedAt   time.Time
	// Proof is the hex HMAC; used as the replay-cache key and as the
	// fingerprint recorded on access logs.
	Proof string
}

// Token is an issued access token. Raw is what goes into the QR payload.
type Token struct {
	IdentityID string
	IssuedAt   time.Time
	Proof      string
	Raw        string
}

// Encode builds the wire form for identityID issued at issuedAt, signed with key.
func Encode(key []byte, identityID string, issuedAt time.Time) string {
	millis := strconv.FormatInt(issuedAt.UnixMilli(), 10)
	return identityID + Delimiter + millis + Delimiter + computeProof(key, identityID, millis)
}

func computeProof(key []byte, identityID, millis string) string {
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s%s%s", identityID, Delimiter, millis)
	return hex.EncodeToString(mac.Sum(nil))
}

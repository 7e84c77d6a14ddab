package security

import (
	"testing"
	"time"
)

func TestTokenProvider_IssueAndValidate(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	token, err := p.Issue("identity-1", "Ada", "staff")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := p.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "identity-1" {
		t.Errorf("Subject = %q, want identity-1", claims.Subject)
	}
	if claims.Name != "Ada" {
		t.Errorf("Name = %q, want Ada", claims.Name)
	}
	if claims.Role != "staff" {
		t.Errorf("Role = %q, want staff", claims.Role)
	}
}

func TestTokenProvider_Validate_RejectsGarbage(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := p.Validate(tok); err == nil {
			t.Errorf("Validate(%q) should fail", tok)
		}
	}
}

func TestTokenProvider_Validate_RejectsWrongIssuer(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	signer, _ := ParsePrivateKey(testPrivateKeyPEM)
	pub, _ := ParsePublicKey(testPublicKeyPEM)
	other := NewTokenProvider(signer, pub, "other-issuer", "test-audience", time.Minute)

	token, err := other.Issue("identity-1", "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := p.Validate(token); err == nil {
		t.Error("Validate should reject a token from a different issuer")
	}
}

func TestTokenProvider_Validate_RejectsWrongAudience(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	signer, _ := ParsePrivateKey(testPrivateKeyPEM)
	pub, _ := ParsePublicKey(testPublicKeyPEM)
	other := NewTokenProvider(signer, pub, "test-issuer", "other-audience", time.Minute)

	token, err := other.Issue("identity-1", "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := p.Validate(token); err == nil {
		t.Error("Validate should reject a token for a different audience")
	}
}

func TestTokenProvider_Validate_RejectsExpired(t *testing.T) {
	signer, _ := ParsePrivateKey(testPrivateKeyPEM)
	pub, _ := ParsePublicKey(testPublicKeyPEM)
	p := NewTokenProvider(signer, pub, "test-issuer", "test-audience", -time.Minute)

	token, err := p.Issue("identity-1", "", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := p.Validate(token); err == nil {
		t.Error("Validate should reject an expired token")
	}
}

func TestTokenProvider_Issue_RequiresPrivateKey(t *testing.T) {
	pub, _ := ParsePublicKey(testPublicKeyPEM)
	p := NewTokenProvider(nil, pub, "test-issuer", "test-audience", time.Minute)

	if _, err := p.Issue("identity-1", "", ""); err == nil {
		t.Error("Issue should fail without a private key")
	}
}

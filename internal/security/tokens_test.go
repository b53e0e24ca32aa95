package security

import (
	"testing"
	"time"
)

func TestTokenProvider_IssueAccessAndRefresh(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	sub := Subject{ID: "u1", FirstName: "Ada", LastName: "Lovelace"}

	access, exp, err := p.IssueAccess(sub)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if access == "" {
		t.Fatal("access token empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	got, err := p.ValidateAccess(access)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if got != sub {
		t.Errorf("ValidateAccess: got %+v, want %+v", got, sub)
	}

	refresh, refreshExp, err := p.IssueRefresh(sub)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if refresh == "" {
		t.Fatal("refresh token empty")
	}
	if !refreshExp.After(exp) {
		t.Fatal("refresh should outlive access")
	}
	got, err = p.ValidateRefresh(refresh)
	if err != nil {
		t.Fatalf("ValidateRefresh: %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("ValidateRefresh subject: %+v", got)
	}
}

func TestTokenProvider_TokenUseIsEnforced(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	sub := Subject{ID: "u1", FirstName: "Ada"}

	access, _, err := p.IssueAccess(sub)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	refresh, _, err := p.IssueRefresh(sub)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	if _, err := p.ValidateRefresh(access); err != ErrInvalidToken {
		t.Errorf("access as refresh: want ErrInvalidToken, got %v", err)
	}
	if _, err := p.ValidateAccess(refresh); err != ErrInvalidToken {
		t.Errorf("refresh as access: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ValidateInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, err := p.ValidateAccess("invalid-token"); err != ErrInvalidToken {
		t.Errorf("ValidateAccess invalid token: want ErrInvalidToken, got %v", err)
	}
	if _, err := p.ValidateRefresh(""); err != ErrInvalidToken {
		t.Errorf("ValidateRefresh empty token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_Expired(t *testing.T) {
	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	p := NewTokenProvider(signer, pub, "test-issuer", "test-audience", -time.Minute, -time.Minute)

	access, _, err := p.IssueAccess(Subject{ID: "u1", FirstName: "Ada"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.ValidateAccess(access); err != ErrInvalidToken {
		t.Errorf("expired token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_WrongIssuer(t *testing.T) {
	signer, _ := ParsePrivateKey(testPrivateKeyPEM)
	pub, _ := ParsePublicKey(testPublicKeyPEM)
	other := NewTokenProvider(signer, pub, "other-issuer", "test-audience", time.Hour, time.Hour)

	access, _, err := other.IssueAccess(Subject{ID: "u1", FirstName: "Ada"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, err := p.ValidateAccess(access); err != ErrInvalidToken {
		t.Errorf("wrong issuer: want ErrInvalidToken, got %v", err)
	}
}

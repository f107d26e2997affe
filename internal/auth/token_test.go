package auth

import (
	"testing"
	"time"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	in := Principal{UserID: 7, AdmissionNumber: "A-1042", Role: "user"}
	raw, err := tokens.Issue(in)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	out, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if out != in {
		t.Errorf("Verify() = %+v, want %+v", out, in)
	}
}

func TestTokens_WrongSecret(t *testing.T) {
	raw, err := NewTokens("secret-a", time.Hour).Issue(Principal{UserID: 1, Role: "admin"})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if _, err := NewTokens("secret-b", time.Hour).Verify(raw); err == nil {
		t.Error("expected verification to fail with a different secret")
	}
}

func TestTokens_Expired(t *testing.T) {
	tokens := NewTokens("test-secret", -time.Minute)

	raw, err := tokens.Issue(Principal{UserID: 1, AdmissionNumber: "A-1", Role: "user"})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if _, err := tokens.Verify(raw); err == nil {
		t.Error("expected verification of an expired token to fail")
	}
}

func TestPrincipal_IsAdmin(t *testing.T) {
	if (Principal{Role: "user"}).IsAdmin() {
		t.Error("user role should not be admin")
	}
	if !(Principal{Role: "admin"}).IsAdmin() {
		t.Error("admin role should be admin")
	}
}

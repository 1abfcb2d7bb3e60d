package auth

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	v := NewVerifier("test-secret", time.Hour)

	token, err := v.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	userID, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if userID != "user-123" {
		t.Errorf("expected user-123, got %s", userID)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewVerifier("secret-a", time.Hour)
	verifier := NewVerifier("secret-b", time.Hour)

	token, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := verifier.Verify(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewVerifier("test-secret", -time.Minute)

	token, err := v.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := v.Verify(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyRejectsEmpty(t *testing.T) {
	v := NewVerifier("test-secret", time.Hour)

	if _, err := v.Verify(""); err != ErrNoToken {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
	if _, err := v.Verify("not-a-jwt"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=query-token", nil)
	if got := FromRequest(r); got != "query-token" {
		t.Errorf("expected query-token, got %s", got)
	}

	r = httptest.NewRequest("GET", "/api/feed", nil)
	r.Header.Set("Authorization", "Bearer header-token")
	if got := FromRequest(r); got != "header-token" {
		t.Errorf("expected header-token, got %s", got)
	}

	// Header wins over query when both are present.
	r = httptest.NewRequest("GET", "/ws?token=query-token", nil)
	r.Header.Set("Authorization", "Bearer header-token")
	if got := FromRequest(r); got != "header-token" {
		t.Errorf("expected header-token, got %s", got)
	}

	r = httptest.NewRequest("GET", "/ws", nil)
	if got := FromRequest(r); got != "" {
		t.Errorf("expected empty token, got %s", got)
	}
}

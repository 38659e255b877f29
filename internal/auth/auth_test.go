package auth

import (
	"net/http/httptest"
	"testing"
)

func TestVerifyRequestAcceptsOwnToken(t *testing.T) {
	token, err := NewToken("secret", "CP_1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	r := httptest.NewRequest("GET", "/CP_1", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if err := VerifyRequest(r, "secret", "CP_1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRequestRejectsMissingHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/CP_1", nil)
	if err := VerifyRequest(r, "secret", "CP_1"); err == nil {
		t.Fatalf("expected error for missing header")
	}
}

func TestVerifyRequestRejectsMalformedHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/CP_1", nil)
	r.Header.Set("Authorization", "Basic abc123")
	if err := VerifyRequest(r, "secret", "CP_1"); err == nil {
		t.Fatalf("expected error for non-bearer header")
	}
}

func TestVerifyRequestRejectsWrongSecret(t *testing.T) {
	token, err := NewToken("other-secret", "CP_1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	r := httptest.NewRequest("GET", "/CP_1", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if err := VerifyRequest(r, "secret", "CP_1"); err == nil {
		t.Fatalf("expected error for wrong signing secret")
	}
}

func TestVerifyRequestRejectsMismatchedChargePoint(t *testing.T) {
	token, err := NewToken("secret", "CP_OTHER")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	r := httptest.NewRequest("GET", "/CP_1", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if err := VerifyRequest(r, "secret", "CP_1"); err == nil {
		t.Fatalf("expected error for token bound to another charge point")
	}
}

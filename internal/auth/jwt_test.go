package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// newTestTokenService uses a fixed secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short", time.Hour); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_ZeroTTL(t *testing.T) {
	if _, err := NewTokenService("this-is-16-chars", 0); err == nil {
		t.Fatal("NewTokenService() should reject a zero TTL")
	}
}

// =========================================================================
// GENERATE / VALIDATE TESTS
// =========================================================================

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate(7)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if n := strings.Count(token, "."); n != 2 {
		t.Errorf("expected 2 dots in token, got %d", n)
	}
}

func TestGenerate_EveryTokenHasItsOwnID(t *testing.T) {
	ts := newTestTokenService(t)

	a, _ := ts.Generate(7)
	b, _ := ts.Generate(7)
	ca, err := ts.Validate(a)
	if err != nil {
		t.Fatalf("Validate(a): %v", err)
	}
	cb, err := ts.Validate(b)
	if err != nil {
		t.Fatalf("Validate(b): %v", err)
	}
	if ca.TokenID == cb.TokenID {
		t.Error("two logins for the same user must get different token ids")
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate(42)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	claims, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if until := time.Until(claims.ExpiresAt); until < 59*time.Minute || until > time.Hour+time.Second {
		t.Errorf("ExpiresAt %v is not about an hour away", claims.ExpiresAt)
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration(42, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}
	_, err = ts.Validate(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestValidate_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Generate(42)
	tampered := token[:len(token)-2] + "xx"
	if _, err := ts.Validate(tampered); err == nil {
		t.Error("Validate() should reject a tampered token")
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	ts := newTestTokenService(t)
	other, _ := NewTokenService("a-completely-different-secret", time.Hour)

	token, _ := other.Generate(42)
	if _, err := ts.Validate(token); err == nil {
		t.Error("Validate() should reject a token signed with another secret")
	}
}

func TestValidate_Garbage(t *testing.T) {
	ts := newTestTokenService(t)

	for _, in := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := ts.Validate(in); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidToken", in, err)
		}
	}
}

package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(bcrypt.MinCost)
}

// =========================================================================
// HASH TESTS
// =========================================================================

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
}

func TestHash_SaltIsRandom(t *testing.T) {
	ps := newTestPasswordService()

	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")
	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password")
	}
}

func TestHash_LengthLimit(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("73 bytes: expected ErrPasswordTooLong, got %v", err)
	}
	if _, err := ps.Hash(strings.Repeat("a", 72)); err != nil {
		t.Errorf("72 bytes: unexpected error %v", err)
	}
}

// =========================================================================
// VERIFY TESTS
// =========================================================================

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()
	hash, err := ps.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name      string
		hash      string
		password  string
		mismatch  bool
		wantError bool
	}{
		{"correct", hash, "correct-horse-battery-staple", false, false},
		{"wrong", hash, "Tr0ub4dor&3", true, true},
		{"empty password", hash, "", true, true},
		{"account without password", "", "anything", true, true},
		{"garbage hash", "not-a-bcrypt-hash", "password", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.Verify(tt.hash, tt.password)
			if (err != nil) != tt.wantError {
				t.Fatalf("Verify() error = %v, wantError %v", err, tt.wantError)
			}
			if errors.Is(err, ErrPasswordMismatch) != tt.mismatch {
				t.Errorf("errors.Is(err, ErrPasswordMismatch) = %v, want %v", !tt.mismatch, tt.mismatch)
			}
		})
	}
}

func TestHashVerify_RoundTrip(t *testing.T) {
	ps := newTestPasswordService()

	for _, pw := range []string{"hello123", "p@$$w0rd!#%", "пароль-密码", "  spaces  "} {
		hash, err := ps.Hash(pw)
		if err != nil {
			t.Fatalf("Hash(%q) error = %v", pw, err)
		}
		if err := ps.Verify(hash, pw); err != nil {
			t.Errorf("Verify() failed for %q: %v", pw, err)
		}
	}
}

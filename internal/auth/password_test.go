package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"accessgate/internal/apperr"
)

var testParams = Argon2Params{Memory: 1024, Time: 1, Threads: 1}

func TestHashAndVerify(t *testing.T) {
	h := NewPasswordHasher(6, testParams)

	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected hash format %q", hash)
	}
	if strings.Contains(hash, "correct horse") {
		t.Fatal("hash must not contain the plaintext")
	}

	if !h.Verify("correct horse", hash) {
		t.Error("expected matching secret to verify")
	}
	if h.Verify("wrong horse", hash) {
		t.Error("expected mismatching secret to fail")
	}
}

func TestHashIsSalted(t *testing.T) {
	h := NewPasswordHasher(6, testParams)

	a, _ := h.Hash("secret123")
	b, _ := h.Hash("secret123")
	if a == b {
		t.Fatal("two hashes of the same secret should differ")
	}
}

func TestHashWeakSecret(t *testing.T) {
	h := NewPasswordHasher(6, testParams)

	testCases := []struct {
		secret  string
		wantErr bool
	}{
		{"", true},
		{"12345", true},
		{"123456", false},
	}

	for _, tc := range testCases {
		t.Run(tc.secret, func(t *testing.T) {
			_, err := h.Hash(tc.secret)
			if tc.wantErr && !errors.Is(err, apperr.ErrWeakSecret) {
				t.Errorf("Hash(%q) error = %v; want ErrWeakSecret", tc.secret, err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Hash(%q) unexpected error %v", tc.secret, err)
			}
		})
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := NewPasswordHasher(6, testParams)

	for _, hash := range []string{
		"",
		"plaintext",
		"$argon2id$",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$!!!",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5",
	} {
		if h.Verify("secret", hash) {
			t.Errorf("Verify against %q should fail", hash)
		}
	}
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	h := NewPasswordHasher(6, testParams)

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}

	if !h.Verify("legacy-secret", string(legacy)) {
		t.Error("expected legacy bcrypt hash to verify")
	}
	if h.Verify("other", string(legacy)) {
		t.Error("expected wrong secret to fail against bcrypt hash")
	}
	if !h.NeedsRehash(string(legacy)) {
		t.Error("legacy hashes should be rehashed")
	}
}

func TestNeedsRehash(t *testing.T) {
	h := NewPasswordHasher(6, testParams)
	hash, _ := h.Hash("secret123")

	if h.NeedsRehash(hash) {
		t.Error("hash with current params should not need a rehash")
	}

	stronger := NewPasswordHasher(6, Argon2Params{Memory: 2048, Time: 2, Threads: 1})
	if !stronger.NeedsRehash(hash) {
		t.Error("hash with old params should need a rehash")
	}
	if !stronger.Verify("secret123", hash) {
		t.Error("old hashes must keep verifying after re-tuning")
	}
}

package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("changeme123")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$") {
		t.Fatalf("unexpected hash format: %s", hash)
	}
	if strings.Contains(hash, "changeme123") {
		t.Fatal("hash contains the plaintext password")
	}
}

func TestCheckPassword_Argon2(t *testing.T) {
	hash, err := HashPassword("changeme123")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	tests := []struct {
		password string
		want     bool
	}{
		{"changeme123", true},
		{"wrongpassword", false},
		{"", false},
	}
	for _, tt := range tests {
		got, err := CheckPassword(tt.password, hash)
		if err != nil {
			t.Fatalf("CheckPassword(%q) error: %v", tt.password, err)
		}
		if got != tt.want {
			t.Errorf("CheckPassword(%q) = %v, want %v", tt.password, got, tt.want)
		}
	}
}

func TestCheckPassword_OlderArgon2Params(t *testing.T) {
	hash := "$argon2id$v=19$m=65536,t=1,p=4$mucMvOaS6lZ2LWNS1OEFKw$UYEWv8cvCOO6l2zGeqv3JPVe1nyy0x9GXBfYEuDM544"

	valid, err := CheckPassword("changeme", hash)
	if err != nil {
		t.Fatalf("CheckPassword error: %v", err)
	}
	if !valid {
		t.Fatal("hash with older parameters rejected the correct password")
	}
	if !NeedsRehash(hash) {
		t.Error("NeedsRehash should be true for older parameters")
	}
}

func TestCheckPassword_Bcrypt(t *testing.T) {
	raw, err := bcrypt.GenerateFromPassword([]byte("secret-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	// Emulate a PHP password_hash value.
	php := "$2y$" + strings.TrimPrefix(string(raw), "$2a$")

	for _, hash := range []string{string(raw), php} {
		if !IsLegacyHash(hash) {
			t.Fatalf("IsLegacyHash(%q) = false", hash)
		}
		ok, err := CheckPassword("secret-pass", hash)
		if err != nil || !ok {
			t.Errorf("CheckPassword(correct, %q) = %v, %v", hash, ok, err)
		}
		ok, err = CheckPassword("nope-nope", hash)
		if err != nil || ok {
			t.Errorf("CheckPassword(wrong, %q) = %v, %v", hash, ok, err)
		}
		if !NeedsRehash(hash) {
			t.Errorf("NeedsRehash(%q) = false, want true", hash)
		}
	}
}

func TestCheckPassword_UnknownFormat(t *testing.T) {
	if _, err := CheckPassword("x", "plaintext"); err == nil {
		t.Fatal("expected error for unknown hash format")
	}
}

func TestNeedsRehash_Current(t *testing.T) {
	hash, err := HashPassword("changeme123")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if NeedsRehash(hash) {
		t.Error("fresh hash should not need rehash")
	}
}

package security

import (
	"bytes"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2-but-longer")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !bytes.HasPrefix(hash, []byte("$argon2id$")) {
		t.Fatalf("hash = %q, want argon2id encoding", hash)
	}

	ok, err := VerifyPassword("hunter2-but-longer", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Error("correct password rejected")
	}

	ok, err = VerifyPassword("wrong-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}
}

func TestHashPasswordSalted(t *testing.T) {
	a, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	b, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two hashes of the same password are identical, salt missing")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	for _, hash := range [][]byte{nil, []byte(""), []byte("$argon2id$nope"), []byte("plaintext")} {
		if ok, err := VerifyPassword("anything", hash); err == nil && ok {
			t.Errorf("VerifyPassword accepted malformed hash %q", hash)
		}
	}
}

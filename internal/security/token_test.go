package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)

	token, err := codec.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("Issue returned empty token")
	}

	subject, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if subject != "alice@example.com" {
		t.Errorf("subject = %q, want alice@example.com", subject)
	}
}

func TestCodecDefaultTTL(t *testing.T) {
	codec := NewCodec("test-secret", 0)
	if codec.TTL() != DefaultTokenTTL {
		t.Errorf("TTL = %v, want %v", codec.TTL(), DefaultTokenTTL)
	}
}

func TestCodecExpiredToken(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)

	token, err := codec.issueAt("alice@example.com", time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("issueAt: %v", err)
	}

	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify error = %v, want ErrTokenExpired", err)
	}
}

func TestCodecRejectsBadTokens(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)

	valid, err := codec.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := NewCodec("other-secret", time.Hour)
	foreign, err := other.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tampered := valid[:len(valid)-2] + "xx"

	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"tampered signature", tampered},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := codec.Verify(tc.raw); !errors.Is(err, ErrTokenMalformed) {
				t.Errorf("Verify(%q) error = %v, want ErrTokenMalformed", tc.raw, err)
			}
		})
	}
}

func TestCodecEmptySubject(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)

	token, err := codec.Issue("")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("Verify error = %v, want ErrTokenMalformed", err)
	}
}

func TestCodecDistinctSecretsDistinctTokens(t *testing.T) {
	a, err := NewCodec("secret-a", time.Hour).Issue("bob@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	b, err := NewCodec("secret-b", time.Hour).Issue("bob@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Split(a, ".")[2] == strings.Split(b, ".")[2] {
		t.Error("tokens signed with different secrets share a signature")
	}
}

package auth

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("alice", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	owner, err := ParseToken(token, "secret")
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if owner != "alice" {
		t.Errorf("owner = %q, want alice", owner)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, _ := GenerateToken("alice", "secret", time.Hour)
	if _, err := ParseToken(token, "other"); err == nil {
		t.Error("expected failure for wrong signing secret")
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, _ := GenerateToken("alice", "secret", -time.Minute)
	if _, err := ParseToken(token, "secret"); err == nil {
		t.Error("expected failure for expired token")
	}
}

func TestParseTokenGarbage(t *testing.T) {
	if _, err := ParseToken("not.a.token", "secret"); err == nil {
		t.Error("expected failure for malformed token")
	}
}

func TestOwnerFromTokenSkipsVerification(t *testing.T) {
	token, _ := GenerateToken("alice", "a-secret-the-client-never-sees", time.Hour)
	if got := OwnerFromToken(token); got != "alice" {
		t.Errorf("OwnerFromToken = %q, want alice", got)
	}
	if got := OwnerFromToken("garbage"); got != "" {
		t.Errorf("OwnerFromToken(garbage) = %q, want empty", got)
	}
}

func TestExtractToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		if got := ExtractToken(r); got != tc.want {
			t.Errorf("header %q: got %q, want %q", tc.header, got, tc.want)
		}
	}
}

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lmcdonald6/reic-gateway/internal/testutil"
)

const secret = "test-secret"

func newTestGate() (*Gate, *testutil.FakeClock) {
	clock := testutil.NewFakeClock(time.Now())
	return NewGate(secret, []string{"key-1", " key-2 "}, time.Hour).WithClock(clock.Now), clock
}

func TestAuthenticate_EmptyTokenIsAnonymous(t *testing.T) {
	g, _ := newTestGate()
	for _, tok := range []string{"", "   ", "Bearer "} {
		res, err := g.Authenticate(tok)
		if err != nil {
			t.Fatalf("Authenticate(%q): %v", tok, err)
		}
		if !res.Anonymous {
			t.Errorf("Authenticate(%q) should be anonymous", tok)
		}
	}
}

func TestIssueThenAuthenticate(t *testing.T) {
	g, _ := newTestGate()
	issued, err := g.Issue("key-2")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.TokenType != "Bearer" || issued.ExpiresIn != 3600 {
		t.Errorf("issued = %+v", issued)
	}

	res, err := g.Authenticate("Bearer " + issued.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if res.Anonymous || res.Subject != Fingerprint("key-2") {
		t.Errorf("result = %+v", res)
	}
	if strings.Contains(res.Subject, "key-2") {
		t.Error("subject must not contain the raw api key")
	}
}

func TestAuthenticate_Expired(t *testing.T) {
	g, clock := newTestGate()
	issued, err := g.Issue("key-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	clock.Advance(2 * time.Hour)
	if _, err := g.Authenticate(issued.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	g, _ := newTestGate()

	otherSecret, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "x",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("other"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "x",
	}).SignedString([]byte(secret))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.jwt"},
		{"wrong secret", otherSecret},
		{"no expiry", noExpiry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.Authenticate(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestAuthenticate_NoSecretRejectsTokens(t *testing.T) {
	g := NewGate("", nil, time.Hour)
	if _, err := g.Authenticate("anything"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if res, err := g.Authenticate(""); err != nil || !res.Anonymous {
		t.Fatalf("anonymous call should still pass: %+v %v", res, err)
	}
}

func TestIssue_Errors(t *testing.T) {
	g, _ := newTestGate()
	if _, err := g.Issue("nope"); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey, got %v", err)
	}
	if _, err := g.Issue(""); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey for empty key, got %v", err)
	}
	if _, err := NewGate("", []string{"k"}, time.Hour).Issue("k"); !errors.Is(err, ErrNoSecret) {
		t.Errorf("expected ErrNoSecret, got %v", err)
	}
}

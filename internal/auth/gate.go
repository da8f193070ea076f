// Package auth verifies optional bearer tokens and issues tokens in exchange
// for configured API keys.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers bad signatures, expired tokens, malformed tokens
	// and tokens presented while no secret is configured.
	ErrInvalidToken = errors.New("invalid or expired token")

	ErrInvalidAPIKey = errors.New("invalid api key")
	ErrNoSecret      = errors.New("token issuing disabled: no signing secret configured")
)

const issuer = "reic-gateway"

// Result describes the caller. Subject is used for audit only.
type Result struct {
	Subject   string
	Anonymous bool
}

// Gate checks HS256 tokens.
type Gate struct {
	secret  []byte
	apiKeys []string
	ttl     time.Duration
	now     func() time.Time
}

func NewGate(secret string, apiKeys []string, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	keys := make([]string, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return &Gate{
		secret:  []byte(secret),
		apiKeys: keys,
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source used for expiry checks and issuing.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Authenticate verifies token. An empty token is anonymous and always passes;
// a non-empty token must verify regardless of request type.
func (g *Gate) Authenticate(token string) (Result, error) {
	token = stripBearer(token)
	if token == "" {
		return Result{Anonymous: true}, nil
	}
	if len(g.secret) == 0 {
		return Result{}, ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !parsed.Valid {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Result{Subject: claims.Subject}, nil
}

func stripBearer(token string) string {
	token = strings.TrimSpace(token)
	if len(token) >= 6 && strings.EqualFold(token[:6], "bearer") {
		token = strings.TrimSpace(token[6:])
	}
	return token
}

// Issued is a freshly signed token.
type Issued struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Issue exchanges a configured API key for a signed token. The subject is a
// fingerprint of the key, never the key itself.
func (g *Gate) Issue(apiKey string) (Issued, error) {
	if len(g.secret) == 0 {
		return Issued{}, ErrNoSecret
	}
	if !g.knownKey(apiKey) {
		return Issued{}, ErrInvalidAPIKey
	}
	now := g.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   Fingerprint(apiKey),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return Issued{}, fmt.Errorf("sign token: %w", err)
	}
	return Issued{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(g.ttl / time.Second),
	}, nil
}

func (g *Gate) knownKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}
	for _, k := range g.apiKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(apiKey)) == 1 {
			return true
		}
	}
	return false
}

// Fingerprint returns a short stable identifier for an API key.
func Fingerprint(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return "key_" + hex.EncodeToString(sum[:8])
}

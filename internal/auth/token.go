// Package auth issues and verifies the signed tokens that identify users,
// and resolves them to store users.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/kalambet/docmind/internal/storage"
)

// ErrInvalidToken is returned for missing, malformed, expired or badly
// signed tokens.
var ErrInvalidToken = errors.New("invalid token")

const issuer = "docmind"

// CookieName is the cookie that may carry the token.
const CookieName = "jwt"

// Tokens signs and verifies HS256 user tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a Tokens with the shared secret and token lifetime.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token whose subject is the user's id.
func (t *Tokens) Issue(u storage.User) (string, error) {
	now := t.now()
	tok, err := jwt.NewBuilder().
		Issuer(issuer).
		Subject(u.ID).
		IssuedAt(now).
		Expiration(now.Add(t.ttl)).
		Claim("email", u.Email).
		Claim("role", u.Role).
		Build()
	if err != nil {
		return "", fmt.Errorf("building token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, t.secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return string(signed), nil
}

// Verify checks the signature and validity window of raw and returns the
// user id it carries.
func (t *Tokens) Verify(raw string) (string, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, t.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(issuer),
		jwt.WithClock(jwt.ClockFunc(t.now)),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if tok.Subject() == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return tok.Subject(), nil
}

// TokenFromRequest extracts a token from the Authorization bearer header,
// the jwt cookie, or the token query parameter, in that order.
func TokenFromRequest(r *http.Request) string {
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// Package token implements the signed credential codec. All trust decisions
// route through Verify; Peek decodes without checking the signature and must
// never be used to establish identity.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Issuer is the iss claim stamped on every token this service mints
const Issuer = "quizroom-api"

// Purpose distinguishes access tokens from refresh tokens. It is carried as
// the token audience so one kind cannot be replayed as the other.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
)

// Claims is the identity payload embedded in a token. It never carries a
// password hash or other stored secrets.
type Claims struct {
	UserID    string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

// Codec signs and verifies tokens with a single shared HS256 secret
type Codec struct {
	secret []byte
}

// NewCodec creates a codec from the configured signing secret
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret must not be empty")
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Issue encodes claims into a signed token valid for ttl. The claims' TokenID
// becomes the jti; for refresh tokens the caller sets it to the ledger record
// id so the two are bound.
func (c *Codec) Issue(claims Claims, ttl time.Duration, purpose Purpose) (string, error) {
	now := time.Now()

	tok, err := jwt.NewBuilder().
		Issuer(Issuer).
		Audience([]string{string(purpose)}).
		Subject(claims.UserID).
		JwtID(claims.TokenID).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim("email", claims.Email).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, c.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return string(signed), nil
}

// Verify checks a token's signature, expiry, issuer, and purpose, and returns
// its claims. This is the only operation that may establish trust.
func (c *Codec) Verify(tokenString string, purpose Purpose) (*Claims, error) {
	tok, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, c.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(Issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidSignature
	}

	// Purpose check is separate from parsing so its failure is
	// distinguishable from a bad signature
	if !hasAudience(tok.Audience(), string(purpose)) {
		return nil, ErrPurposeMismatch
	}

	return claimsFromToken(tok), nil
}

// Peek decodes a token's payload without verifying the signature. It exists
// for logging and diagnostics only; callers must not trust its output.
func (c *Codec) Peek(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseInsecure([]byte(tokenString))
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claimsFromToken(tok), nil
}

func claimsFromToken(tok jwt.Token) *Claims {
	claims := &Claims{
		UserID:    tok.Subject(),
		TokenID:   tok.JwtID(),
		ExpiresAt: tok.Expiration(),
	}
	if email, ok := tok.Get("email"); ok {
		if emailStr, ok := email.(string); ok {
			claims.Email = emailStr
		}
	}
	return claims
}

func hasAudience(audiences []string, want string) bool {
	for _, aud := range audiences {
		if aud == want {
			return true
		}
	}
	return false
}

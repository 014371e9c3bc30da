// Package token issues and verifies the continuation token that carries
// linking intent across the external re-authentication redirect.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTTL = 5 * time.Minute

var (
	// ErrTokenInvalid covers bad signatures and malformed tokens.
	ErrTokenInvalid = errors.New("continuation token invalid")
	// ErrTokenExpired means the token was well-formed but past its window.
	ErrTokenExpired = errors.New("continuation token expired")
)

// Claims is the linking intent embedded in a continuation token.
type Claims struct {
	PrimaryUserID   string `json:"primaryUserId"`
	SecondaryUserID string `json:"secondaryUserId"`
	Email           string `json:"email"`
	jwt.RegisteredClaims
}

// Codec signs and verifies continuation tokens with an HMAC secret.
// Expiry is the only invalidation mechanism; single-use enforcement
// lives in the session layer.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl}
}

// Issue produces a compact signed token over the given linking intent,
// valid for the codec's TTL.
func (c *Codec) Issue(primaryUserID, secondaryUserID, email string) (string, error) {
	now := time.Now()

	claims := Claims{
		PrimaryUserID:   primaryUserID,
		SecondaryUserID: secondaryUserID,
		Email:           email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.secret)
}

// Verify parses and validates a token string, returning its claims.
func (c *Codec) Verify(raw string) (*Claims, error) {
	// Callers rely on ExpiresAt being present after a successful verify.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)

	tok, err := parser.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

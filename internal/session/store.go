package session

import (
	"context"
	"time"
)

// Idle window for a linking session. The whole flow is expected to take
// well under this.
const TTL = 10 * time.Minute

// LinkingInProgress is staged by the initiator and must match the token
// presented at the callback.
type LinkingInProgress struct {
	PrimaryUserID   string `json:"primaryUserId"`
	SecondaryUserID string `json:"secondaryUserId"`
	Email           string `json:"email"`
	Token           string `json:"token"`
}

// VerifiedLink is staged by the callback only after re-authentication
// proved control of the secondary identity. The completer consumes it.
type VerifiedLink struct {
	PrimaryUserID   string `json:"primaryUserId"`
	SecondaryUserID string `json:"secondaryUserId"`
	Email           string `json:"email"`
	AccessToken     string `json:"accessToken"`
}

// Session is the server-side linking state bound to the browser cookie.
// It never holds authentication state for the main application.
type Session struct {
	SessionID         string             `json:"sessionId"`
	CreatedAt         time.Time          `json:"createdAt"`
	ExpiresAt         time.Time          `json:"expiresAt"`
	LinkingInProgress *LinkingInProgress `json:"linkingInProgress,omitempty"`
	VerifiedLink      *VerifiedLink      `json:"verifiedLink,omitempty"`
}

// Store defines how linking sessions are persisted. Implementations must
// survive process restarts so the redirect through the identity provider
// can land on a different instance. Get returns (nil, nil) for missing or
// expired sessions.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}

// TokenConsumer marks a continuation token id as used. The first call for
// a given jti returns true, every later call false, making replay within
// the expiry window detectable.
type TokenConsumer interface {
	ConsumeOnce(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

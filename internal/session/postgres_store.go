package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mmckelve45/auth0-pizza42/internal/db"
)

// PostgresStore persists sessions in a single durable table so a user
// redirected through the identity provider and back keeps their state
// even if the serving instance changed.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, s Session) error {
	if s.SessionID == "" {
		return fmt.Errorf("session: missing session_id")
	}

	if time.Until(s.ExpiresAt) <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO session (sid, payload, expires_at)
		VALUES ($1, $2, $3)
	`, s.SessionID, payload, s.ExpiresAt)

	return err
}

func (p *PostgresStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	var (
		payload   []byte
		expiresAt time.Time
	)

	err := p.db.QueryRowContext(ctx, `
		SELECT payload, expires_at
		FROM session
		WHERE sid = $1
	`, sessionID).Scan(&payload, &expiresAt)

	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}

	// Expired rows are treated as missing and reaped lazily.
	if time.Now().After(expiresAt) {
		_ = p.Delete(ctx, sessionID)
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}

	return &s, nil
}

func (p *PostgresStore) Update(ctx context.Context, s Session) error {
	if s.SessionID == "" {
		return fmt.Errorf("session: missing session_id")
	}

	if time.Until(s.ExpiresAt) <= 0 {
		return p.Delete(ctx, s.SessionID)
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	// Upsert: the flow may touch a session the store has never seen when
	// the cookie outlives a reaped row.
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO session (sid, payload, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (sid) DO UPDATE
		SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at
	`, s.SessionID, payload, s.ExpiresAt)

	return err
}

func (p *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := p.db.ExecContext(ctx, `
		DELETE FROM session WHERE sid = $1
	`, sessionID)
	return err
}

// ConsumeOnce records a continuation token id. The conditional insert is
// the atomic check-and-set; a second insert for the same jti changes no
// rows.
func (p *PostgresStore) ConsumeOnce(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO link_token_used (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, time.Now().Add(ttl))
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	// Opportunistic cleanup of markers past the token window.
	_, _ = p.db.ExecContext(ctx, `
		DELETE FROM link_token_used WHERE expires_at < NOW()
	`)

	return n == 1, nil
}

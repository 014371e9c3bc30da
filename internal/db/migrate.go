package db

import (
	"context"
	"database/sql"
)

// The only schema this subsystem owns: the durable session table (same
// layout connect-pg-simple uses, so an existing deployment keeps its
// rows), the single-use marker for continuation tokens, and the linking
// audit trail.
const linkingMigration = `
CREATE TABLE IF NOT EXISTS session (
    sid text PRIMARY KEY,
    payload jsonb NOT NULL,
    expires_at timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS session_expires_at_idx
ON session (expires_at);

CREATE TABLE IF NOT EXISTS link_token_used (
    jti text PRIMARY KEY,
    expires_at timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS linking_audit (
    id uuid PRIMARY KEY,
    event text NOT NULL,
    primary_user_id text NOT NULL,
    secondary_user_id text NOT NULL,
    provider text NOT NULL,
    email text NOT NULL DEFAULT '',
    occurred_at timestamptz NOT NULL DEFAULT NOW()
);
`

func RunLinkingMigration(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, linkingMigration)
	return err
}

// Package audit keeps a trail of link and unlink operations. Rows are
// best-effort: a write failure is logged, never surfaced to the user.
package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/Mmckelve45/auth0-pizza42/internal/db"
	"github.com/Mmckelve45/auth0-pizza42/internal/logger"
)

const (
	EventLink   = "link"
	EventUnlink = "unlink"
)

type Entry struct {
	Event           string
	PrimaryUserID   string
	SecondaryUserID string
	Provider        string
	Email           string
}

type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// DBRecorder persists entries into the linking_audit table.
type DBRecorder struct {
	db *db.DB
}

func NewDBRecorder(db *db.DB) *DBRecorder {
	return &DBRecorder{db: db}
}

func (r *DBRecorder) Record(ctx context.Context, e Entry) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO linking_audit
			(id, event, primary_user_id, secondary_user_id, provider, email)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		e.Event,
		e.PrimaryUserID,
		e.SecondaryUserID,
		e.Provider,
		e.Email,
	)
	if err != nil {
		logger.Error("failed to record linking audit entry", map[string]any{
			"event": e.Event,
			"error": err.Error(),
		})
	}
}

// NopRecorder is used when no relational database is configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) {}

// Package audit provides the append-only audit sink. Every territory mutation
// and assignment transition records an entry here. Audit writes are
// best-effort: a failed write is surfaced as a warning, never as the failure
// of the operation being audited.
package audit

import (
	"context"
	"encoding/json"
	"errors"

	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder writes audit entries. A nil Recorder (or one without a pool) is
// safe to call and records nothing; tests rely on this.
type Recorder struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// New creates a Recorder backed by the given pool.
func New(pool *pgxpool.Pool, log *logger.Logger) *Recorder {
	return &Recorder{pool: pool, log: log}
}

// Record appends one audit entry. Marshal or insert failures are logged as
// warnings and swallowed.
func (r *Recorder) Record(ctx context.Context, event string, actorID *uuid.UUID, details map[string]interface{}) {
	if r == nil || r.pool == nil {
		return
	}

	payload, err := json.Marshal(details)
	if err != nil {
		r.warn(event, err)
		return
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_log (event, actor_id, details) VALUES ($1, $2, $3)`,
		event, actorID, payload,
	)
	if err != nil {
		r.warn(event, err)
	}
}

func (r *Recorder) warn(event string, err error) {
	if r.log != nil {
		r.log.AuditWriteFailed(event, err)
	}
}

// Entry is one audit log row.
type Entry struct {
	ID      int64
	Event   string
	ActorID *uuid.UUID
	Details json.RawMessage
}

// ListRecent returns the most recent audit entries, newest first.
func (r *Recorder) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("audit recorder not configured")
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, event, actor_id, details FROM audit_log ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Event, &e.ActorID, &e.Details); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

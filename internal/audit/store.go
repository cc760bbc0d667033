// Package audit records job outcomes in the audit_log table.
package audit

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aatumaykin/cmsjobs/internal/db"
)

// Event names stored in audit_log.event.
const (
	EventExecuted = "executed"
	EventFailed   = "failed"
)

// Entry is one audit row.
type Entry struct {
	ID         int64
	Job        string
	Event      string
	Detail     string
	OccurredAt time.Time
}

// Store persists audit entries.
type Store struct {
	db *db.RetryDB
}

// NewStore creates a store.
func NewStore(conn *db.RetryDB) *Store {
	return &Store{db: conn}
}

// Add inserts e and sets its ID.
func (s *Store) Add(ctx context.Context, e *Entry) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (job, event, detail, occurred_at) VALUES (?, ?, ?, ?)`,
		e.Job, e.Event, e.Detail, e.OccurredAt.UnixMilli())
	if err != nil {
		return errors.Wrapf(err, "insert audit entry for %s", e.Job)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "last insert id")
	}
	e.ID = id
	return nil
}

// Prune deletes entries older than before and returns how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_log WHERE occurred_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "prune audit log")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return n, nil
}

// Recent returns up to limit entries, newest first. An empty job matches all.
func (s *Store) Recent(ctx context.Context, job string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job, event, detail, occurred_at FROM audit_log
		WHERE ? = '' OR job = ?
		ORDER BY occurred_at DESC, id DESC LIMIT ?`, job, job, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query audit log")
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var occurred int64
		if err := rows.Scan(&e.ID, &e.Job, &e.Event, &e.Detail, &occurred); err != nil {
			return nil, errors.Wrap(err, "scan audit entry")
		}
		e.OccurredAt = time.UnixMilli(occurred)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate audit log")
	}
	return out, nil
}

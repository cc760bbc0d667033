// Package serverregistration tracks the servers sharing one database and
// elects which of them schedules background work.
package serverregistration

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aatumaykin/cmsjobs/internal/db"
)

// ErrNotFound is returned when no registration exists for an identity.
var ErrNotFound = errors.New("server registration not found")

// Registration is one server's row.
type Registration struct {
	Identity     string
	Address      string
	IsActive     bool
	RegisteredAt time.Time
	LastTouched  time.Time
}

// Store persists server registrations.
type Store struct {
	db *db.RetryDB
}

// NewStore creates a store.
func NewStore(conn *db.RetryDB) *Store {
	return &Store{db: conn}
}

// Touch creates the registration for identity or refreshes its timestamp
// and reactivates it.
func (s *Store) Touch(ctx context.Context, identity, address string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO server_registration (identity, address, is_active, registered_at, last_touched)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			address = excluded.address,
			is_active = 1,
			registered_at = CASE WHEN server_registration.is_active = 1
				THEN server_registration.registered_at ELSE excluded.registered_at END,
			last_touched = excluded.last_touched`,
		identity, address, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return errors.Wrapf(err, "touch server %s", identity)
	}
	return nil
}

// DeactivateStale marks registrations not touched since before as inactive
// and returns how many changed.
func (s *Store) DeactivateStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE server_registration SET is_active = 0 WHERE is_active = 1 AND last_touched < ?`,
		before.UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "deactivate stale servers")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return n, nil
}

// Deactivate marks a single registration inactive.
func (s *Store) Deactivate(ctx context.Context, identity string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE server_registration SET is_active = 0 WHERE identity = ?`, identity)
	if err != nil {
		return errors.Wrapf(err, "deactivate server %s", identity)
	}
	return nil
}

// Get returns the registration for identity.
func (s *Store) Get(ctx context.Context, identity string) (*Registration, error) {
	var r Registration
	err := s.db.QueryRow(ctx, func(row *sql.Row) error {
		return scanRegistration(row, &r)
	}, `SELECT identity, address, is_active, registered_at, last_touched
		FROM server_registration WHERE identity = ?`, identity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithDetailf(ErrNotFound, "identity %s", identity)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetActive returns active registrations, oldest first.
func (s *Store) GetActive(ctx context.Context) ([]*Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, address, is_active, registered_at, last_touched
		FROM server_registration WHERE is_active = 1
		ORDER BY registered_at, identity`)
	if err != nil {
		return nil, errors.Wrap(err, "query active servers")
	}
	defer rows.Close()

	var out []*Registration
	for rows.Next() {
		var r Registration
		if err := scanRegistration(rows, &r); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate active servers")
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row scanner, r *Registration) error {
	var active int
	var registered, touched int64
	if err := row.Scan(&r.Identity, &r.Address, &active, &registered, &touched); err != nil {
		return err
	}
	r.IsActive = active == 1
	r.RegisteredAt = time.UnixMilli(registered)
	r.LastTouched = time.UnixMilli(touched)
	return nil
}

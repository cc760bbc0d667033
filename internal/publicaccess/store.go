package publicaccess

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/aatumaykin/cmsjobs/internal/db"
)

// Store persists public access entries.
type Store struct {
	db *db.RetryDB
}

// NewStore creates a store.
func NewStore(conn *db.RetryDB) *Store {
	return &Store{db: conn}
}

// GetAll returns every entry ordered by protected node id.
func (s *Store) GetAll(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, protected_node_id, login_node_id, no_access_node_id, rules, created_at, updated_at
		FROM public_access ORDER BY protected_node_id`)
	if err != nil {
		return nil, errors.Wrap(err, "query public access")
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate public access")
	}
	return entries, nil
}

// GetByNode returns the entry protecting exactly nodeID.
func (s *Store) GetByNode(ctx context.Context, nodeID int) (*Entry, error) {
	var e *Entry
	err := s.db.QueryRow(ctx, func(row *sql.Row) error {
		var err error
		e, err = scanEntry(row)
		return err
	}, `SELECT key, protected_node_id, login_node_id, no_access_node_id, rules, created_at, updated_at
		FROM public_access WHERE protected_node_id = ?`, nodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithDetailf(ErrNotFound, "node %d", nodeID)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Save inserts or replaces the entry for e.ProtectedNodeID.
func (s *Store) Save(ctx context.Context, e *Entry) error {
	if e.Key == uuid.Nil {
		e.Key = uuid.New()
	}
	rules, err := json.Marshal(e.Rules)
	if err != nil {
		return errors.Wrap(err, "encode rules")
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO public_access (key, protected_node_id, login_node_id, no_access_node_id, rules, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(protected_node_id) DO UPDATE SET
			login_node_id = excluded.login_node_id,
			no_access_node_id = excluded.no_access_node_id,
			rules = excluded.rules,
			updated_at = excluded.updated_at`,
		e.Key.String(), e.ProtectedNodeID, e.LoginNodeID, e.NoAccessNodeID, string(rules),
		e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli())
	if err != nil {
		return errors.Wrapf(err, "save public access for node %d", e.ProtectedNodeID)
	}
	return nil
}

// DeleteByNode removes the entry protecting nodeID.
func (s *Store) DeleteByNode(ctx context.Context, nodeID int) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM public_access WHERE protected_node_id = ?", nodeID)
	if err != nil {
		return errors.Wrapf(err, "delete public access for node %d", nodeID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.WithDetailf(ErrNotFound, "node %d", nodeID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                Entry
		key, rules       string
		created, updated int64
	)
	if err := row.Scan(&key, &e.ProtectedNodeID, &e.LoginNodeID, &e.NoAccessNodeID, &rules, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scan public access")
	}
	var err error
	if e.Key, err = uuid.Parse(key); err != nil {
		return nil, errors.Wrap(err, "parse public access key")
	}
	if err := json.Unmarshal([]byte(rules), &e.Rules); err != nil {
		return nil, errors.Wrap(err, "decode rules")
	}
	e.CreatedAt = time.UnixMilli(created)
	e.UpdatedAt = time.UnixMilli(updated)
	return &e, nil
}

package content

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/aatumaykin/cmsjobs/internal/db"
)

const selectColumns = `id, key, parent_id, level, path, name, content_type_id, content_type_alias,
	published, trashed, sort_order, updated_at`

// Store persists content in sqlite.
type Store struct {
	db *db.RetryDB
}

// NewStore creates a content store.
func NewStore(conn *db.RetryDB) *Store {
	return &Store{db: conn}
}

// Get returns one item or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int) (*Content, error) {
	items, err := s.GetMany(ctx, []int{id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.WithDetailf(ErrNotFound, "id %d", id)
	}
	return items[0], nil
}

// GetMany returns the items that exist among ids, ordered by id.
func (s *Store) GetMany(ctx context.Context, ids []int) ([]*Content, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := "SELECT " + selectColumns + " FROM content WHERE id IN (" + placeholders + ") ORDER BY id"
	return s.query(ctx, query, args...)
}

// GetRoots returns the top-level items ordered by sort order.
func (s *Store) GetRoots(ctx context.Context) ([]*Content, error) {
	return s.query(ctx, "SELECT "+selectColumns+" FROM content WHERE parent_id = ? ORDER BY sort_order, id", RootID)
}

// GetPagedDescendants returns one page of the descendants of id, ordered by
// level then sort order, together with the total number of descendants.
func (s *Store) GetPagedDescendants(ctx context.Context, id int, pageIndex, pageSize int) ([]*Content, int64, error) {
	var path string
	err := s.db.QueryRow(ctx, func(row *sql.Row) error {
		return row.Scan(&path)
	}, "SELECT path FROM content WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, errors.WithDetailf(ErrNotFound, "id %d", id)
	}
	if err != nil {
		return nil, 0, errors.Wrap(err, "load path")
	}

	prefix := path + ",%"
	var total int64
	err = s.db.QueryRow(ctx, func(row *sql.Row) error {
		return row.Scan(&total)
	}, "SELECT COUNT(*) FROM content WHERE path LIKE ?", prefix)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count descendants")
	}

	items, err := s.query(ctx,
		"SELECT "+selectColumns+" FROM content WHERE path LIKE ? ORDER BY level, sort_order, id LIMIT ? OFFSET ?",
		prefix, pageSize, pageIndex*pageSize)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetPagedOfType returns one page of items of a content type and the total.
func (s *Store) GetPagedOfType(ctx context.Context, contentTypeID int, pageIndex, pageSize int) ([]*Content, int64, error) {
	var total int64
	err := s.db.QueryRow(ctx, func(row *sql.Row) error {
		return row.Scan(&total)
	}, "SELECT COUNT(*) FROM content WHERE content_type_id = ?", contentTypeID)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count content of type")
	}

	items, err := s.query(ctx,
		"SELECT "+selectColumns+" FROM content WHERE content_type_id = ? ORDER BY id LIMIT ? OFFSET ?",
		contentTypeID, pageSize, pageIndex*pageSize)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Save inserts or updates c. Level and Path are derived from the parent;
// an ID of zero gets the next free id and a nil Key a fresh one.
func (s *Store) Save(ctx context.Context, c *Content) error {
	if c.ParentID == 0 {
		c.ParentID = RootID
	}
	if c.Key == uuid.Nil {
		c.Key = uuid.New()
	}
	now := time.Now()

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if c.ID == 0 {
			if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 999) + 1 FROM content").Scan(&c.ID); err != nil {
				return errors.Wrap(err, "allocate id")
			}
		}

		var parentPath []int
		if c.ParentID != RootID {
			var raw string
			err := tx.QueryRowContext(ctx, "SELECT path FROM content WHERE id = ?", c.ParentID).Scan(&raw)
			if errors.Is(err, sql.ErrNoRows) {
				return errors.WithDetailf(ErrNotFound, "parent %d", c.ParentID)
			}
			if err != nil {
				return errors.Wrap(err, "load parent path")
			}
			if parentPath, err = parsePath(raw); err != nil {
				return err
			}
		}
		c.Path = append(parentPath, c.ID)
		c.Level = len(c.Path)
		c.UpdatedAt = now

		var oldPath string
		err := tx.QueryRowContext(ctx, "SELECT path FROM content WHERE id = ?", c.ID).Scan(&oldPath)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return errors.Wrap(err, "load current path")
		}
		newPath := formatPath(c.Path)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO content (id, key, parent_id, level, path, name, content_type_id, content_type_alias,
				published, trashed, sort_order, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				key = excluded.key,
				parent_id = excluded.parent_id,
				level = excluded.level,
				path = excluded.path,
				name = excluded.name,
				content_type_id = excluded.content_type_id,
				content_type_alias = excluded.content_type_alias,
				published = excluded.published,
				trashed = excluded.trashed,
				sort_order = excluded.sort_order,
				updated_at = excluded.updated_at`,
			c.ID, c.Key.String(), c.ParentID, c.Level, newPath, c.Name, c.ContentTypeID,
			c.ContentTypeAlias, c.Published, c.Trashed, c.SortOrder, now.UnixMilli())
		if err != nil {
			return errors.Wrapf(err, "save content %d", c.ID)
		}

		// A move rewrites the paths of the whole branch.
		if oldPath != "" && oldPath != newPath {
			levelDelta := c.Level - (strings.Count(oldPath, ","))
			_, err := tx.ExecContext(ctx,
				"UPDATE content SET path = ? || substr(path, ?), level = level + ? WHERE path LIKE ?",
				newPath, len(oldPath)+1, levelDelta, oldPath+",%")
			if err != nil {
				return errors.Wrap(err, "move branch")
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM content_culture WHERE content_id = ?", c.ID); err != nil {
			return errors.Wrap(err, "clear cultures")
		}
		for _, culture := range c.Cultures {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO content_culture (content_id, culture) VALUES (?, ?)", c.ID, culture); err != nil {
				return errors.Wrapf(err, "save culture %s", culture)
			}
		}
		return nil
	})
}

// SetTrashed flags id and all of its descendants as trashed or restored.
func (s *Store) SetTrashed(ctx context.Context, id int, trashed bool) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE content SET trashed = ?, updated_at = ? WHERE id = ? OR path LIKE ?",
		trashed, time.Now().UnixMilli(), id, formatPath(item.Path)+",%")
	if err != nil {
		return errors.Wrapf(err, "trash content %d", id)
	}
	return nil
}

// SetContentTypeAlias renames the alias on every item of a content type.
func (s *Store) SetContentTypeAlias(ctx context.Context, contentTypeID int, alias string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE content SET content_type_alias = ?, updated_at = ? WHERE content_type_id = ?",
		alias, time.Now().UnixMilli(), contentTypeID)
	if err != nil {
		return 0, errors.Wrapf(err, "rename content type %d", contentTypeID)
	}
	return res.RowsAffected()
}

// Delete removes id and its descendants and returns the removed ids.
func (s *Store) Delete(ctx context.Context, id int) ([]int, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var removed []int
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		removed = removed[:0]
		rows, err := tx.QueryContext(ctx,
			"SELECT id FROM content WHERE id = ? OR path LIKE ? ORDER BY level DESC", id, formatPath(item.Path)+",%")
		if err != nil {
			return errors.Wrap(err, "list branch")
		}
		for rows.Next() {
			var rid int
			if err := rows.Scan(&rid); err != nil {
				rows.Close()
				return errors.Wrap(err, "scan id")
			}
			removed = append(removed, rid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return errors.Wrap(err, "list branch")
		}

		for _, rid := range removed {
			if _, err := tx.ExecContext(ctx, "DELETE FROM content WHERE id = ?", rid); err != nil {
				return errors.Wrapf(err, "delete content %d", rid)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Content, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query content")
	}
	defer rows.Close()

	var items []*Content
	for rows.Next() {
		var (
			c         Content
			key, path string
			updatedAt int64
		)
		if err := rows.Scan(&c.ID, &key, &c.ParentID, &c.Level, &path, &c.Name, &c.ContentTypeID,
			&c.ContentTypeAlias, &c.Published, &c.Trashed, &c.SortOrder, &updatedAt); err != nil {
			return nil, errors.Wrap(err, "scan content")
		}
		if c.Key, err = uuid.Parse(key); err != nil {
			return nil, errors.Wrapf(err, "parse key of content %d", c.ID)
		}
		if c.Path, err = parsePath(path); err != nil {
			return nil, err
		}
		c.UpdatedAt = time.UnixMilli(updatedAt)
		items = append(items, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate content")
	}

	if err := s.loadCultures(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) loadCultures(ctx context.Context, items []*Content) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[int]*Content, len(items))
	args := make([]any, 0, len(items))
	for _, c := range items {
		byID[c.ID] = c
		args = append(args, c.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")

	rows, err := s.db.QueryContext(ctx,
		"SELECT content_id, culture FROM content_culture WHERE content_id IN ("+placeholders+") ORDER BY content_id, culture",
		args...)
	if err != nil {
		return errors.Wrap(err, "query cultures")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      int
			culture string
		)
		if err := rows.Scan(&id, &culture); err != nil {
			return errors.Wrap(err, "scan culture")
		}
		if c, ok := byID[id]; ok {
			c.Cultures = append(c.Cultures, culture)
		}
	}
	return errors.Wrap(rows.Err(), "iterate cultures")
}

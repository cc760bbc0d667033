// Package db opens the sqlite database, applies schema migrations and wraps
// the connection so transient failures are retried transparently.
package db

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aatumaykin/cmsjobs/internal/logger"
)

// SQLiteBusyTimeoutMS is how long sqlite waits on a locked database before
// returning SQLITE_BUSY.
const SQLiteBusyTimeoutMS = 5000

// Open opens a SQLite database at path with WAL, foreign keys and a busy
// timeout. A nil logger operates silently.
func Open(path string, log *logger.Logger) (*sql.DB, error) {
	if log != nil {
		log.Debug("opening database", logger.Field{Key: "path", Value: path})
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	// Every connection to ":memory:" is a separate database.
	// The pragmas below run on one pooled connection; the DSN covers the rest.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []struct {
		stmt string
		what string
	}{
		{"PRAGMA journal_mode = WAL", "enable WAL mode"},
		{"PRAGMA foreign_keys = ON", "enable foreign keys"},
		{"PRAGMA busy_timeout = 5000", "set busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			db.Close()
			return nil, errors.WithDetail(errors.Wrap(err, p.what), path)
		}
	}

	if log != nil {
		log.Info("database opened",
			logger.Field{Key: "path", Value: path},
			logger.Field{Key: "wal_mode", Value: true},
			logger.Field{Key: "foreign_keys", Value: true})
	}

	return db, nil
}

// dsn adds connection parameters so every pooled connection gets the same
// pragmas, not only the one Open runs them on.
func dsn(path string) string {
	if path == ":memory:" || strings.Contains(path, "?") {
		return path
	}
	return "file:" + path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=" + strconv.Itoa(SQLiteBusyTimeoutMS)
}

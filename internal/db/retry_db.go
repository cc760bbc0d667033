package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/retry"
)

// RetryPolicy decides how often and how fast failed database calls are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// IsTransient classifies errors. Defaults to the package IsTransient.
	IsTransient func(error) bool
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		IsTransient:    IsTransient,
	}
}

// Do runs fn under the policy. Non-transient errors are returned at once.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.do(ctx, nil, fn)
}

func (p RetryPolicy) do(ctx context.Context, log *logger.Logger, fn func(ctx context.Context) error) error {
	classify := p.IsTransient
	if classify == nil {
		classify = IsTransient
	}
	cfg := retry.Config{
		MaxAttempts:    p.MaxAttempts,
		InitialBackoff: p.InitialBackoff,
		MaxBackoff:     p.MaxBackoff,
	}
	if log != nil {
		cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
			log.Warn("transient database error, retrying",
				logger.Field{Key: "attempt", Value: attempt},
				logger.Field{Key: "wait", Value: wait.String()},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}
	return retry.Do(ctx, cfg, classify, func() error { return fn(ctx) })
}

// RetryDB wraps *sql.DB so every call is retried under a RetryPolicy.
type RetryDB struct {
	db     *sql.DB
	policy RetryPolicy
	logger *logger.Logger
}

// NewRetryDB wraps db.
func NewRetryDB(db *sql.DB, policy RetryPolicy, log *logger.Logger) *RetryDB {
	return &RetryDB{
		db:     db,
		policy: policy,
		logger: log.Component("db"),
	}
}

// DB returns the wrapped connection pool.
func (r *RetryDB) DB() *sql.DB {
	return r.db
}

// ExecContext executes a statement that returns no rows.
func (r *RetryDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := r.policy.do(ctx, r.logger, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "exec")
	}
	return result, nil
}

// QueryContext opens a result set. Only opening the query is retried;
// errors during iteration surface through rows.Err.
func (r *RetryDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := r.policy.do(ctx, r.logger, func(ctx context.Context) error {
		res, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rows = res
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	return rows, nil
}

// QueryRow runs a single-row query and hands the row to scan. The query and
// the scan are retried together. sql.ErrNoRows is returned unwrapped.
func (r *RetryDB) QueryRow(ctx context.Context, scan func(row *sql.Row) error, query string, args ...any) error {
	err := r.policy.do(ctx, r.logger, func(ctx context.Context) error {
		return scan(r.db.QueryRowContext(ctx, query, args...))
	})
	if errors.Is(err, sql.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return errors.Wrap(err, "query row")
	}
	return nil
}

// WithTx runs fn inside a transaction. The whole transaction is retried on a
// transient error, so fn must not keep state between attempts.
func (r *RetryDB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	err := r.policy.do(ctx, r.logger, func(ctx context.Context) error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return errors.Wrap(err, "transaction")
	}
	return nil
}

// PingContext verifies the connection is alive.
func (r *RetryDB) PingContext(ctx context.Context) error {
	err := r.policy.do(ctx, r.logger, func(ctx context.Context) error {
		return r.db.PingContext(ctx)
	})
	if err != nil {
		return errors.Wrap(err, "ping")
	}
	return nil
}

// Close closes the underlying pool.
func (r *RetryDB) Close() error {
	return r.db.Close()
}

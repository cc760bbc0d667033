// Package maindom implements the MainDom lease: at most one process per
// database holds it at a time, and only the holder runs MainDom-only jobs.
package maindom

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aatumaykin/cmsjobs/internal/db"
	"github.com/aatumaykin/cmsjobs/internal/logger"
)

const (
	DefaultLease = 30 * time.Second
	DefaultRenew = 10 * time.Second
)

// SQLLock is a lease stored in the single-row main_dom_lock table.
type SQLLock struct {
	db     *db.RetryDB
	holder string
	lease  time.Duration
	renew  time.Duration
	logger *logger.Logger
	now    func() time.Time

	held   atomic.Bool
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSQLLock creates a lock for holder. Non-positive durations fall back to
// the defaults; renew is capped below lease.
func NewSQLLock(conn *db.RetryDB, holder string, lease, renew time.Duration, log *logger.Logger) *SQLLock {
	if lease <= 0 {
		lease = DefaultLease
	}
	if renew <= 0 || renew >= lease {
		renew = lease / 3
	}
	return &SQLLock{
		db:     conn,
		holder: holder,
		lease:  lease,
		renew:  renew,
		logger: log.Component("main_dom"),
		now:    time.Now,
	}
}

// IsMainDom reports whether this process held the lease at the last attempt.
func (l *SQLLock) IsMainDom() bool {
	return l.held.Load()
}

// Holder returns this lock's holder id.
func (l *SQLLock) Holder() string {
	return l.holder
}

// TryAcquire takes or renews the lease. It succeeds when the row is free,
// expired or already ours.
func (l *SQLLock) TryAcquire(ctx context.Context) (bool, error) {
	now := l.now()
	var current string
	err := l.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO main_dom_lock (id, holder, acquired_at, expires_at)
			VALUES (1, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				holder = excluded.holder,
				acquired_at = CASE WHEN main_dom_lock.holder = excluded.holder
					THEN main_dom_lock.acquired_at ELSE excluded.acquired_at END,
				expires_at = excluded.expires_at
			WHERE main_dom_lock.holder = excluded.holder
				OR main_dom_lock.expires_at <= excluded.acquired_at`,
			l.holder, now.UnixMilli(), now.Add(l.lease).UnixMilli())
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT holder FROM main_dom_lock WHERE id = 1`).Scan(&current)
	})
	if err != nil {
		l.setHeld(false, "")
		return false, errors.Wrap(err, "acquire main dom lease")
	}

	acquired := current == l.holder
	l.setHeld(acquired, current)
	return acquired, nil
}

// Release gives up the lease if we hold it.
func (l *SQLLock) Release(ctx context.Context) error {
	l.held.Store(false)
	_, err := l.db.ExecContext(ctx, `DELETE FROM main_dom_lock WHERE id = 1 AND holder = ?`, l.holder)
	if err != nil {
		return errors.Wrap(err, "release main dom lease")
	}
	return nil
}

func (l *SQLLock) setHeld(held bool, current string) {
	was := l.held.Swap(held)
	switch {
	case held && !was:
		l.logger.Info("acquired main dom",
			logger.Field{Key: "holder", Value: l.holder},
			logger.Field{Key: "lease", Value: l.lease.String()})
	case !held && was:
		l.logger.Warn("lost main dom",
			logger.Field{Key: "holder", Value: l.holder},
			logger.Field{Key: "current_holder", Value: current})
	}
}

// Start makes a first acquisition attempt and then renews every renew
// interval until Stop.
func (l *SQLLock) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return nil
	}

	if _, err := l.TryAcquire(ctx); err != nil {
		l.logger.Error("initial main dom acquisition failed", err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(loopCtx)
	return nil
}

func (l *SQLLock) run(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.renew)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.TryAcquire(ctx); err != nil && ctx.Err() == nil {
				l.logger.Error("main dom renewal failed", err)
			}
		}
	}
}

// Stop ends the renewal loop and releases the lease.
func (l *SQLLock) Stop(ctx context.Context) error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return l.Release(ctx)
}

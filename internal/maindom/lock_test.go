package maindom

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cmsjobs/internal/db"
	"github.com/aatumaykin/cmsjobs/internal/logger"
)

func newTestDB(t *testing.T) *db.RetryDB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "maindom.db"), nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background(), conn, nil))
	rdb := db.NewRetryDB(conn, db.DefaultRetryPolicy(), logger.Nop())
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestSQLLock_SingleHolder(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	t0 := time.UnixMilli(1_700_000_000_000)

	a := NewSQLLock(conn, "a", time.Minute, 0, logger.Nop())
	b := NewSQLLock(conn, "b", time.Minute, 0, logger.Nop())
	a.now = func() time.Time { return t0 }
	b.now = func() time.Time { return t0.Add(30 * time.Second) }

	ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, a.IsMainDom())

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, b.IsMainDom())

	// renewal by the holder keeps it
	ok, err = a.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLLock_ExpiredLeaseIsTakenOver(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	t0 := time.UnixMilli(1_700_000_000_000)

	a := NewSQLLock(conn, "a", time.Minute, 0, logger.Nop())
	b := NewSQLLock(conn, "b", time.Minute, 0, logger.Nop())
	a.now = func() time.Time { return t0 }
	b.now = func() time.Time { return t0.Add(2 * time.Minute) }

	_, err := a.TryAcquire(ctx)
	require.NoError(t, err)

	ok, err := b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	a.now = b.now
	ok, err = a.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, a.IsMainDom())
}

func TestSQLLock_StartStopReleases(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)

	a := NewSQLLock(conn, "a", time.Minute, 10*time.Millisecond, logger.Nop())
	require.NoError(t, a.Start(ctx))
	assert.True(t, a.IsMainDom())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, a.IsMainDom())

	require.NoError(t, a.Stop(ctx))
	assert.False(t, a.IsMainDom())

	b := NewSQLLock(conn, "b", time.Minute, 0, logger.Nop())
	ok, err := b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewSQLLock_Defaults(t *testing.T) {
	l := NewSQLLock(nil, "x", 0, 0, logger.Nop())
	assert.Equal(t, DefaultLease, l.lease)
	assert.Equal(t, DefaultLease/3, l.renew)
}

package publicaccess

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cmsjobs/internal/cacherefresh"
	"github.com/aatumaykin/cmsjobs/internal/db"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
)

type counter struct {
	published int
}

func (c *counter) Publish(_ context.Context, n notifications.Notification) error {
	if _, ok := n.(*cacherefresh.PublicAccessCacheRefresherNotification); ok {
		c.published++
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *counter) {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "access.db"), nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background(), conn, nil))
	rdb := db.NewRetryDB(conn, db.DefaultRetryPolicy(), logger.Nop())
	t.Cleanup(func() { rdb.Close() })

	events := &counter{}
	return NewService(NewStore(rdb), events, logger.Nop()), events
}

func TestService_SaveAndGetAll(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, &Entry{
		ProtectedNodeID: 1002,
		LoginNodeID:     1010,
		NoAccessNodeID:  1011,
		Rules:           []Rule{{Type: RuleMemberRole, Value: "subscribers"}},
	}))
	require.NoError(t, svc.Save(ctx, &Entry{ProtectedNodeID: 1001}))

	entries, err := svc.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1001, entries[0].ProtectedNodeID)
	assert.Equal(t, []string{"subscribers"}, entries[1].RoleValues())
	assert.Equal(t, 2, events.published)
}

func TestService_SaveReplacesEntryForNode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, &Entry{ProtectedNodeID: 1002, LoginNodeID: 1}))
	require.NoError(t, svc.Save(ctx, &Entry{ProtectedNodeID: 1002, LoginNodeID: 2}))

	entries, err := svc.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].LoginNodeID)
}

func TestService_Delete(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, &Entry{ProtectedNodeID: 1002}))
	require.NoError(t, svc.Delete(ctx, 1002))
	assert.ErrorIs(t, svc.Delete(ctx, 1002), ErrNotFound)

	entries, err := svc.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 2, events.published)
}

func TestService_IsProtected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Save(ctx, &Entry{ProtectedNodeID: 1001}))
	require.NoError(t, svc.Save(ctx, &Entry{ProtectedNodeID: 1003}))

	entry, ok, err := svc.IsProtected(ctx, []int{1000, 1001, 1003, 1004})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1003, entry.ProtectedNodeID)

	_, ok, err = svc.IsProtected(ctx, []int{1000, 1002})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_SaveRequiresNode(t *testing.T) {
	svc, _ := newTestService(t)
	assert.Error(t, svc.Save(context.Background(), &Entry{}))
}

func TestStore_GetByNode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Save(ctx, &Entry{ProtectedNodeID: 1005, NoAccessNodeID: 7}))

	e, err := svc.store.GetByNode(ctx, 1005)
	require.NoError(t, err)
	assert.Equal(t, 7, e.NoAccessNodeID)
	assert.False(t, e.CreatedAt.IsZero())

	_, err = svc.store.GetByNode(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

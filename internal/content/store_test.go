package content

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cmsjobs/internal/db"
	"github.com/aatumaykin/cmsjobs/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "content.db"), nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background(), conn, nil))
	rdb := db.NewRetryDB(conn, db.DefaultRetryPolicy(), logger.Nop())
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb)
}

// seedTree builds:
//
//	1000 Home
//	├── 1001 About
//	│   └── 1003 Team
//	└── 1002 Members
func seedTree(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	items := []*Content{
		{ID: 1000, Name: "Home", ContentTypeID: 1, ContentTypeAlias: "home", Published: true, Cultures: []string{"en-US", "da-DK"}},
		{ID: 1001, ParentID: 1000, Name: "About", ContentTypeID: 2, ContentTypeAlias: "page", Published: true, SortOrder: 1},
		{ID: 1002, ParentID: 1000, Name: "Members", ContentTypeID: 2, ContentTypeAlias: "page", Published: true, SortOrder: 2},
		{ID: 1003, ParentID: 1001, Name: "Team", ContentTypeID: 3, ContentTypeAlias: "team", Published: true},
	}
	for _, c := range items {
		require.NoError(t, s.Save(ctx, c))
	}
}

func TestStore_SaveDerivesPath(t *testing.T) {
	s := newTestStore(t)
	seedTree(t, s)

	team, err := s.Get(context.Background(), 1003)
	require.NoError(t, err)
	assert.Equal(t, []int{1000, 1001, 1003}, team.Path)
	assert.Equal(t, 3, team.Level)
	assert.Equal(t, []int{1000, 1001}, team.AncestorIDs())
	assert.True(t, team.IsInvariant())

	home, err := s.Get(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, RootID, home.ParentID)
	assert.ElementsMatch(t, []string{"en-US", "da-DK"}, home.Cultures)
}

func TestStore_SaveAllocatesID(t *testing.T) {
	s := newTestStore(t)
	c := &Content{Name: "Fresh", ContentTypeID: 9, ContentTypeAlias: "fresh"}

	require.NoError(t, s.Save(context.Background(), c))
	assert.Equal(t, 1000, c.ID)
	assert.NotEmpty(t, c.Key.String())
}

func TestStore_SaveUnknownParent(t *testing.T) {
	s := newTestStore(t)
	err := s.Save(context.Background(), &Content{ID: 5, ParentID: 42, Name: "Orphan"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetPagedDescendants(t *testing.T) {
	s := newTestStore(t)
	seedTree(t, s)
	ctx := context.Background()

	page, total, err := s.GetPagedDescendants(ctx, 1000, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, 1001, page[0].ID)
	assert.Equal(t, 1002, page[1].ID)

	page, _, err = s.GetPagedDescendants(ctx, 1000, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 1003, page[0].ID)

	_, total, err = s.GetPagedDescendants(ctx, 1003, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestStore_GetPagedOfType(t *testing.T) {
	s := newTestStore(t)
	seedTree(t, s)

	items, total, err := s.GetPagedOfType(context.Background(), 2, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)
}

func TestStore_MoveRewritesBranch(t *testing.T) {
	s := newTestStore(t)
	seedTree(t, s)
	ctx := context.Background()

	about, err := s.Get(ctx, 1001)
	require.NoError(t, err)
	about.ParentID = 1002
	require.NoError(t, s.Save(ctx, about))

	team, err := s.Get(ctx, 1003)
	require.NoError(t, err)
	assert.Equal(t, []int{1000, 1002, 1001, 1003}, team.Path)
	assert.Equal(t, 4, team.Level)
}

func TestStore_SetTrashedMarksBranch(t *testing.T) {
	s := newTestStore(t)
	seedTree(t, s)
	ctx := context.Background()

	require.NoError(t, s.SetTrashed(ctx, 1001, true))

	items, err := s.GetMany(ctx, []int{1001, 1002, 1003})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.True(t, items[0].Trashed)
	assert.False(t, items[1].Trashed)
	assert.True(t, items[2].Trashed)
}

func TestStore_DeleteRemovesBranch(t *testing.T) {
	s := newTestStore(t)
	seedTree(t, s)
	ctx := context.Background()

	removed, err := s.Delete(ctx, 1001)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1001, 1003}, removed)

	roots, err := s.GetRoots(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 1)

	_, total, err := s.GetPagedDescendants(ctx, 1000, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestStore_RenameContentType(t *testing.T) {
	s := newTestStore(t)
	seedTree(t, s)
	ctx := context.Background()

	n, err := s.SetContentTypeAlias(ctx, 2, "landingPage")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	about, err := s.Get(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, "landingPage", about.ContentTypeAlias)
}

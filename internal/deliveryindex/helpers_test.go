package deliveryindex

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cmsjobs/internal/content"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/publicaccess"
	"github.com/aatumaykin/cmsjobs/internal/search"
	"github.com/aatumaykin/cmsjobs/internal/workers"
)

// fakeContent is an in-memory ContentSource.
type fakeContent struct {
	items map[int]*content.Content
}

func newFakeContent() *fakeContent {
	return &fakeContent{items: make(map[int]*content.Content)}
}

// add stores an item under parent, deriving Path and Level.
func (f *fakeContent) add(c *content.Content) *content.Content {
	if c.ParentID == 0 {
		c.ParentID = content.RootID
	}
	var path []int
	if parent, ok := f.items[c.ParentID]; ok {
		path = slices.Clone(parent.Path)
	}
	c.Path = append(path, c.ID)
	c.Level = len(c.Path)
	f.items[c.ID] = c
	return c
}

func (f *fakeContent) Get(_ context.Context, id int) (*content.Content, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, content.ErrNotFound
	}
	return c, nil
}

func (f *fakeContent) GetMany(_ context.Context, ids []int) ([]*content.Content, error) {
	var out []*content.Content
	for _, id := range ids {
		if c, ok := f.items[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContent) GetRoots(_ context.Context) ([]*content.Content, error) {
	return f.filter(func(c *content.Content) bool { return c.ParentID == content.RootID }), nil
}

func (f *fakeContent) GetPagedDescendants(_ context.Context, id int, pageIndex, pageSize int) ([]*content.Content, int64, error) {
	all := f.filter(func(c *content.Content) bool {
		return c.ID != id && slices.Contains(c.Path, id)
	})
	return page(all, pageIndex, pageSize), int64(len(all)), nil
}

func (f *fakeContent) GetPagedOfType(_ context.Context, contentTypeID int, pageIndex, pageSize int) ([]*content.Content, int64, error) {
	all := f.filter(func(c *content.Content) bool { return c.ContentTypeID == contentTypeID })
	return page(all, pageIndex, pageSize), int64(len(all)), nil
}

func (f *fakeContent) filter(keep func(c *content.Content) bool) []*content.Content {
	var out []*content.Content
	for _, c := range f.items {
		if keep(c) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b *content.Content) int {
		return cmp.Or(cmp.Compare(a.Level, b.Level), cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func page(all []*content.Content, pageIndex, pageSize int) []*content.Content {
	start := min(pageIndex*pageSize, len(all))
	end := min(start+pageSize, len(all))
	return all[start:end]
}

// fakeAccess is an in-memory PublicAccessSource.
type fakeAccess struct {
	entries []*publicaccess.Entry
	loads   atomic.Int32
}

func (f *fakeAccess) GetAll(context.Context) ([]*publicaccess.Entry, error) {
	f.loads.Add(1)
	return f.entries, nil
}

func (f *fakeAccess) protect(nodeID int, rules ...publicaccess.Rule) {
	f.entries = append(f.entries, &publicaccess.Entry{ProtectedNodeID: nodeID, Rules: rules})
}

// manualQueue records work items until run is called.
type manualQueue struct {
	mu    sync.Mutex
	items []func(ctx context.Context) error
}

func (q *manualQueue) QueueBackgroundWorkItem(fn func(ctx context.Context) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, fn)
	return nil
}

func (q *manualQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *manualQueue) run(t *testing.T) {
	t.Helper()
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	for _, fn := range items {
		require.NoError(t, fn(context.Background()))
	}
}

// fullQueue rejects every work item.
type fullQueue struct{}

func (fullQueue) QueueBackgroundWorkItem(func(ctx context.Context) error) error {
	return workers.ErrQueueFull
}

// countingIndex records the queries sent to the wrapped index.
type countingIndex struct {
	search.Index
	mu      sync.Mutex
	queries []search.FieldQuery
	takes   []int
	indexed int
	deleted []string
}

func (c *countingIndex) Search(ctx context.Context, q search.FieldQuery, skip, take int) (search.Results, error) {
	c.mu.Lock()
	c.queries = append(c.queries, q)
	c.takes = append(c.takes, take)
	c.mu.Unlock()
	return c.Index.Search(ctx, q, skip, take)
}

func (c *countingIndex) IndexItems(ctx context.Context, items []search.ValueSet) error {
	c.mu.Lock()
	c.indexed += len(items)
	c.mu.Unlock()
	return c.Index.IndexItems(ctx, items)
}

func (c *countingIndex) DeleteFromIndex(ctx context.Context, ids []string) error {
	c.mu.Lock()
	c.deleted = append(c.deleted, ids...)
	c.mu.Unlock()
	return c.Index.DeleteFromIndex(ctx, ids)
}

// idQueries counts the index id lookups by content id.
func (c *countingIndex) idQueries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, q := range c.queries {
		if q.Field == FieldID {
			n++
		}
	}
	return n
}

func (c *countingIndex) resetCounters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = nil
	c.takes = nil
	c.indexed = 0
	c.deleted = nil
}

// fixture wires every component against in-memory fakes.
type fixture struct {
	content  *fakeContent
	access   *fakeAccess
	settings *SettingsHolder
	index    *countingIndex
	helper   *Helper
	builder  *ValueSetBuilder
	indexer  *Indexer
	queue    *manualQueue
	pa       *PublicAccessHandler
	cc       *ContentChangesHandler
	ct       *ContentTypeChangesHandler
}

func newFixture(t *testing.T, memberAuth bool) *fixture {
	t.Helper()
	mem, err := search.NewMemIndex(IndexName, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })

	f := &fixture{
		content:  newFakeContent(),
		access:   &fakeAccess{},
		settings: NewSettingsHolder(Settings{MemberAuthorizationEnabled: memberAuth}),
		index:    &countingIndex{Index: mem},
		queue:    &manualQueue{},
	}
	log := logger.Nop()
	f.helper = NewHelper(f.index, f.content)
	f.builder = NewValueSetBuilder(f.access, f.settings)
	f.indexer = NewIndexer(f.index, f.builder, f.helper, log)
	f.pa = NewPublicAccessHandler(f.index, f.helper, f.indexer, f.content, f.access, f.settings, f.queue, log)
	f.cc = NewContentChangesHandler(f.helper, f.indexer, f.content, f.queue, log)
	f.ct = NewContentTypeChangesHandler(f.helper, f.indexer, f.content, f.queue, log)
	return f
}

// seedSite builds:
//
//	1000 Home (en-US, da-DK)
//	├── 1001 Members
//	│   ├── 1003 Profile
//	│   └── 1004 Drafts (unpublished)
//	│       └── 1005 Draft child
//	└── 1002 About
func (f *fixture) seedSite() {
	f.content.add(&content.Content{ID: 1000, Name: "Home", ContentTypeID: 1, ContentTypeAlias: "home", Published: true, Cultures: []string{"en-US", "da-DK"}})
	f.content.add(&content.Content{ID: 1001, ParentID: 1000, Name: "Members", ContentTypeID: 2, ContentTypeAlias: "page", Published: true, SortOrder: 1})
	f.content.add(&content.Content{ID: 1002, ParentID: 1000, Name: "About", ContentTypeID: 2, ContentTypeAlias: "page", Published: true, SortOrder: 2})
	f.content.add(&content.Content{ID: 1003, ParentID: 1001, Name: "Profile", ContentTypeID: 3, ContentTypeAlias: "profile", Published: true})
	f.content.add(&content.Content{ID: 1004, ParentID: 1001, Name: "Drafts", ContentTypeID: 2, ContentTypeAlias: "page", SortOrder: 1})
	f.content.add(&content.Content{ID: 1005, ParentID: 1004, Name: "Draft child", ContentTypeID: 2, ContentTypeAlias: "page", Published: true})
}

func (f *fixture) rebuild(t *testing.T) {
	t.Helper()
	require.NoError(t, f.indexer.Rebuild(context.Background(), f.content))
	f.index.resetCounters()
}

func (f *fixture) docs(t *testing.T, q search.FieldQuery) []string {
	t.Helper()
	res, err := f.index.Index.Search(context.Background(), q, 0, 1000)
	require.NoError(t, err)
	return res.IDs()
}

func (f *fixture) doc(t *testing.T, itemID string) (search.Hit, bool) {
	t.Helper()
	res, err := f.index.Index.Search(context.Background(), search.FieldQuery{Field: FieldItemID, Values: []string{itemID}}, 0, 1)
	require.NoError(t, err)
	if len(res.Hits) == 0 {
		return search.Hit{}, false
	}
	return res.Hits[0], true
}

package search

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cmsjobs/internal/logger"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewMemIndex("test", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func doc(id, protected string, ancestors ...string) ValueSet {
	return ValueSet{
		ID:       id,
		Category: "content",
		Values: map[string][]string{
			"itemId":    {id},
			"protected": {protected},
			"ancestors": ancestors,
		},
	}
}

func TestBleveIndex_IndexAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.IndexItems(ctx, []ValueSet{
		doc("1001|", "y", "1000"),
		doc("1002|en-US", "n", "1000"),
		doc("1003|", "y", "1000", "1001"),
	}))

	res, err := idx.Search(ctx, FieldQuery{Field: "protected", Values: []string{"y"}}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)
	assert.Equal(t, []string{"1001|", "1003|"}, res.IDs())

	hit := res.Hits[1]
	assert.Equal(t, []string{"1000", "1001"}, hit.Values["ancestors"])
	assert.Equal(t, []string{"content"}, hit.Values[CategoryField])

	res, err = idx.Search(ctx, FieldQuery{Field: "ancestors", Values: []string{"1001"}}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"1003|"}, res.IDs())
}

func TestBleveIndex_DisjunctionAndPaging(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	var items []ValueSet
	for i := range 12 {
		items = append(items, doc(fmt.Sprintf("%d|", 2000+i), "n"))
	}
	require.NoError(t, idx.IndexItems(ctx, items))

	q := FieldQuery{Field: "itemId", Values: []string{"2001|", "2005|", "2011|", "9999|"}}
	res, err := idx.Search(ctx, q, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)

	var all []string
	for skip := 0; ; skip += 5 {
		page, err := idx.Search(ctx, FieldQuery{}, skip, 5)
		require.NoError(t, err)
		assert.EqualValues(t, 12, page.Total)
		all = append(all, page.IDs()...)
		if len(page.Hits) < 5 {
			break
		}
	}
	assert.Len(t, all, 12)
	assert.Equal(t, "2000|", all[0])
	assert.Equal(t, "2011|", all[11])
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.IndexItems(ctx, []ValueSet{doc("1|", "y"), doc("2|", "n")}))
	require.NoError(t, idx.DeleteFromIndex(ctx, []string{"1|", "missing"}))

	n, err := idx.DocCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestBleveIndex_RejectsEmptyID(t *testing.T) {
	idx := newTestIndex(t)
	assert.Error(t, idx.IndexItems(context.Background(), []ValueSet{{Values: map[string][]string{"a": {"b"}}}}))
}

func TestOpenIndex_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delivery.bleve")
	ctx := context.Background()

	idx, err := OpenIndex("delivery", path, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, idx.IndexItems(ctx, []ValueSet{doc("1|", "n")}))
	require.NoError(t, idx.Close())

	idx, err = OpenIndex("delivery", path, logger.Nop())
	require.NoError(t, err)
	defer idx.Close()

	n, err := idx.DocCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestBatch(t *testing.T) {
	ids := []int{1, 2, 3, 4, 5}
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Batch(ids, 2))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, Batch(ids, 0))
	assert.Empty(t, Batch([]int{}, 50))
}

package deliveryindex

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cmsjobs/internal/content"
	"github.com/aatumaykin/cmsjobs/internal/search"
)

func TestHelper_PagesProtectedSearch(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	var sets []search.ValueSet
	for i := range 1203 {
		id := 5000 + i
		sets = append(sets, search.ValueSet{ID: ItemID(id, ""), Values: map[string][]string{
			FieldID:        {fmt.Sprint(id)},
			FieldItemID:    {ItemID(id, "")},
			FieldProtected: {ProtectedYes},
		}})
	}
	require.NoError(t, f.index.IndexItems(ctx, sets))
	f.index.resetCounters()

	ids, err := f.helper.FindProtectedIndexIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 1203)
	assert.Equal(t, []int{SearchPageSize, SearchPageSize, SearchPageSize}, f.index.takes)

	contentIDs, err := f.helper.FindProtectedContentIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, contentIDs, 1203)
	assert.Equal(t, 5000, contentIDs[0])
}

func TestHelper_BatchesIDLookups(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	var sets []search.ValueSet
	var contentIDs []int
	for i := range 120 {
		id := 7000 + i
		contentIDs = append(contentIDs, id)
		for _, culture := range []string{"en-US", "da-DK"} {
			sets = append(sets, search.ValueSet{ID: ItemID(id, culture), Values: map[string][]string{
				FieldID:     {fmt.Sprint(id)},
				FieldItemID: {ItemID(id, culture)},
			}})
		}
	}
	require.NoError(t, f.index.IndexItems(ctx, sets))
	f.index.resetCounters()

	ids, err := f.helper.FindIndexIDsForContentIDs(ctx, contentIDs)
	require.NoError(t, err)
	assert.Len(t, ids, 240)

	require.Len(t, f.index.queries, 3)
	for _, q := range f.index.queries {
		assert.Equal(t, FieldID, q.Field)
		assert.LessOrEqual(t, len(q.Values), IDBatchSize)
	}
}

func TestHelper_EnumerateApplicableDescendants(t *testing.T) {
	f := newFixture(t, true)
	f.seedSite()

	var seen []int
	err := f.helper.EnumerateApplicableDescendants(context.Background(), f.content.items[1000], func(items []*content.Content) error {
		for _, c := range items {
			seen = append(seen, c.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1001, 1002, 1003}, seen)
}

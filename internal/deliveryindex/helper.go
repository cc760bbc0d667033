package deliveryindex

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/aatumaykin/cmsjobs/internal/content"
	"github.com/aatumaykin/cmsjobs/internal/search"
)

const (
	// SearchPageSize is the page size of every index scan.
	SearchPageSize = 500
	// IDBatchSize bounds the number of OR terms in one id query.
	IDBatchSize = 50
	// descendantPageSize is the page size when walking the content tree.
	descendantPageSize = 1000
)

// Helper runs the paged and batched index lookups the handlers rely on.
type Helper struct {
	index   search.Index
	content ContentSource
}

// NewHelper creates a helper.
func NewHelper(index search.Index, source ContentSource) *Helper {
	return &Helper{index: index, content: source}
}

// ExecuteSearch pages through every hit of q and hands each page to fn.
func (h *Helper) ExecuteSearch(ctx context.Context, q search.FieldQuery, fn func(hits []search.Hit) error) error {
	for skip := 0; ; skip += SearchPageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := h.index.Search(ctx, q, skip, SearchPageSize)
		if err != nil {
			return err
		}
		if len(res.Hits) > 0 {
			if err := fn(res.Hits); err != nil {
				return err
			}
		}
		if len(res.Hits) < SearchPageSize || int64(skip+len(res.Hits)) >= res.Total {
			return nil
		}
	}
}

// FindIndexIDsForContentIDs returns the index ids of every culture of the
// given content items. Ids are queried in batches of IDBatchSize.
func (h *Helper) FindIndexIDsForContentIDs(ctx context.Context, contentIDs []int) ([]string, error) {
	var ids []string
	for _, batch := range search.Batch(contentIDs, IDBatchSize) {
		values := make([]string, 0, len(batch))
		for _, id := range batch {
			values = append(values, strconv.Itoa(id))
		}
		err := h.ExecuteSearch(ctx, search.FieldQuery{Field: FieldID, Values: values}, func(hits []search.Hit) error {
			for _, hit := range hits {
				ids = append(ids, hit.ID)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("find index ids: %w", err)
		}
	}
	return ids, nil
}

// FindIndexIDsForDescendants returns the index ids of every document below
// the given content items, using the stored ancestors field.
func (h *Helper) FindIndexIDsForDescendants(ctx context.Context, contentIDs []int) ([]string, error) {
	var ids []string
	for _, batch := range search.Batch(contentIDs, IDBatchSize) {
		values := make([]string, 0, len(batch))
		for _, id := range batch {
			values = append(values, strconv.Itoa(id))
		}
		err := h.ExecuteSearch(ctx, search.FieldQuery{Field: FieldAncestors, Values: values}, func(hits []search.Hit) error {
			for _, hit := range hits {
				ids = append(ids, hit.ID)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("find descendant index ids: %w", err)
		}
	}
	return ids, nil
}

// FindIndexIDsForContentType returns the index ids of every document of a
// content type.
func (h *Helper) FindIndexIDsForContentType(ctx context.Context, contentTypeID int) ([]string, error) {
	return h.collectIDs(ctx, search.FieldQuery{Field: FieldContentTypeID, Values: []string{strconv.Itoa(contentTypeID)}})
}

// FindProtectedIndexIDs returns the index ids of every protected document.
func (h *Helper) FindProtectedIndexIDs(ctx context.Context) ([]string, error) {
	return h.collectIDs(ctx, search.FieldQuery{Field: FieldProtected, Values: []string{ProtectedYes}})
}

// FindAllIndexIDs returns the id of every document in the index.
func (h *Helper) FindAllIndexIDs(ctx context.Context) ([]string, error) {
	return h.collectIDs(ctx, search.FieldQuery{})
}

// FindProtectedContentIDs returns the distinct content ids of every
// protected document, in ascending order.
func (h *Helper) FindProtectedContentIDs(ctx context.Context) ([]int, error) {
	seen := make(map[int]struct{})
	err := h.ExecuteSearch(ctx, search.FieldQuery{Field: FieldProtected, Values: []string{ProtectedYes}}, func(hits []search.Hit) error {
		for _, hit := range hits {
			id, err := contentIDOf(hit)
			if err != nil {
				return err
			}
			seen[id] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find protected content ids: %w", err)
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// EnumerateApplicableDescendants walks the descendants of root level by
// level and hands fn the ones that belong in the index. A descendant is
// skipped together with its whole branch when it, or anything between it and
// root, is unpublished or trashed.
func (h *Helper) EnumerateApplicableDescendants(ctx context.Context, root *content.Content, fn func(items []*content.Content) error) error {
	excluded := make(map[int]struct{})
	for pageIndex := 0; ; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, total, err := h.content.GetPagedDescendants(ctx, root.ID, pageIndex, descendantPageSize)
		if err != nil {
			return fmt.Errorf("load descendants of %d: %w", root.ID, err)
		}

		applicable := make([]*content.Content, 0, len(page))
		for _, c := range page {
			if _, skip := excluded[c.ParentID]; skip || !c.Published || c.Trashed {
				excluded[c.ID] = struct{}{}
				continue
			}
			applicable = append(applicable, c)
		}
		if len(applicable) > 0 {
			if err := fn(applicable); err != nil {
				return err
			}
		}

		if len(page) < descendantPageSize || int64((pageIndex+1)*descendantPageSize) >= total {
			return nil
		}
	}
}

func (h *Helper) collectIDs(ctx context.Context, q search.FieldQuery) ([]string, error) {
	var ids []string
	err := h.ExecuteSearch(ctx, q, func(hits []search.Hit) error {
		for _, hit := range hits {
			ids = append(ids, hit.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect index ids for %q: %w", q.Field, err)
	}
	return ids, nil
}

func contentIDOf(hit search.Hit) (int, error) {
	if vals := hit.Values[FieldID]; len(vals) > 0 {
		if id, err := strconv.Atoi(vals[0]); err == nil {
			return id, nil
		}
	}
	id, _, err := ParseItemID(hit.ID)
	return id, err
}

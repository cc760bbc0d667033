package deliveryindex

import (
	"context"
	"fmt"

	"github.com/aatumaykin/cmsjobs/internal/content"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/publicaccess"
	"github.com/aatumaykin/cmsjobs/internal/search"
)

// Indexer writes single content items to the index.
type Indexer struct {
	index   search.Index
	builder *ValueSetBuilder
	helper  *Helper
	logger  *logger.Logger
}

// NewIndexer creates an indexer.
func NewIndexer(index search.Index, builder *ValueSetBuilder, helper *Helper, log *logger.Logger) *Indexer {
	return &Indexer{
		index:   index,
		builder: builder,
		helper:  helper,
		logger:  log.Component("delivery_indexer"),
	}
}

// ReIndex rebuilds the documents of c. Trashed content is never indexed and
// returns false without touching the index. Documents of c that the new
// value sets no longer cover, such as a removed culture or an unpublished
// item, are deleted.
func (i *Indexer) ReIndex(ctx context.Context, c *content.Content) (bool, error) {
	if c == nil || c.Trashed {
		return false, nil
	}
	lookup, err := i.builder.Lookup(ctx)
	if err != nil {
		return false, err
	}
	n, err := i.reindex(ctx, lookup, []*content.Content{c})
	return n > 0, err
}

// reindex is ReIndex for a batch of items sharing one public access
// snapshot and one index id lookup. It returns the number of items written.
func (i *Indexer) reindex(ctx context.Context, lookup *publicaccess.Lookup, items []*content.Content) (int, error) {
	live := make([]*content.Content, 0, len(items))
	ids := make([]int, 0, len(items))
	for _, c := range items {
		if c == nil || c.Trashed {
			continue
		}
		live = append(live, c)
		ids = append(ids, c.ID)
	}
	if len(live) == 0 {
		return 0, nil
	}

	sets := i.builder.BuildWith(lookup, live...)

	existing, err := i.helper.FindIndexIDsForContentIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	keep := make(map[string]struct{}, len(sets))
	for _, s := range sets {
		keep[s.ID] = struct{}{}
	}
	var stale []string
	for _, id := range existing {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}

	if err := i.index.DeleteFromIndex(ctx, stale); err != nil {
		return 0, fmt.Errorf("remove stale documents: %w", err)
	}
	if err := i.index.IndexItems(ctx, sets); err != nil {
		return 0, fmt.Errorf("index %d content items: %w", len(live), err)
	}

	i.logger.Debug("content reindexed",
		logger.Field{Key: "items", Value: len(live)},
		logger.Field{Key: "documents", Value: len(sets)},
		logger.Field{Key: "removed", Value: len(stale)})
	return len(live), nil
}

// ReIndexBranch reindexes root and its applicable descendants. Descendant
// documents of branches that are no longer applicable are removed.
func (i *Indexer) ReIndexBranch(ctx context.Context, root *content.Content) error {
	lookup, err := i.builder.Lookup(ctx)
	if err != nil {
		return err
	}
	return i.reindexBranch(ctx, lookup, root)
}

func (i *Indexer) reindexBranch(ctx context.Context, lookup *publicaccess.Lookup, root *content.Content) error {
	if _, err := i.reindex(ctx, lookup, []*content.Content{root}); err != nil {
		return err
	}

	// Nothing below an unpublished or trashed root belongs in the index.
	applicable := make(map[int]struct{})
	if root.Published && !root.Trashed {
		err := i.helper.EnumerateApplicableDescendants(ctx, root, func(items []*content.Content) error {
			for _, c := range items {
				applicable[c.ID] = struct{}{}
			}
			_, err := i.reindex(ctx, lookup, items)
			return err
		})
		if err != nil {
			return err
		}
	}

	indexed, err := i.helper.FindIndexIDsForDescendants(ctx, []int{root.ID})
	if err != nil {
		return err
	}
	var stale []string
	for _, itemID := range indexed {
		id, _, err := ParseItemID(itemID)
		if err != nil {
			continue
		}
		if _, ok := applicable[id]; !ok {
			stale = append(stale, itemID)
		}
	}
	return i.index.DeleteFromIndex(ctx, stale)
}

// RemoveBranch deletes the documents of contentID and everything below it.
func (i *Indexer) RemoveBranch(ctx context.Context, contentID int) error {
	own, err := i.helper.FindIndexIDsForContentIDs(ctx, []int{contentID})
	if err != nil {
		return err
	}
	below, err := i.helper.FindIndexIDsForDescendants(ctx, []int{contentID})
	if err != nil {
		return err
	}
	return i.index.DeleteFromIndex(ctx, append(own, below...))
}

// Rebuild empties the index and indexes the whole tree again.
func (i *Indexer) Rebuild(ctx context.Context, source ContentSource) error {
	all, err := i.helper.FindAllIndexIDs(ctx)
	if err != nil {
		return err
	}
	if err := i.index.DeleteFromIndex(ctx, all); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}

	roots, err := source.GetRoots(ctx)
	if err != nil {
		return fmt.Errorf("load roots: %w", err)
	}
	lookup, err := i.builder.Lookup(ctx)
	if err != nil {
		return err
	}
	for _, root := range roots {
		if !root.Published || root.Trashed {
			continue
		}
		if err := i.reindexBranch(ctx, lookup, root); err != nil {
			return err
		}
	}

	i.logger.Info("delivery index rebuilt", logger.Field{Key: "roots", Value: len(roots)})
	return nil
}

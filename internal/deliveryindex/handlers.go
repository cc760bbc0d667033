package deliveryindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/aatumaykin/cmsjobs/internal/cacherefresh"
	"github.com/aatumaykin/cmsjobs/internal/content"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
	"github.com/aatumaykin/cmsjobs/internal/publicaccess"
	"github.com/aatumaykin/cmsjobs/internal/search"
)

// PublicAccessHandler reconciles protection flags in the index after public
// access changes.
type PublicAccessHandler struct {
	index    search.Index
	helper   *Helper
	indexer  *Indexer
	content  ContentSource
	access   PublicAccessSource
	settings *SettingsHolder
	queue    BackgroundQueue
	logger   *logger.Logger
}

// NewPublicAccessHandler creates the handler.
func NewPublicAccessHandler(
	index search.Index,
	helper *Helper,
	indexer *Indexer,
	source ContentSource,
	access PublicAccessSource,
	settings *SettingsHolder,
	queue BackgroundQueue,
	log *logger.Logger,
) *PublicAccessHandler {
	return &PublicAccessHandler{
		index:    index,
		helper:   helper,
		indexer:  indexer,
		content:  source,
		access:   access,
		settings: settings,
		queue:    queue,
		logger:   log.Component("public_access_index_handler"),
	}
}

// Handle queues a synchronization and returns immediately.
func (h *PublicAccessHandler) Handle(ctx context.Context, _ *cacherefresh.PublicAccessCacheRefresherNotification) error {
	if err := h.queue.QueueBackgroundWorkItem(h.Synchronize); err != nil {
		return fmt.Errorf("queue public access synchronization: %w", err)
	}
	return nil
}

// Refresh queues a synchronization outside of any notification.
func (h *PublicAccessHandler) Refresh(ctx context.Context) error {
	return h.Handle(ctx, &cacherefresh.PublicAccessCacheRefresherNotification{})
}

// Synchronize brings the protected documents of the index in line with the
// current public access entries.
//
// With member authorization disabled every protected document is removed.
// Otherwise every content item flagged protected in the index is reindexed,
// and items protected by an entry but not yet flagged are reindexed together
// with their applicable descendants.
func (h *PublicAccessHandler) Synchronize(ctx context.Context) error {
	if !h.settings.Get().MemberAuthorizationEnabled {
		ids, err := h.helper.FindProtectedIndexIDs(ctx)
		if err != nil {
			return err
		}
		if err := h.index.DeleteFromIndex(ctx, ids); err != nil {
			return fmt.Errorf("remove protected documents: %w", err)
		}
		h.logger.Info("protected documents removed", logger.Field{Key: "count", Value: len(ids)})
		return nil
	}

	entries, err := h.access.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load public access: %w", err)
	}
	lookup := publicaccess.NewLookup(entries)

	protectedIDs, err := h.helper.FindProtectedContentIDs(ctx)
	if err != nil {
		return err
	}

	refreshed := 0
	for _, batch := range search.Batch(protectedIDs, IDBatchSize) {
		items, err := h.content.GetMany(ctx, batch)
		if err != nil {
			return fmt.Errorf("load protected content: %w", err)
		}

		found := make(map[int]struct{}, len(items))
		for _, c := range items {
			found[c.ID] = struct{}{}
		}
		n, err := h.indexer.reindex(ctx, lookup, items)
		if err != nil {
			return err
		}
		refreshed += n

		// Content deleted behind the index's back.
		var missing []int
		for _, id := range batch {
			if _, ok := found[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			ids, err := h.helper.FindIndexIDsForContentIDs(ctx, missing)
			if err != nil {
				return err
			}
			if err := h.index.DeleteFromIndex(ctx, ids); err != nil {
				return fmt.Errorf("remove documents of missing content: %w", err)
			}
		}
	}

	flagged := make(map[int]struct{}, len(protectedIDs))
	for _, id := range protectedIDs {
		flagged[id] = struct{}{}
	}

	newlyProtected := 0
	for _, entry := range entries {
		if _, ok := flagged[entry.ProtectedNodeID]; ok {
			continue
		}
		c, err := h.content.Get(ctx, entry.ProtectedNodeID)
		if errors.Is(err, content.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load newly protected content: %w", err)
		}

		updated, err := h.indexer.reindex(ctx, lookup, []*content.Content{c})
		if err != nil {
			return err
		}
		if updated == 0 {
			continue
		}
		newlyProtected++

		err = h.helper.EnumerateApplicableDescendants(ctx, c, func(items []*content.Content) error {
			_, err := h.indexer.reindex(ctx, lookup, items)
			return err
		})
		if err != nil {
			return err
		}
	}

	h.logger.Info("public access synchronized",
		logger.Field{Key: "refreshed", Value: refreshed},
		logger.Field{Key: "newly_protected", Value: newlyProtected})
	return nil
}

// ContentChangesHandler applies content cache refresher payloads to the index.
type ContentChangesHandler struct {
	helper  *Helper
	indexer *Indexer
	content ContentSource
	queue   BackgroundQueue
	logger  *logger.Logger
}

// NewContentChangesHandler creates the handler.
func NewContentChangesHandler(helper *Helper, indexer *Indexer, source ContentSource, queue BackgroundQueue, log *logger.Logger) *ContentChangesHandler {
	return &ContentChangesHandler{
		helper:  helper,
		indexer: indexer,
		content: source,
		queue:   queue,
		logger:  log.Component("content_index_handler"),
	}
}

// Handle queues the payloads and returns immediately.
func (h *ContentChangesHandler) Handle(ctx context.Context, n *cacherefresh.ContentCacheRefresherNotification) error {
	payloads := append([]cacherefresh.ContentPayload(nil), n.Payloads...)
	if len(payloads) == 0 {
		return nil
	}
	err := h.queue.QueueBackgroundWorkItem(func(ctx context.Context) error {
		return h.Apply(ctx, payloads)
	})
	if err != nil {
		return fmt.Errorf("queue content index changes: %w", err)
	}
	return nil
}

// Apply processes payloads in order. A RefreshAll payload rebuilds the index
// and makes the rest redundant.
func (h *ContentChangesHandler) Apply(ctx context.Context, payloads []cacherefresh.ContentPayload) error {
	for _, p := range payloads {
		if p.ChangeTypes.Has(cacherefresh.TreeRefreshAll) {
			return h.indexer.Rebuild(ctx, h.content)
		}
	}

	for _, p := range payloads {
		var err error
		switch {
		case p.ChangeTypes.Has(cacherefresh.TreeRemove):
			err = h.indexer.RemoveBranch(ctx, p.ID)
		case p.ChangeTypes.Has(cacherefresh.TreeRefreshBranch):
			err = h.refresh(ctx, p.ID, true)
		case p.ChangeTypes.Has(cacherefresh.TreeRefreshNode):
			err = h.refresh(ctx, p.ID, false)
		}
		if err != nil {
			return fmt.Errorf("apply %s to content %d: %w", p.ChangeTypes, p.ID, err)
		}
	}
	return nil
}

func (h *ContentChangesHandler) refresh(ctx context.Context, id int, branch bool) error {
	c, err := h.content.Get(ctx, id)
	if errors.Is(err, content.ErrNotFound) {
		return h.indexer.RemoveBranch(ctx, id)
	}
	if err != nil {
		return err
	}

	if c.Trashed {
		if branch {
			return h.indexer.RemoveBranch(ctx, id)
		}
		ids, err := h.helper.FindIndexIDsForContentIDs(ctx, []int{id})
		if err != nil {
			return err
		}
		return h.indexer.index.DeleteFromIndex(ctx, ids)
	}

	if branch {
		return h.indexer.ReIndexBranch(ctx, c)
	}
	_, err = h.indexer.ReIndex(ctx, c)
	return err
}

// ContentTypeChangesHandler applies content type refresher payloads to the index.
type ContentTypeChangesHandler struct {
	helper  *Helper
	indexer *Indexer
	content ContentSource
	queue   BackgroundQueue
	logger  *logger.Logger
}

// NewContentTypeChangesHandler creates the handler.
func NewContentTypeChangesHandler(helper *Helper, indexer *Indexer, source ContentSource, queue BackgroundQueue, log *logger.Logger) *ContentTypeChangesHandler {
	return &ContentTypeChangesHandler{
		helper:  helper,
		indexer: indexer,
		content: source,
		queue:   queue,
		logger:  log.Component("content_type_index_handler"),
	}
}

// Handle queues the payloads and returns immediately.
func (h *ContentTypeChangesHandler) Handle(ctx context.Context, n *cacherefresh.ContentTypeCacheRefresherNotification) error {
	payloads := append([]cacherefresh.ContentTypePayload(nil), n.Payloads...)
	if len(payloads) == 0 {
		return nil
	}
	err := h.queue.QueueBackgroundWorkItem(func(ctx context.Context) error {
		return h.Apply(ctx, payloads)
	})
	if err != nil {
		return fmt.Errorf("queue content type index changes: %w", err)
	}
	return nil
}

// Apply removes documents of deleted types and reindexes content of changed ones.
func (h *ContentTypeChangesHandler) Apply(ctx context.Context, payloads []cacherefresh.ContentTypePayload) error {
	for _, p := range payloads {
		switch {
		case p.ChangeTypes.Has(cacherefresh.ContentTypeRemove):
			ids, err := h.helper.FindIndexIDsForContentType(ctx, p.ID)
			if err != nil {
				return err
			}
			if err := h.indexer.index.DeleteFromIndex(ctx, ids); err != nil {
				return fmt.Errorf("remove documents of content type %d: %w", p.ID, err)
			}
			h.logger.Info("content type removed from index",
				logger.Field{Key: "content_type_id", Value: p.ID},
				logger.Field{Key: "documents", Value: len(ids)})
		case p.ChangeTypes.Has(cacherefresh.ContentTypeRefreshMain), p.ChangeTypes.Has(cacherefresh.ContentTypeRefreshOther):
			if err := h.reindexType(ctx, p.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *ContentTypeChangesHandler) reindexType(ctx context.Context, contentTypeID int) error {
	lookup, err := h.indexer.builder.Lookup(ctx)
	if err != nil {
		return err
	}
	for pageIndex := 0; ; pageIndex++ {
		items, total, err := h.content.GetPagedOfType(ctx, contentTypeID, pageIndex, descendantPageSize)
		if err != nil {
			return fmt.Errorf("load content of type %d: %w", contentTypeID, err)
		}
		if _, err := h.indexer.reindex(ctx, lookup, items); err != nil {
			return err
		}
		if len(items) < descendantPageSize || int64((pageIndex+1)*descendantPageSize) >= total {
			return nil
		}
	}
}

// Subscribe registers the handlers on the aggregator and returns a function
// that removes them again.
func Subscribe(agg *notifications.Aggregator, pa *PublicAccessHandler, cc *ContentChangesHandler, ct *ContentTypeChangesHandler) func() {
	unsubs := []func(){
		notifications.On(agg, pa.Handle),
		notifications.On(agg, cc.Handle),
		notifications.On(agg, ct.Handle),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

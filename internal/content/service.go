package content

import (
	"context"
	"fmt"

	"github.com/aatumaykin/cmsjobs/internal/cacherefresh"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
)

// Service is the write path for content. Every change is followed by a
// cache refresher notification so caches and indexes can catch up.
type Service struct {
	store  *Store
	events notifications.Publisher
	logger *logger.Logger
}

// NewService creates a content service.
func NewService(store *Store, events notifications.Publisher, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		events: events,
		logger: log.Component("content_service"),
	}
}

func (s *Service) Get(ctx context.Context, id int) (*Content, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetMany(ctx context.Context, ids []int) ([]*Content, error) {
	return s.store.GetMany(ctx, ids)
}

func (s *Service) GetRoots(ctx context.Context) ([]*Content, error) {
	return s.store.GetRoots(ctx)
}

func (s *Service) GetPagedDescendants(ctx context.Context, id int, pageIndex, pageSize int) ([]*Content, int64, error) {
	return s.store.GetPagedDescendants(ctx, id, pageIndex, pageSize)
}

func (s *Service) GetPagedOfType(ctx context.Context, contentTypeID int, pageIndex, pageSize int) ([]*Content, int64, error) {
	return s.store.GetPagedOfType(ctx, contentTypeID, pageIndex, pageSize)
}

// Save stores c and broadcasts RefreshNode.
func (s *Service) Save(ctx context.Context, c *Content) error {
	if err := s.store.Save(ctx, c); err != nil {
		return fmt.Errorf("save content: %w", err)
	}
	s.refreshContent(ctx, cacherefresh.ContentPayload{ID: c.ID, Key: c.Key, ChangeTypes: cacherefresh.TreeRefreshNode})
	return nil
}

// Move re-parents id and broadcasts RefreshBranch.
func (s *Service) Move(ctx context.Context, id, parentID int) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("move content: %w", err)
	}
	c.ParentID = parentID
	if err := s.store.Save(ctx, c); err != nil {
		return fmt.Errorf("move content: %w", err)
	}
	s.refreshContent(ctx, cacherefresh.ContentPayload{ID: c.ID, Key: c.Key, ChangeTypes: cacherefresh.TreeRefreshBranch})
	return nil
}

// MoveToRecycleBin trashes id with its descendants and broadcasts RefreshBranch.
func (s *Service) MoveToRecycleBin(ctx context.Context, id int) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("trash content: %w", err)
	}
	if err := s.store.SetTrashed(ctx, id, true); err != nil {
		return fmt.Errorf("trash content: %w", err)
	}
	s.refreshContent(ctx, cacherefresh.ContentPayload{ID: c.ID, Key: c.Key, ChangeTypes: cacherefresh.TreeRefreshBranch})
	return nil
}

// Delete removes id with its descendants and broadcasts Remove.
func (s *Service) Delete(ctx context.Context, id int) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	s.logger.Info("content deleted",
		logger.Field{Key: "id", Value: id},
		logger.Field{Key: "removed", Value: len(removed)})
	s.refreshContent(ctx, cacherefresh.ContentPayload{ID: c.ID, Key: c.Key, ChangeTypes: cacherefresh.TreeRemove})
	return nil
}

// RefreshAll broadcasts a RefreshAll signal without touching storage.
func (s *Service) RefreshAll(ctx context.Context) {
	s.refreshContent(ctx, cacherefresh.ContentPayload{ChangeTypes: cacherefresh.TreeRefreshAll})
}

// RenameContentType changes the alias of a content type on all its content
// and broadcasts RefreshMain for the type.
func (s *Service) RenameContentType(ctx context.Context, contentTypeID int, alias string) error {
	if _, err := s.store.SetContentTypeAlias(ctx, contentTypeID, alias); err != nil {
		return fmt.Errorf("rename content type: %w", err)
	}
	s.refreshContentTypes(ctx, cacherefresh.ContentTypePayload{
		ID: contentTypeID, Alias: alias, ChangeTypes: cacherefresh.ContentTypeRefreshMain,
	})
	return nil
}

// DeleteContentType broadcasts Remove for a content type. Content of the type
// stays in storage; caches and indexes drop it.
func (s *Service) DeleteContentType(ctx context.Context, contentTypeID int) {
	s.refreshContentTypes(ctx, cacherefresh.ContentTypePayload{
		ID: contentTypeID, ChangeTypes: cacherefresh.ContentTypeRemove,
	})
}

func (s *Service) refreshContent(ctx context.Context, payloads ...cacherefresh.ContentPayload) {
	s.publish(ctx, &cacherefresh.ContentCacheRefresherNotification{Payloads: payloads})
}

func (s *Service) refreshContentTypes(ctx context.Context, payloads ...cacherefresh.ContentTypePayload) {
	s.publish(ctx, &cacherefresh.ContentTypeCacheRefresherNotification{Payloads: payloads})
}

func (s *Service) publish(ctx context.Context, n notifications.Notification) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, n); err != nil {
		s.logger.Warn("cache refresher notification not published",
			logger.Field{Key: "notification", Value: n.NotificationName()},
			logger.Field{Key: "error", Value: err.Error()})
	}
}

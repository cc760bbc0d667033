package publicaccess

import (
	"context"
	"fmt"

	"github.com/aatumaykin/cmsjobs/internal/cacherefresh"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
)

// Service exposes public access entries and broadcasts a refresher
// notification after every change.
type Service struct {
	store  *Store
	events notifications.Publisher
	logger *logger.Logger
}

// NewService creates a service.
func NewService(store *Store, events notifications.Publisher, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		events: events,
		logger: log.Component("public_access_service"),
	}
}

// GetAll returns every currently protected entry.
func (s *Service) GetAll(ctx context.Context) ([]*Entry, error) {
	entries, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("get public access entries: %w", err)
	}
	return entries, nil
}

// IsProtected returns the entry of the nearest protected node on path, the
// item itself included. path lists ancestor ids root first, ending with the
// item's own id.
func (s *Service) IsProtected(ctx context.Context, path []int) (*Entry, bool, error) {
	entries, err := s.GetAll(ctx)
	if err != nil {
		return nil, false, err
	}
	entry, ok := NewLookup(entries).Find(path)
	return entry, ok, nil
}

// Save protects a branch and broadcasts the change.
func (s *Service) Save(ctx context.Context, e *Entry) error {
	if e.ProtectedNodeID == 0 {
		return fmt.Errorf("save public access: protected node id is required")
	}
	if err := s.store.Save(ctx, e); err != nil {
		return fmt.Errorf("save public access: %w", err)
	}
	s.logger.Info("public access saved", logger.Field{Key: "node", Value: e.ProtectedNodeID})
	s.changed(ctx)
	return nil
}

// Delete removes protection from a branch and broadcasts the change.
func (s *Service) Delete(ctx context.Context, protectedNodeID int) error {
	if err := s.store.DeleteByNode(ctx, protectedNodeID); err != nil {
		return fmt.Errorf("delete public access: %w", err)
	}
	s.logger.Info("public access removed", logger.Field{Key: "node", Value: protectedNodeID})
	s.changed(ctx)
	return nil
}

func (s *Service) changed(ctx context.Context) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, &cacherefresh.PublicAccessCacheRefresherNotification{}); err != nil {
		s.logger.Warn("public access refresher notification not published",
			logger.Field{Key: "error", Value: err.Error()})
	}
}

// Lookup resolves protection for many items against one snapshot of entries.
type Lookup struct {
	byNode map[int]*Entry
}

// NewLookup indexes entries by protected node id.
func NewLookup(entries []*Entry) *Lookup {
	byNode := make(map[int]*Entry, len(entries))
	for _, e := range entries {
		byNode[e.ProtectedNodeID] = e
	}
	return &Lookup{byNode: byNode}
}

// Find walks path from the item upwards and returns the first protecting entry.
func (l *Lookup) Find(path []int) (*Entry, bool) {
	for i := len(path) - 1; i >= 0; i-- {
		if e, ok := l.byNode[path[i]]; ok {
			return e, true
		}
	}
	return nil, false
}

// Len returns the number of entries.
func (l *Lookup) Len() int {
	return len(l.byNode)
}

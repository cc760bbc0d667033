// Package deliveryindex keeps the delivery API search index in step with
// content, content type and public access changes.
//
// Change notifications never touch the index directly. Each handler computes
// what to add, update or remove inside a work item queued on the background
// queue, so the request that caused the change is not held up by index scans.
package deliveryindex

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/aatumaykin/cmsjobs/internal/content"
	"github.com/aatumaykin/cmsjobs/internal/publicaccess"
)

// IndexName is the name of the delivery API index.
const IndexName = "DeliveryApiContentIndex"

// Index field names.
const (
	FieldID               = "id"
	FieldItemID           = "itemId"
	FieldCulture          = "culture"
	FieldContentTypeID    = "contentTypeId"
	FieldContentTypeAlias = "contentTypeAlias"
	FieldName             = "name"
	FieldAncestors        = "ancestors"
	FieldProtected        = "protected"
	FieldProtectedAccess  = "protectedAccess"
)

// Values of FieldProtected.
const (
	ProtectedYes = "y"
	ProtectedNo  = "n"
)

const category = "content"

// ItemID builds the index document id of one culture of a content item.
// Invariant content uses the empty culture.
func ItemID(contentID int, culture string) string {
	return fmt.Sprintf("%d|%s", contentID, culture)
}

// ParseItemID splits an index document id into content id and culture.
func ParseItemID(itemID string) (int, string, error) {
	idPart, culture, ok := strings.Cut(itemID, "|")
	if !ok {
		return 0, "", fmt.Errorf("malformed index item id %q", itemID)
	}
	id, err := strconv.Atoi(idPart)
	if err != nil {
		return 0, "", fmt.Errorf("malformed index item id %q: %w", itemID, err)
	}
	return id, culture, nil
}

// ContentSource is the read side of content the index is built from.
type ContentSource interface {
	Get(ctx context.Context, id int) (*content.Content, error)
	GetMany(ctx context.Context, ids []int) ([]*content.Content, error)
	GetRoots(ctx context.Context) ([]*content.Content, error)
	GetPagedDescendants(ctx context.Context, id int, pageIndex, pageSize int) ([]*content.Content, int64, error)
	GetPagedOfType(ctx context.Context, contentTypeID int, pageIndex, pageSize int) ([]*content.Content, int64, error)
}

// PublicAccessSource lists the currently protected branches.
type PublicAccessSource interface {
	GetAll(ctx context.Context) ([]*publicaccess.Entry, error)
}

// BackgroundQueue runs work items off the request path.
type BackgroundQueue interface {
	QueueBackgroundWorkItem(fn func(ctx context.Context) error) error
}

// Settings are the delivery API options the index depends on.
type Settings struct {
	MemberAuthorizationEnabled bool
	DisallowedContentTypes     []string
}

// SettingsHolder shares Settings between components and lets a config
// reload swap them atomically.
type SettingsHolder struct {
	p atomic.Pointer[Settings]
}

// NewSettingsHolder creates a holder with initial settings.
func NewSettingsHolder(s Settings) *SettingsHolder {
	h := &SettingsHolder{}
	h.Set(s)
	return h
}

func (h *SettingsHolder) Get() Settings {
	if s := h.p.Load(); s != nil {
		return *s
	}
	return Settings{}
}

func (h *SettingsHolder) Set(s Settings) {
	h.p.Store(&s)
}

// Package content holds the document tree the delivery index is built from.
package content

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// RootID is the parent id of top-level content.
const RootID = -1

// ErrNotFound is returned when a content item does not exist.
var ErrNotFound = errors.New("content not found")

// Content is a single document in the content tree.
type Content struct {
	ID               int       `yaml:"id"`
	Key              uuid.UUID `yaml:"key"`
	ParentID         int       `yaml:"parent_id"`
	Level            int       `yaml:"-"`
	Path             []int     `yaml:"-"` // ancestor ids followed by ID, root excluded
	Name             string    `yaml:"name"`
	ContentTypeID    int       `yaml:"content_type_id"`
	ContentTypeAlias string    `yaml:"content_type_alias"`
	Published        bool      `yaml:"published"`
	Trashed          bool      `yaml:"trashed"`
	Cultures         []string  `yaml:"cultures"`
	SortOrder        int       `yaml:"sort_order"`
	UpdatedAt        time.Time `yaml:"-"`
}

// AncestorIDs returns the ids above the item, root first.
func (c *Content) AncestorIDs() []int {
	if len(c.Path) == 0 {
		return nil
	}
	return slices.Clone(c.Path[:len(c.Path)-1])
}

// IsInvariant reports whether the item has no culture variants.
func (c *Content) IsInvariant() bool {
	return len(c.Cultures) == 0
}

// formatPath renders ids as the stored path string, "-1,1060,1061".
func formatPath(ids []int) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(RootID))
	for _, id := range ids {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}

func parsePath(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.Wrapf(err, "parse path %q", s)
		}
		if id == RootID {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

package deliveryindex

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/aatumaykin/cmsjobs/internal/content"
	"github.com/aatumaykin/cmsjobs/internal/publicaccess"
	"github.com/aatumaykin/cmsjobs/internal/search"
)

// ValueSetBuilder converts content into index value sets.
type ValueSetBuilder struct {
	access   PublicAccessSource
	settings *SettingsHolder
}

// NewValueSetBuilder creates a builder.
func NewValueSetBuilder(access PublicAccessSource, settings *SettingsHolder) *ValueSetBuilder {
	return &ValueSetBuilder{access: access, settings: settings}
}

// Lookup loads the current public access entries.
func (b *ValueSetBuilder) Lookup(ctx context.Context) (*publicaccess.Lookup, error) {
	entries, err := b.access.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load public access: %w", err)
	}
	return publicaccess.NewLookup(entries), nil
}

// Build returns one value set per culture of every eligible item. Items that
// are unpublished, trashed or of a disallowed type produce nothing, and so do
// protected items while member authorization is disabled.
func (b *ValueSetBuilder) Build(ctx context.Context, contents ...*content.Content) ([]search.ValueSet, error) {
	if len(contents) == 0 {
		return nil, nil
	}
	lookup, err := b.Lookup(ctx)
	if err != nil {
		return nil, err
	}
	return b.BuildWith(lookup, contents...), nil
}

// BuildWith is Build against an already loaded lookup.
func (b *ValueSetBuilder) BuildWith(lookup *publicaccess.Lookup, contents ...*content.Content) []search.ValueSet {
	settings := b.settings.Get()

	var sets []search.ValueSet
	for _, c := range contents {
		if !eligible(c, settings) {
			continue
		}

		entry, protected := lookup.Find(c.Path)
		if protected && !settings.MemberAuthorizationEnabled {
			continue
		}

		cultures := c.Cultures
		if len(cultures) == 0 {
			cultures = []string{""}
		}
		for _, culture := range cultures {
			sets = append(sets, valueSet(c, culture, entry))
		}
	}
	return sets
}

func eligible(c *content.Content, settings Settings) bool {
	if c == nil || c.Trashed || !c.Published {
		return false
	}
	return !slices.Contains(settings.DisallowedContentTypes, c.ContentTypeAlias)
}

func valueSet(c *content.Content, culture string, entry *publicaccess.Entry) search.ValueSet {
	itemID := ItemID(c.ID, culture)
	values := map[string][]string{
		FieldID:               {strconv.Itoa(c.ID)},
		FieldItemID:           {itemID},
		FieldContentTypeID:    {strconv.Itoa(c.ContentTypeID)},
		FieldContentTypeAlias: {c.ContentTypeAlias},
		FieldName:             {c.Name},
		FieldProtected:        {ProtectedNo},
	}
	if culture != "" {
		values[FieldCulture] = []string{culture}
	}

	ancestors := c.AncestorIDs()
	if len(ancestors) > 0 {
		vals := make([]string, 0, len(ancestors))
		for _, id := range ancestors {
			vals = append(vals, strconv.Itoa(id))
		}
		values[FieldAncestors] = vals
	}

	if entry != nil {
		values[FieldProtected] = []string{ProtectedYes}
		var access []string
		for _, r := range entry.Rules {
			switch r.Type {
			case publicaccess.RuleMemberUsername:
				access = append(access, "u:"+r.Value)
			case publicaccess.RuleMemberRole:
				access = append(access, "r:"+r.Value)
			}
		}
		if len(access) > 0 {
			values[FieldProtectedAccess] = access
		}
	}

	return search.ValueSet{ID: itemID, Category: category, Values: values}
}

// Package search abstracts the full-text index the delivery API reads from.
package search

import (
	"context"
	"slices"
)

// CategoryField holds ValueSet.Category in stored documents.
const CategoryField = "__category"

// ValueSet is the flattened form of one index document.
type ValueSet struct {
	ID       string
	Category string
	Values   map[string][]string
}

// First returns the first value of field, or "".
func (v ValueSet) First(field string) string {
	if vals := v.Values[field]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// FieldQuery matches documents whose Field equals any of Values.
// An empty Field matches every document.
type FieldQuery struct {
	Field  string
	Values []string
}

// Hit is a single search result.
type Hit struct {
	ID     string
	Values map[string][]string
}

// Results is one page of hits plus the total number of matches.
type Results struct {
	Total int64
	Hits  []Hit
}

// IDs returns the ids of the hits in order.
func (r Results) IDs() []string {
	ids := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		ids = append(ids, h.ID)
	}
	return ids
}

// Index is a searchable document store. Implementations must be safe for
// concurrent use.
type Index interface {
	Name() string
	// Search returns take hits after skipping skip, ordered by document id.
	Search(ctx context.Context, q FieldQuery, skip, take int) (Results, error)
	IndexItems(ctx context.Context, items []ValueSet) error
	DeleteFromIndex(ctx context.Context, ids []string) error
	DocCount(ctx context.Context) (uint64, error)
	Close() error
}

// Batch splits values into chunks of at most size elements.
func Batch[T any](values []T, size int) [][]T {
	if size <= 0 {
		size = len(values)
	}
	var out [][]T
	for chunk := range slices.Chunk(values, max(size, 1)) {
		out = append(out, chunk)
	}
	return out
}

package search

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/cockroachdb/errors"

	"github.com/aatumaykin/cmsjobs/internal/logger"
)

// BleveIndex is an Index backed by bleve. Every field is indexed with the
// keyword analyzer and stored, so field queries are exact matches.
type BleveIndex struct {
	name   string
	index  bleve.Index
	logger *logger.Logger
}

func newMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = keyword.Name
	return m
}

// NewMemIndex creates an in-memory index. Contents are lost on Close.
func NewMemIndex(name string, log *logger.Logger) (*BleveIndex, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, errors.Wrapf(err, "create in-memory index %s", name)
	}
	return wrap(name, idx, log), nil
}

// OpenIndex opens the index at path, creating it when it does not exist.
func OpenIndex(name, path string, log *logger.Logger) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, errors.WithDetail(errors.Wrapf(err, "open index %s", name), path)
		}
		return wrap(name, idx, log), nil
	}

	idx, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, errors.WithDetail(errors.Wrapf(err, "create index %s", name), path)
	}
	return wrap(name, idx, log), nil
}

func wrap(name string, idx bleve.Index, log *logger.Logger) *BleveIndex {
	return &BleveIndex{
		name:   name,
		index:  idx,
		logger: log.Component("search").With(logger.Field{Key: "index", Value: name}),
	}
}

func (b *BleveIndex) Name() string {
	return b.name
}

// Search runs q and returns one page ordered by document id.
func (b *BleveIndex) Search(ctx context.Context, q FieldQuery, skip, take int) (Results, error) {
	if take <= 0 {
		return Results{}, nil
	}

	req := bleve.NewSearchRequestOptions(buildQuery(q), take, max(skip, 0), false)
	req.Fields = []string{"*"}
	req.SortBy([]string{"_id"})

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return Results{}, errors.Wrapf(err, "search %s", b.name)
	}

	out := Results{Total: int64(res.Total), Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		out.Hits = append(out.Hits, Hit{ID: h.ID, Values: storedValues(h.Fields)})
	}
	return out, nil
}

// IndexItems adds or replaces documents in a single batch.
func (b *BleveIndex) IndexItems(ctx context.Context, items []ValueSet) error {
	if len(items) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := b.index.NewBatch()
	for _, item := range items {
		if item.ID == "" {
			return errors.New("value set without id")
		}
		if err := batch.Index(item.ID, document(item)); err != nil {
			return errors.Wrapf(err, "index %s", item.ID)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return errors.Wrapf(err, "write batch to %s", b.name)
	}

	b.logger.Debug("items indexed", logger.Field{Key: "count", Value: len(items)})
	return nil
}

// DeleteFromIndex removes documents by id. Unknown ids are ignored.
func (b *BleveIndex) DeleteFromIndex(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return errors.Wrapf(err, "delete batch from %s", b.name)
	}

	b.logger.Debug("items removed", logger.Field{Key: "count", Value: len(ids)})
	return nil
}

func (b *BleveIndex) DocCount(ctx context.Context) (uint64, error) {
	n, err := b.index.DocCount()
	if err != nil {
		return 0, errors.Wrapf(err, "count documents in %s", b.name)
	}
	return n, nil
}

func (b *BleveIndex) Close() error {
	return b.index.Close()
}

func buildQuery(q FieldQuery) query.Query {
	if q.Field == "" || len(q.Values) == 0 {
		return bleve.NewMatchAllQuery()
	}
	terms := make([]query.Query, 0, len(q.Values))
	for _, v := range q.Values {
		tq := bleve.NewTermQuery(v)
		tq.SetField(q.Field)
		terms = append(terms, tq)
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return bleve.NewDisjunctionQuery(terms...)
}

func document(v ValueSet) map[string]any {
	doc := make(map[string]any, len(v.Values)+1)
	for field, vals := range v.Values {
		switch len(vals) {
		case 0:
		case 1:
			doc[field] = vals[0]
		default:
			doc[field] = vals
		}
	}
	if v.Category != "" {
		doc[CategoryField] = v.Category
	}
	return doc
}

func storedValues(fields map[string]any) map[string][]string {
	out := make(map[string][]string, len(fields))
	for field, raw := range fields {
		switch v := raw.(type) {
		case string:
			out[field] = []string{v}
		case []any:
			vals := make([]string, 0, len(v))
			for _, item := range v {
				vals = append(vals, fmt.Sprint(item))
			}
			out[field] = vals
		default:
			out[field] = []string{fmt.Sprint(v)}
		}
	}
	return out
}

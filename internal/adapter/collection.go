package adapter

import (
	"bytes"
	"context"
	"encoding/json"

	"task-offload/pkg/processor/collection"
)

// Collection offloads filtering, sorting, search and pagination of JSON
// records.
type Collection struct {
	*base
}

// NewCollection creates a collection adapter on d, or on the default
// dispatcher when d is nil.
func NewCollection(ctx context.Context, d Dispatcher, opts Options) *Collection {
	c := &Collection{base: newBase(d, collection.Name, collection.ContextKey, collection.EntryPoint, opts)}
	c.autoInitialize(ctx, opts)
	return c
}

// Filter returns the items matching every criterion of f.
func (c *Collection) Filter(ctx context.Context, items []json.RawMessage, f collection.Filters) ([]json.RawMessage, error) {
	items = compact(items)
	req := collection.FilterRequest{Items: items, Filters: f}
	return run(ctx, c.base, collection.OpFilterItems, req, true, func() ([]json.RawMessage, error) {
		return collection.Filter(items, f)
	})
}

// Sort returns items stably ordered by keys.
func (c *Collection) Sort(ctx context.Context, items []json.RawMessage, keys []collection.SortKey) ([]json.RawMessage, error) {
	items = compact(items)
	req := collection.SortRequest{Items: items, SortBy: keys}
	return run(ctx, c.base, collection.OpSortItems, req, true, func() ([]json.RawMessage, error) {
		return collection.Sort(items, keys)
	})
}

// Search returns the items where query appears in any of fields.
func (c *Collection) Search(ctx context.Context, items []json.RawMessage, query string, fields []string) ([]json.RawMessage, error) {
	items = compact(items)
	req := collection.SearchRequest{Items: items, Query: query, Fields: fields}
	return run(ctx, c.base, collection.OpSearchItems, req, true, func() ([]json.RawMessage, error) {
		return collection.Search(items, query, fields), nil
	})
}

// Categories counts the distinct values of field, led by the catch-all.
func (c *Collection) Categories(ctx context.Context, items []json.RawMessage, field string) ([]collection.Category, error) {
	items = compact(items)
	req := collection.CategoriesRequest{Items: items, Field: field}
	return run(ctx, c.base, collection.OpGetCategories, req, true, func() ([]collection.Category, error) {
		return collection.Categories(items, field), nil
	})
}

// Paginate returns one page of items.
func (c *Collection) Paginate(ctx context.Context, items []json.RawMessage, page, limit int) (collection.Page, error) {
	items = compact(items)
	req := collection.PaginateRequest{Items: items, Page: page, Limit: limit}
	return run(ctx, c.base, collection.OpPaginateItems, req, true, func() (collection.Page, error) {
		return collection.Paginate(items, page, limit), nil
	})
}

// compact strips insignificant whitespace from items. The wire encoding
// compacts embedded records, so the local path must see the same bytes.
func compact(items []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		var buf bytes.Buffer
		if err := json.Compact(&buf, item); err != nil {
			out[i] = item
			continue
		}
		out[i] = buf.Bytes()
	}
	return out
}

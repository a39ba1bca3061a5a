// Package collection implements the collection processor: filtering, sorting,
// searching, categorizing and paginating lists of JSON records.
//
// Records are raw JSON objects. Fields are addressed with gjson paths
// ("title", "meta.client", "tags.0"), and records are returned untouched.
package collection

import (
	"encoding/json"

	"task-offload/pkg/processor"
)

const (
	// Name is the processor name.
	Name = "collection"

	// ContextKey is the conventional dispatcher key for this processor.
	ContextKey = "collectionProcessor"

	// EntryPoint is the entry point the processor registers under.
	EntryPoint = "processors/collection"
)

// Operation names.
const (
	OpFilterItems   = "filterItems"
	OpSortItems     = "sortItems"
	OpSearchItems   = "searchItems"
	OpGetCategories = "getCategories"
	OpPaginateItems = "paginateItems"
)

// New creates the collection processor.
func New() processor.Processor {
	return processor.New(Name, processor.Table{
		OpFilterItems: processor.Bind(func(req FilterRequest) ([]json.RawMessage, error) {
			return Filter(req.Items, req.Filters)
		}),
		OpSortItems: processor.Bind(func(req SortRequest) ([]json.RawMessage, error) {
			return Sort(req.Items, req.SortBy)
		}),
		OpSearchItems: processor.Bind(func(req SearchRequest) ([]json.RawMessage, error) {
			return Search(req.Items, req.Query, req.Fields), nil
		}),
		OpGetCategories: processor.Bind(func(req CategoriesRequest) ([]Category, error) {
			return Categories(req.Items, req.Field), nil
		}),
		OpPaginateItems: processor.Bind(func(req PaginateRequest) (Page, error) {
			return Paginate(req.Items, req.Page, req.Limit), nil
		}),
	})
}

// FilterRequest is the payload of filterItems.
type FilterRequest struct {
	Items   []json.RawMessage `json:"items"`
	Filters Filters           `json:"filters"`
}

// SortRequest is the payload of sortItems.
type SortRequest struct {
	Items  []json.RawMessage `json:"items"`
	SortBy []SortKey         `json:"sortBy"`
}

// SearchRequest is the payload of searchItems.
type SearchRequest struct {
	Items  []json.RawMessage `json:"items"`
	Query  string            `json:"query"`
	Fields []string          `json:"fields,omitempty"`
}

// CategoriesRequest is the payload of getCategories.
type CategoriesRequest struct {
	Items []json.RawMessage `json:"items"`
	Field string            `json:"field,omitempty"`
}

// PaginateRequest is the payload of paginateItems.
type PaginateRequest struct {
	Items []json.RawMessage `json:"items"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

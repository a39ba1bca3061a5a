package collection

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// DefaultPageSize is used when a pagination limit is not positive.
const DefaultPageSize = 10

// Category is a distinct category value and the number of records in it.
type Category struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Categories returns the catch-all category followed by every distinct
// value of field in first-seen order. field defaults to "category".
func Categories(items []json.RawMessage, field string) []Category {
	if field == "" {
		field = "category"
	}

	cats := []Category{{Name: AllCategory, Count: len(items)}}
	index := make(map[string]int)
	for _, item := range items {
		name := gjson.GetBytes(item, field).String()
		if name == "" {
			continue
		}
		if i, ok := index[name]; ok {
			cats[i].Count++
			continue
		}
		index[name] = len(cats)
		cats = append(cats, Category{Name: name, Count: 1})
	}
	return cats
}

// Pagination describes one page of a list. Indices are 1-based and
// inclusive; both are 0 when the page is empty.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalItems  int  `json:"totalItems"`
	Limit       int  `json:"limit"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
	StartIndex  int  `json:"startIndex"`
	EndIndex    int  `json:"endIndex"`
}

// Page is a slice of records plus its pagination metadata.
type Page struct {
	Items      []json.RawMessage `json:"items"`
	Pagination Pagination        `json:"pagination"`
}

// Paginate returns page (1-based) of items with limit records per page.
func Paginate(items []json.RawMessage, page, limit int) Page {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}

	total := len(items)
	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}

	p := Page{
		Items: []json.RawMessage{},
		Pagination: Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalItems:  total,
			Limit:       limit,
			HasNext:     page < totalPages,
			HasPrev:     page > 1,
		},
	}
	// Pages past the end are empty. Checking before multiplying keeps
	// offset within len(items) for any page and limit.
	if page-1 < totalPages {
		offset := (page - 1) * limit
		end := offset + min(limit, total-offset)
		p.Items = append(p.Items, items[offset:end]...)
		p.Pagination.StartIndex = offset + 1
		p.Pagination.EndIndex = end
	}
	return p
}

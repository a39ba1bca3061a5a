package collection

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// AllCategory is the catch-all category that matches every record.
const AllCategory = "all"

// Filters selects records. Every non-empty criterion must match.
type Filters struct {
	// Category is compared case-insensitively against CategoryField.
	Category string `json:"category,omitempty"`

	// CategoryField defaults to "category".
	CategoryField string `json:"categoryField,omitempty"`

	// Tags must each appear as a substring of some tag or feature.
	Tags []string `json:"tags,omitempty"`

	// Fields maps a field path to a substring it must contain.
	Fields map[string]string `json:"fields,omitempty"`

	// DateRange bounds a date field, inclusive on both ends.
	DateRange *DateRange `json:"dateRange,omitempty"`
}

// DateRange is an inclusive date window. An empty bound is open.
type DateRange struct {
	Field string `json:"field"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

var tagFields = []string{"tags", "features"}

// Filter returns the records of items that match every criterion of f.
func Filter(items []json.RawMessage, f Filters) ([]json.RawMessage, error) {
	match, err := f.compile()
	if err != nil {
		return nil, err
	}

	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		if match(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f Filters) compile() (func(json.RawMessage) bool, error) {
	var preds []func(json.RawMessage) bool

	if f.Category != "" && !strings.EqualFold(f.Category, AllCategory) {
		field := f.CategoryField
		if field == "" {
			field = "category"
		}
		want := f.Category
		preds = append(preds, func(item json.RawMessage) bool {
			return strings.EqualFold(gjson.GetBytes(item, field).String(), want)
		})
	}

	for _, tag := range f.Tags {
		needle := strings.ToLower(tag)
		preds = append(preds, func(item json.RawMessage) bool {
			for _, field := range tagFields {
				if anyContains(gjson.GetBytes(item, field), needle) {
					return true
				}
			}
			return false
		})
	}

	for path, sub := range f.Fields {
		needle := strings.ToLower(sub)
		preds = append(preds, func(item json.RawMessage) bool {
			return anyContains(gjson.GetBytes(item, path), needle)
		})
	}

	if f.DateRange != nil {
		pred, err := f.DateRange.compile()
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}

	return func(item json.RawMessage) bool {
		for _, p := range preds {
			if !p(item) {
				return false
			}
		}
		return true
	}, nil
}

func (r DateRange) compile() (func(json.RawMessage) bool, error) {
	if r.Field == "" {
		return nil, fmt.Errorf("date range: field is required")
	}

	var start, end time.Time
	if r.Start != "" {
		t, _, err := parseDate(r.Start)
		if err != nil {
			return nil, fmt.Errorf("date range start: %w", err)
		}
		start = t
	}
	if r.End != "" {
		t, dateOnly, err := parseDate(r.End)
		if err != nil {
			return nil, fmt.Errorf("date range end: %w", err)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		end = t
	}

	return func(item json.RawMessage) bool {
		v := gjson.GetBytes(item, r.Field)
		if !v.Exists() {
			return false
		}
		d, _, err := parseDate(v.String())
		if err != nil {
			return false
		}
		if !start.IsZero() && d.Before(start) {
			return false
		}
		if !end.IsZero() && d.After(end) {
			return false
		}
		return true
	}, nil
}

// parseDate accepts RFC 3339 timestamps and YYYY-MM-DD dates.
func parseDate(s string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	if t, err = time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("unrecognized date %q", s)
}

// anyContains reports whether v, or any element of v when it is an array,
// contains needle case-insensitively. needle must already be lower case.
func anyContains(v gjson.Result, needle string) bool {
	if !v.Exists() {
		return false
	}
	if v.IsArray() {
		for _, el := range v.Array() {
			if strings.Contains(strings.ToLower(el.String()), needle) {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(v.String()), needle)
}

// DefaultSearchFields are searched when a search names no fields.
var DefaultSearchFields = []string{"title", "description", "tags"}

// Search returns the records where query appears in any of fields.
// An empty query matches everything.
func Search(items []json.RawMessage, query string, fields []string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	query = strings.TrimSpace(query)
	if query == "" {
		return append(out, items...)
	}
	if len(fields) == 0 {
		fields = DefaultSearchFields
	}

	needle := strings.ToLower(query)
	for _, item := range items {
		for _, field := range fields {
			if anyContains(gjson.GetBytes(item, field), needle) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

package collection

import (
	"cmp"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// SortKey orders records by one field.
type SortKey struct {
	Field string `json:"field"`

	// Order is "asc" (default) or "desc".
	Order string `json:"order,omitempty"`

	// Kind is "auto" (default), "string", "number" or "duration".
	Kind string `json:"kind,omitempty"`
}

// Sort returns a stably sorted copy of items. Later keys break ties of
// earlier ones; records missing a key sort last in either order.
func Sort(items []json.RawMessage, keys []SortKey) ([]json.RawMessage, error) {
	for _, k := range keys {
		if k.Field == "" {
			return nil, fmt.Errorf("sort key: field is required")
		}
		switch k.Order {
		case "", "asc", "desc":
		default:
			return nil, fmt.Errorf("sort key %s: unknown order %q", k.Field, k.Order)
		}
		switch k.Kind {
		case "", "auto", "string", "number", "duration":
		default:
			return nil, fmt.Errorf("sort key %s: unknown kind %q", k.Field, k.Kind)
		}
	}

	out := slices.Clone(items)
	if out == nil {
		out = []json.RawMessage{}
	}
	slices.SortStableFunc(out, func(a, b json.RawMessage) int {
		for _, k := range keys {
			if c := k.compare(a, b); c != 0 {
				return c
			}
		}
		return 0
	})
	return out, nil
}

func (k SortKey) compare(a, b json.RawMessage) int {
	va, oka := k.value(gjson.GetBytes(a, k.Field))
	vb, okb := k.value(gjson.GetBytes(b, k.Field))

	switch {
	case !oka && !okb:
		return 0
	case !oka:
		return 1
	case !okb:
		return -1
	}

	c := va.compare(vb)
	if k.Order == "desc" {
		c = -c
	}
	return c
}

type sortValue struct {
	numeric bool
	num     float64
	str     string
}

func (v sortValue) compare(o sortValue) int {
	if v.numeric && o.numeric {
		return cmp.Compare(v.num, o.num)
	}
	return strings.Compare(v.str, o.str)
}

func (k SortKey) value(r gjson.Result) (sortValue, bool) {
	if !r.Exists() || r.Type == gjson.Null {
		return sortValue{}, false
	}

	switch k.Kind {
	case "number":
		if r.Type == gjson.Number {
			return sortValue{numeric: true, num: r.Num}, true
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(r.String()), 64)
		if err != nil {
			return sortValue{}, false
		}
		return sortValue{numeric: true, num: n}, true
	case "duration":
		days, ok := ParseDuration(r.String())
		if !ok {
			return sortValue{}, false
		}
		return sortValue{numeric: true, num: days}, true
	case "string":
		return sortValue{str: strings.ToLower(r.String())}, true
	default:
		if r.Type == gjson.Number {
			return sortValue{numeric: true, num: r.Num, str: strings.ToLower(r.Raw)}, true
		}
		return sortValue{str: strings.ToLower(r.String())}, true
	}
}

var durationPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*([a-zA-Z]*)`)

var unitDays = map[string]float64{
	"":      1,
	"d":     1,
	"day":   1,
	"w":     7,
	"week":  7,
	"m":     30,
	"mo":    30,
	"month": 30,
	"y":     365,
	"yr":    365,
	"year":  365,
}

// ParseDuration converts a human duration such as "6 months" or "2 weeks"
// into days. A bare number is taken as days.
func ParseDuration(s string) (float64, bool) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	unit := strings.TrimSuffix(strings.ToLower(m[2]), "s")
	factor, ok := unitDays[unit]
	if !ok {
		return 0, false
	}
	return n * factor, true
}

package dispatcher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseCache_InsertionOrderEviction(t *testing.T) {
	c := newResponseCache(3)
	for _, k := range []string{"a", "b", "c"} {
		c.Put(k, json.RawMessage(`"`+k+`"`))
	}

	// Reads and re-stores do not refresh position.
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Put("a", json.RawMessage(`"a2"`))

	c.Put("d", json.RawMessage(`"d"`))

	_, ok = c.Get("a")
	assert.False(t, ok, "oldest entry should be evicted")
	for _, k := range []string{"b", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, CacheStats{Size: 3, MaxSize: 3}, c.Stats())
}

func TestResponseCache_RestoreUpdatesValue(t *testing.T) {
	c := newResponseCache(2)
	c.Put("a", json.RawMessage(`1`))
	c.Put("a", json.RawMessage(`2`))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, `2`, string(got))
	assert.Equal(t, 1, c.Stats().Size)
}

func TestResponseCache_StoresCopies(t *testing.T) {
	c := newResponseCache(2)
	value := json.RawMessage(`"abc"`)
	c.Put("k", value)
	value[1] = 'z'

	got, _ := c.Get("k")
	assert.Equal(t, `"abc"`, string(got))

	got[1] = 'y'
	again, _ := c.Get("k")
	assert.Equal(t, `"abc"`, string(again))
}

func TestResponseCache_Clear(t *testing.T) {
	c := newResponseCache(0)
	c.Put("a", json.RawMessage(`1`))
	c.Clear()

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, CacheStats{Size: 0, MaxSize: DefaultCacheSize}, c.Stats())
}

func TestCanonicalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, `null`},
		{"sorted keys", map[string]any{"z": 1, "a": map[string]int{"y": 2, "b": 3}}, `{"a":{"b":3,"y":2},"z":1}`},
		{"struct field order", struct {
			Z string `json:"z"`
			A string `json:"a"`
		}{"1", "2"}, `{"a":"2","z":"1"}`},
		{"raw message", json.RawMessage(` { "b" : 1.50, "a" : [ 1, 2 ] } `), `{"a":[1,2],"b":1.50}`},
		{"large integer keeps precision", json.RawMessage(`12345678901234567890`), `12345678901234567890`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := canonicalJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestCanonicalJSON_Unencodable(t *testing.T) {
	_, err := canonicalJSON(make(chan int))
	assert.Error(t, err)
}

package dispatcher

import (
	"bytes"
	"container/list"
	"encoding/json"
	"sync"
)

// DefaultCacheSize is the response cache capacity when none is configured.
const DefaultCacheSize = 100

// CacheStats reports response cache occupancy.
type CacheStats struct {
	Size    int `json:"size"`
	MaxSize int `json:"maxSize"`
}

// responseCache is a bounded map of successful results. When full, the
// oldest inserted entry is evicted. Reads never change eviction order.
type responseCache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	entries map[string]*list.Element
}

type cacheEntry struct {
	key   string
	value json.RawMessage
}

func newResponseCache(maxSize int) *responseCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &responseCache{
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Get returns a copy of the value stored under key.
func (c *responseCache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(el.Value.(*cacheEntry).value), true
}

// Put stores a copy of value. An existing key keeps its position.
func (c *responseCache) Put(key string, value json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = bytes.Clone(value)
		return
	}
	for c.order.Len() >= c.maxSize {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, value: bytes.Clone(value)})
}

func (c *responseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.entries)
}

func (c *responseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Size: c.order.Len(), MaxSize: c.maxSize}
}

// cacheKey builds the composite key of a context, operation and canonical payload.
func cacheKey(key, operation string, payload json.RawMessage) string {
	return key + ":" + operation + ":" + string(payload)
}

// canonicalJSON encodes v so that equal payloads produce equal bytes:
// object keys are sorted and insignificant whitespace removed.
func canonicalJSON(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

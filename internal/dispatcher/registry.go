package dispatcher

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// execContext is one registered execution context and its live worker.
type execContext struct {
	Key        string
	EntryPoint string
	Instance   string
	CreatedAt  time.Time

	worker Worker
	ready  atomic.Bool

	readyOnce sync.Once
	readyCh   chan struct{}

	// initErr receives the first failure seen before the ready handshake.
	initErr chan error

	stopOnce sync.Once
	stop     chan struct{}
}

func newExecContext(key, entryPoint, instance string, w Worker) *execContext {
	return &execContext{
		Key:        key,
		EntryPoint: entryPoint,
		Instance:   instance,
		CreatedAt:  time.Now(),
		worker:     w,
		readyCh:    make(chan struct{}),
		initErr:    make(chan error, 1),
		stop:       make(chan struct{}),
	}
}

func (c *execContext) markReady() bool {
	first := false
	c.readyOnce.Do(func() {
		c.ready.Store(true)
		close(c.readyCh)
		first = true
	})
	return first
}

func (c *execContext) failInit(err error) {
	if c.ready.Load() {
		return
	}
	select {
	case c.initErr <- err:
	default:
	}
}

func (c *execContext) halt() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// contextRegistry tracks registered execution contexts by key.
type contextRegistry struct {
	mu        sync.RWMutex
	contexts  map[string]*execContext
	onRemoved func(key string)
}

func newContextRegistry() *contextRegistry {
	return &contextRegistry{
		contexts: make(map[string]*execContext),
	}
}

// SetRemovedCallback sets a callback for when a context leaves the registry.
func (r *contextRegistry) SetRemovedCallback(callback func(key string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemoved = callback
}

// Add registers c unless its key is taken, in which case the existing
// context is returned with false.
func (r *contextRegistry) Add(c *execContext) (*execContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.contexts[c.Key]; ok {
		return existing, false
	}
	r.contexts[c.Key] = c
	return c, true
}

// Get returns the context registered under key.
func (r *contextRegistry) Get(key string) (*execContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contexts[key]
	return c, ok
}

// Remove deregisters the context under key if it is c (or any context
// when c is nil) and reports what was removed.
func (r *contextRegistry) Remove(key string, c *execContext) *execContext {
	r.mu.Lock()
	existing, ok := r.contexts[key]
	if !ok || (c != nil && existing != c) {
		r.mu.Unlock()
		return nil
	}
	delete(r.contexts, key)
	callback := r.onRemoved
	r.mu.Unlock()

	if callback != nil {
		callback(key)
	}
	return existing
}

// Keys returns all registered keys, sorted.
func (r *contextRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.contexts))
	for k := range r.contexts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Status maps each registered key to whether it completed the ready handshake.
func (r *contextRegistry) Status() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status := make(map[string]bool, len(r.contexts))
	for k, c := range r.contexts {
		status[k] = c.ready.Load()
	}
	return status
}

// Count returns the number of registered contexts.
func (r *contextRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contexts)
}

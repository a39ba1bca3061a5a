// Package adapter exposes typed, per-capability clients over the task
// dispatcher. Every operation falls back to computing its result locally
// when offloading fails.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"task-offload/internal/dispatcher"
	"task-offload/pkg/protocol"
)

// Dispatcher is the subset of *dispatcher.Manager the adapters use.
type Dispatcher interface {
	CreateContext(ctx context.Context, key, entryPoint string) error
	Execute(ctx context.Context, key, operation string, payload any, useCache bool) (json.RawMessage, error)
	Terminate(keys ...string)
}

var _ Dispatcher = (*dispatcher.Manager)(nil)

// Options configures an adapter.
type Options struct {
	// AutoInitialize creates the adapter's context on construction.
	AutoInitialize bool

	// EntryPoint overrides the processor entry point.
	EntryPoint string

	// Key overrides the context key.
	Key string
}

// base holds the lifecycle state shared by all adapters.
type base struct {
	d          Dispatcher
	key        string
	entryPoint string
	logger     zerolog.Logger

	mu          sync.Mutex
	loading     bool
	initialized bool
	err         error
}

func newBase(d Dispatcher, name, key, entryPoint string, opts Options) *base {
	if d == nil {
		d = dispatcher.Default()
	}
	if opts.Key != "" {
		key = opts.Key
	}
	if opts.EntryPoint != "" {
		entryPoint = opts.EntryPoint
	}
	return &base{
		d:          d,
		key:        key,
		entryPoint: entryPoint,
		logger:     log.With().Str("adapter", name).Str("context", key).Logger(),
	}
}

func (b *base) autoInitialize(ctx context.Context, opts Options) {
	if opts.AutoInitialize {
		// Recorded in Err.
		_ = b.InitializeWorker(ctx)
	}
}

// InitializeWorker creates the adapter's execution context and waits for
// it to become ready.
func (b *base) InitializeWorker(ctx context.Context) error {
	b.mu.Lock()
	b.loading = true
	b.err = nil
	b.mu.Unlock()

	err := b.d.CreateContext(ctx, b.key, b.entryPoint)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading = false
	b.initialized = err == nil
	if err != nil {
		b.err = err
		b.logger.Warn().Err(err).Msg("worker initialization failed")
	}
	return err
}

// IsLoading reports whether initialization is in progress.
func (b *base) IsLoading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// IsInitialized reports whether the execution context was created.
func (b *base) IsInitialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// Err returns the most recent initialization or offloading error.
func (b *base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Key returns the dispatcher key of the adapter's context.
func (b *base) Key() string {
	return b.key
}

// Close terminates the adapter's execution context.
func (b *base) Close() {
	b.d.Terminate(b.key)
	b.mu.Lock()
	b.initialized = false
	b.mu.Unlock()
}

func (b *base) record(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// run offloads operation and decodes the result into R. If the dispatcher
// fails or the result does not decode, local computes the result instead.
func run[R any](ctx context.Context, b *base, operation string, payload any, useCache bool, local func() (R, error)) (R, error) {
	raw, err := b.d.Execute(ctx, b.key, operation, payload, useCache)
	if err == nil {
		var out R
		if err = json.Unmarshal(raw, &out); err == nil {
			return out, nil
		}
		err = fmt.Errorf("decode %s result: %w", operation, err)
	}

	b.record(err)
	b.logger.Warn().Err(err).Str("operation", operation).Msg("offload failed, computing locally")

	out, lerr := local()
	if lerr != nil {
		b.record(lerr)
		return out, lerr
	}
	return out, nil
}

// Records encodes items as JSON records for the collection adapter.
func Records[T any](items []T) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		raw, err := protocol.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = raw
	}
	return out, nil
}

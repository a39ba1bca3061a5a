// Package dispatcher runs pure computations in isolated execution contexts
// and correlates their asynchronous responses with the callers waiting on
// them.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"task-offload/internal/config"
	"task-offload/pkg/processor/builtin"
	"task-offload/pkg/protocol"
)

// Config holds Manager configuration.
type Config struct {
	OperationTimeout time.Duration
	ReadyTimeout     time.Duration
	CacheSize        int
}

// ConfigFrom extracts the Manager settings from daemon configuration.
func ConfigFrom(c config.Dispatcher) Config {
	return Config{
		OperationTimeout: c.OperationTimeout,
		ReadyTimeout:     c.ReadyTimeout,
		CacheSize:        c.CacheSize,
	}
}

// Manager owns the execution contexts, the table of in-flight requests and
// the response cache.
type Manager struct {
	launcher Launcher
	contexts *contextRegistry
	cache    *responseCache

	operationTimeout time.Duration
	readyTimeout     time.Duration

	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

type pendingRequest struct {
	id        string
	key       string
	operation string
	outcome   chan outcome
	timer     *time.Timer
}

type outcome struct {
	result json.RawMessage
	err    error
}

// New creates a Manager that starts workers through launcher.
func New(cfg Config, launcher Launcher) *Manager {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 30 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 10 * time.Second
	}
	return &Manager{
		launcher:         launcher,
		contexts:         newContextRegistry(),
		cache:            newResponseCache(cfg.CacheSize),
		operationTimeout: cfg.OperationTimeout,
		readyTimeout:     cfg.ReadyTimeout,
		pending:          make(map[string]*pendingRequest),
	}
}

var (
	defaultOnce    sync.Once
	defaultManager *Manager
)

// Default returns the process-wide Manager, built on first use from
// environment configuration and the builtin processors.
func Default() *Manager {
	defaultOnce.Do(func() {
		cfg, err := config.LoadDispatcher()
		if err != nil {
			log.Warn().Err(err).Msg("dispatcher config invalid, using defaults")
			cfg = config.Dispatcher{}
		}
		defaultManager = New(ConfigFrom(cfg), DefaultLauncher(builtin.NewRegistry()))
	})
	return defaultManager
}

// OnContextRemoved sets a callback invoked whenever a context leaves the
// registry.
func (m *Manager) OnContextRemoved(callback func(key string)) {
	m.contexts.SetRemovedCallback(callback)
}

// CreateContext launches entryPoint under key and waits for its ready
// handshake. It is a no-op if key is already registered.
func (m *Manager) CreateContext(ctx context.Context, key, entryPoint string) error {
	if _, ok := m.contexts.Get(key); ok {
		return nil
	}

	w, err := m.launcher.Launch(ctx, entryPoint)
	if err != nil {
		return &Error{Kind: ErrContextInitialization, Key: key, Err: err}
	}

	ec, added := m.contexts.Add(newExecContext(key, entryPoint, uuid.NewString(), w))
	if !added {
		// Lost a concurrent create for the same key.
		_ = w.Terminate()
		return nil
	}

	logger := log.With().Str("context", key).Str("instance", ec.Instance).Logger()
	logger.Debug().Str("entry_point", entryPoint).Msg("context created")
	go m.listen(ec)

	timer := time.NewTimer(m.readyTimeout)
	defer timer.Stop()

	var cause error
	select {
	case <-ec.readyCh:
		logger.Debug().Dur("startup", time.Since(ec.CreatedAt)).Msg("context ready")
		return nil
	case err := <-ec.initErr:
		cause = err
	case <-timer.C:
		cause = fmt.Errorf("no ready signal within %s", m.readyTimeout)
	case <-ctx.Done():
		cause = ctx.Err()
	}

	logger.Warn().Err(cause).Msg("context initialization failed")
	m.terminate(ec)
	return &Error{Kind: ErrContextInitialization, Key: key, Err: cause}
}

// Execute runs operation with payload in the context registered under key
// and returns the raw JSON result. With useCache, an identical earlier
// success is returned without contacting the context.
func (m *Manager) Execute(ctx context.Context, key, operation string, payload any, useCache bool) (json.RawMessage, error) {
	data, err := protocol.Marshal(payload)
	if err != nil {
		return nil, &Error{Kind: ErrOperationFailed, Key: key, Operation: operation, Message: "encode payload", Err: err}
	}
	// The context receives the payload as encoded; only the cache key is canonical.
	canonical, err := canonicalJSON(json.RawMessage(data))
	if err != nil {
		return nil, &Error{Kind: ErrOperationFailed, Key: key, Operation: operation, Message: "encode payload", Err: err}
	}

	ck := cacheKey(key, operation, canonical)
	if useCache {
		if result, ok := m.cache.Get(ck); ok {
			log.Debug().Str("context", key).Str("operation", operation).Msg("cache hit")
			return result, nil
		}
	}

	ec, ok := m.contexts.Get(key)
	if !ok {
		return nil, &Error{Kind: ErrContextNotFound, Key: key, Operation: operation}
	}

	p := m.register(key, operation)
	req := protocol.Request{ID: p.id, Operation: operation, Data: data}
	if err := ec.worker.Post(req); err != nil {
		if _, removed := m.take(p.id); removed {
			return nil, &Error{Kind: ErrContextTerminated, Key: key, Operation: operation, ID: p.id, Err: err}
		}
	} else {
		log.Debug().Str("context", key).Str("operation", operation).Str("request_id", p.id).Msg("request posted")
	}

	var o outcome
	select {
	case o = <-p.outcome:
	case <-ctx.Done():
		if _, removed := m.take(p.id); removed {
			return nil, ctx.Err()
		}
		o = <-p.outcome
	}
	if o.err != nil {
		return nil, o.err
	}
	if useCache {
		m.cache.Put(ck, o.result)
	}
	return o.result, nil
}

// register allocates a correlation ID and arms its timeout.
func (m *Manager) register(key, operation string) *pendingRequest {
	p := &pendingRequest{
		id:        fmt.Sprintf("%d_%d", m.nextID.Add(1), time.Now().UnixNano()),
		key:       key,
		operation: operation,
		outcome:   make(chan outcome, 1),
	}

	m.mu.Lock()
	m.pending[p.id] = p
	p.timer = time.AfterFunc(m.operationTimeout, func() { m.expire(p.id) })
	m.mu.Unlock()
	return p
}

// take removes the pending entry for id. Only the caller that gets true
// may deliver its outcome.
func (m *Manager) take(id string) (*pendingRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[id]
	if !ok {
		return nil, false
	}
	delete(m.pending, id)
	p.timer.Stop()
	return p, true
}

// takeAll removes every pending entry belonging to key.
func (m *Manager) takeAll(key string) []*pendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var taken []*pendingRequest
	for id, p := range m.pending {
		if p.key != key {
			continue
		}
		delete(m.pending, id)
		p.timer.Stop()
		taken = append(taken, p)
	}
	return taken
}

func (m *Manager) expire(id string) {
	p, ok := m.take(id)
	if !ok {
		return
	}
	log.Warn().
		Str("context", p.key).
		Str("operation", p.operation).
		Str("request_id", id).
		Dur("timeout", m.operationTimeout).
		Msg("operation timed out")
	p.outcome <- outcome{err: &Error{
		Kind:      ErrOperationTimeout,
		Key:       p.key,
		Operation: p.operation,
		ID:        id,
		Message:   fmt.Sprintf("no response within %s", m.operationTimeout),
	}}
}

// listen routes one context's responses and errors until it is stopped.
func (m *Manager) listen(ec *execContext) {
	messages := ec.worker.Messages()
	errs := ec.worker.Errors()

	for {
		select {
		case <-ec.stop:
			return
		case resp, ok := <-messages:
			if !ok {
				select {
				case <-ec.stop:
					return
				default:
				}
				// A crashing worker reports before closing its stream.
				err := errors.New("worker exited")
				select {
				case reported, open := <-errs:
					if open {
						err = reported
					}
				default:
				}
				ec.failInit(err)
				m.fault(ec.Key, err)
				return
			}
			if resp.IsReady() {
				ec.markReady()
				continue
			}
			m.resolve(ec, resp)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			ec.failInit(err)
			m.fault(ec.Key, err)
		}
	}
}

func (m *Manager) resolve(ec *execContext, resp protocol.Response) {
	p, ok := m.take(resp.ID)
	if !ok {
		log.Debug().Str("context", ec.Key).Str("request_id", resp.ID).Msg("response for unknown request")
		return
	}
	if resp.Success {
		p.outcome <- outcome{result: resp.Result}
		return
	}
	p.outcome <- outcome{err: &Error{
		Kind:      ErrOperationFailed,
		Key:       p.key,
		Operation: p.operation,
		ID:        p.id,
		Message:   resp.Error,
	}}
}

// fault rejects every pending request of key. The context stays registered.
func (m *Manager) fault(key string, err error) {
	taken := m.takeAll(key)
	log.Warn().Err(err).Str("context", key).Int("rejected", len(taken)).Msg("context fault")
	for _, p := range taken {
		p.outcome <- outcome{err: &Error{
			Kind:      ErrContextFault,
			Key:       key,
			Operation: p.operation,
			ID:        p.id,
			Message:   err.Error(),
		}}
	}
}

// Terminate stops and deregisters the named contexts, or every context
// when no key is given. Their pending requests are rejected.
func (m *Manager) Terminate(keys ...string) {
	if len(keys) == 0 {
		keys = m.contexts.Keys()
	}
	for _, key := range keys {
		if ec, ok := m.contexts.Get(key); ok {
			m.terminate(ec)
		}
	}
}

func (m *Manager) terminate(ec *execContext) {
	if m.contexts.Remove(ec.Key, ec) == nil {
		return
	}
	ec.halt()
	if err := ec.worker.Terminate(); err != nil {
		log.Debug().Err(err).Str("context", ec.Key).Msg("worker terminate")
	}

	taken := m.takeAll(ec.Key)
	for _, p := range taken {
		p.outcome <- outcome{err: &Error{
			Kind:      ErrContextTerminated,
			Key:       ec.Key,
			Operation: p.operation,
			ID:        p.id,
		}}
	}
	log.Debug().
		Str("context", ec.Key).
		Str("instance", ec.Instance).
		Int("rejected", len(taken)).
		Msg("context terminated")
}

// ContextStatus maps each registered key to whether it is ready.
func (m *Manager) ContextStatus() map[string]bool {
	return m.contexts.Status()
}

// ClearCache drops every cached response.
func (m *Manager) ClearCache() {
	m.cache.Clear()
}

// CacheStats reports response cache occupancy.
func (m *Manager) CacheStats() CacheStats {
	return m.cache.Stats()
}

// PendingCount returns the number of in-flight requests for key, or for
// all contexts when key is empty.
func (m *Manager) PendingCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == "" {
		return len(m.pending)
	}
	n := 0
	for _, p := range m.pending {
		if p.key == key {
			n++
		}
	}
	return n
}

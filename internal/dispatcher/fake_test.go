package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"task-offload/pkg/protocol"
)

// respondFunc returns the response to a request, or false to stay silent.
type respondFunc func(req protocol.Request) (protocol.Response, bool)

func echo(req protocol.Request) (protocol.Response, bool) {
	return protocol.Success(req.ID, req.Data), true
}

func silent(protocol.Request) (protocol.Response, bool) {
	return protocol.Response{}, false
}

func failing(msg string) respondFunc {
	return func(req protocol.Request) (protocol.Response, bool) {
		return protocol.Failure(req.ID, msg), true
	}
}

type fakeWorker struct {
	respond  respondFunc
	messages chan protocol.Response
	errors   chan error
	postErr  error

	mu    sync.Mutex
	posts []protocol.Request

	terminated atomic.Bool
	exitOnce   sync.Once
}

func newFakeWorker(respond respondFunc) *fakeWorker {
	return &fakeWorker{
		respond:  respond,
		messages: make(chan protocol.Response, 64),
		errors:   make(chan error, 4),
	}
}

func (w *fakeWorker) Post(req protocol.Request) error {
	if w.terminated.Load() {
		return ErrWorkerStopped
	}
	if w.postErr != nil {
		return w.postErr
	}
	w.mu.Lock()
	w.posts = append(w.posts, req)
	w.mu.Unlock()

	if resp, ok := w.respond(req); ok {
		w.messages <- resp
	}
	return nil
}

func (w *fakeWorker) Messages() <-chan protocol.Response { return w.messages }
func (w *fakeWorker) Errors() <-chan error               { return w.errors }

func (w *fakeWorker) Terminate() error {
	w.terminated.Store(true)
	return nil
}

// exit simulates the worker stopping on its own.
func (w *fakeWorker) exit() {
	w.exitOnce.Do(func() { close(w.messages) })
}

func (w *fakeWorker) Posts() []protocol.Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]protocol.Request, len(w.posts))
	copy(out, w.posts)
	return out
}

type fakeLauncher struct {
	respond respondFunc

	// noReady keeps new workers from sending the ready handshake.
	noReady bool
	err     error

	mu      sync.Mutex
	workers []*fakeWorker
}

func newFakeLauncher(respond respondFunc) *fakeLauncher {
	return &fakeLauncher{respond: respond}
}

func (l *fakeLauncher) Launch(_ context.Context, _ string) (Worker, error) {
	if l.err != nil {
		return nil, l.err
	}
	w := newFakeWorker(l.respond)
	if !l.noReady {
		w.messages <- protocol.Ready()
	}
	l.mu.Lock()
	l.workers = append(l.workers, w)
	l.mu.Unlock()
	return w, nil
}

func (l *fakeLauncher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.workers)
}

func (l *fakeLauncher) Last() *fakeWorker {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.workers) == 0 {
		return nil
	}
	return l.workers[len(l.workers)-1]
}

var errLaunch = errors.New("launch refused")

type execResult struct {
	result json.RawMessage
	err    error
}

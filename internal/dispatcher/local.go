package dispatcher

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"task-offload/pkg/processor"
	"task-offload/pkg/protocol"
)

// DefaultInboxSize is the request buffer of an in-process worker.
const DefaultInboxSize = 64

// LocalLauncher runs processors from a registry in their own goroutine.
type LocalLauncher struct {
	registry  *processor.Registry
	InboxSize int
}

// NewLocalLauncher creates a launcher backed by reg.
func NewLocalLauncher(reg *processor.Registry) *LocalLauncher {
	return &LocalLauncher{registry: reg, InboxSize: DefaultInboxSize}
}

// Launch starts the processor registered under entryPoint.
func (l *LocalLauncher) Launch(_ context.Context, entryPoint string) (Worker, error) {
	p, err := l.registry.Lookup(entryPoint)
	if err != nil {
		return nil, err
	}

	size := l.InboxSize
	if size <= 0 {
		size = DefaultInboxSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &localWorker{
		proc:     p,
		inbox:    make(chan protocol.Request, size),
		messages: make(chan protocol.Response, size),
		errors:   make(chan error, 4),
		ctx:      ctx,
		cancel:   cancel,
	}
	go w.run()
	return w, nil
}

// localWorker handles one request at a time on a single goroutine.
type localWorker struct {
	proc     processor.Processor
	inbox    chan protocol.Request
	messages chan protocol.Response
	errors   chan error

	ctx    context.Context
	cancel context.CancelFunc
}

func (w *localWorker) run() {
	defer close(w.messages)
	defer w.cancel()
	defer func() {
		if r := recover(); r != nil {
			w.report(fmt.Errorf("processor %s crashed: %v", w.proc.Name(), r))
		}
	}()

	log.Debug().Str("processor", w.proc.Name()).Msg("local worker started")
	processor.Serve(w.ctx, w.proc, w.inbox, w.messages)
	log.Debug().Str("processor", w.proc.Name()).Msg("local worker stopped")
}

func (w *localWorker) report(err error) {
	select {
	case w.errors <- err:
	default:
		log.Warn().Err(err).Str("processor", w.proc.Name()).Msg("worker error dropped")
	}
}

func (w *localWorker) Post(req protocol.Request) error {
	if w.ctx.Err() != nil {
		return ErrWorkerStopped
	}
	select {
	case w.inbox <- req:
		return nil
	case <-w.ctx.Done():
		return ErrWorkerStopped
	}
}

func (w *localWorker) Messages() <-chan protocol.Response { return w.messages }
func (w *localWorker) Errors() <-chan error               { return w.errors }

func (w *localWorker) Terminate() error {
	w.cancel()
	return nil
}

package dispatcher

import (
	"context"
	"errors"
	"strings"

	"task-offload/pkg/processor"
	"task-offload/pkg/protocol"
)

// ExecPrefix marks entry points that run as a subprocess.
const ExecPrefix = "exec:"

// ErrWorkerStopped is returned when posting to a terminated worker.
var ErrWorkerStopped = errors.New("worker stopped")

// Worker is a live execution context. Messages is closed when the worker
// stops, whether by Terminate or on its own.
type Worker interface {
	Post(req protocol.Request) error
	Messages() <-chan protocol.Response
	Errors() <-chan error
	Terminate() error
}

// Launcher starts workers for entry points.
type Launcher interface {
	Launch(ctx context.Context, entryPoint string) (Worker, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, entryPoint string) (Worker, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context, entryPoint string) (Worker, error) {
	return f(ctx, entryPoint)
}

// DefaultLauncher runs exec: entry points as subprocesses and everything
// else in-process from reg.
func DefaultLauncher(reg *processor.Registry) Launcher {
	local := NewLocalLauncher(reg)
	process := NewProcessLauncher()
	return LauncherFunc(func(ctx context.Context, entryPoint string) (Worker, error) {
		if strings.HasPrefix(entryPoint, ExecPrefix) {
			return process.Launch(ctx, entryPoint)
		}
		return local.Launch(ctx, entryPoint)
	})
}

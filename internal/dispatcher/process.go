package dispatcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"task-offload/pkg/protocol"
)

// maxLineSize bounds a single JSON line read from a subprocess.
const maxLineSize = 16 << 20

// ProcessLauncher runs exec: entry points as child processes speaking
// newline-delimited JSON over stdin and stdout.
type ProcessLauncher struct {
	// Env is additional environment for the child, as KEY=value pairs.
	Env []string

	// Dir is the working directory for the child.
	Dir string
}

// NewProcessLauncher creates a new process launcher.
func NewProcessLauncher() *ProcessLauncher {
	return &ProcessLauncher{}
}

// Launch starts the command named by entryPoint ("exec:<binary> [args...]").
func (l *ProcessLauncher) Launch(_ context.Context, entryPoint string) (Worker, error) {
	fields := strings.Fields(strings.TrimPrefix(entryPoint, ExecPrefix))
	if len(fields) == 0 {
		return nil, fmt.Errorf("entry point %q: command is required", entryPoint)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	if l.Dir != "" {
		cmd.Dir = l.Dir
	}
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	w := &processWorker{
		cmd:      cmd,
		stdin:    stdin,
		enc:      protocol.NewEncoder(stdin),
		messages: make(chan protocol.Response, DefaultInboxSize),
		errors:   make(chan error, 4),
		ctx:      ctx,
		cancel:   cancel,
	}
	cmd.Stderr = &w.stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", fields[0], err)
	}

	log.Debug().Str("command", fields[0]).Int("pid", cmd.Process.Pid).Msg("process worker started")
	go w.read(stdout)
	return w, nil
}

type processWorker struct {
	cmd    *exec.Cmd
	stderr lockedBuffer

	mu         sync.Mutex
	stdin      io.WriteCloser
	enc        *json.Encoder
	terminated bool

	messages chan protocol.Response
	errors   chan error
	ctx      context.Context
	cancel   context.CancelFunc
}

func (w *processWorker) read(stdout io.Reader) {
	defer close(w.messages)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp protocol.Response
		if err := json.Unmarshal(line, &resp); err != nil {
			w.report(fmt.Errorf("undecodable output line: %w", err))
			continue
		}
		select {
		case w.messages <- resp:
		case <-w.ctx.Done():
		}
	}
	if err := scanner.Err(); err != nil {
		w.report(fmt.Errorf("read output: %w", err))
	}

	err := w.cmd.Wait()
	if w.isTerminated() {
		return
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			err = fmt.Errorf("process exited with code %d", exitErr.ExitCode())
		}
		if stderr := strings.TrimSpace(w.stderr.String()); stderr != "" {
			err = fmt.Errorf("%w: %s", err, stderr)
		}
		w.report(err)
	}
}

func (w *processWorker) report(err error) {
	select {
	case w.errors <- err:
	default:
		log.Warn().Err(err).Msg("worker error dropped")
	}
}

func (w *processWorker) isTerminated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.terminated
}

func (w *processWorker) Post(req protocol.Request) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.terminated {
		return ErrWorkerStopped
	}
	if err := w.enc.Encode(req); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

func (w *processWorker) Messages() <-chan protocol.Response { return w.messages }
func (w *processWorker) Errors() <-chan error               { return w.errors }

func (w *processWorker) Terminate() error {
	w.mu.Lock()
	if w.terminated {
		w.mu.Unlock()
		return nil
	}
	w.terminated = true
	w.mu.Unlock()

	err := w.stdin.Close()
	w.cancel()
	return err
}

// lockedBuffer collects stderr written by the exec copier goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

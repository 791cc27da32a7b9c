// Package isolate runs a boolean engine in a child process. A native
// engine that segfaults cannot be recovered inside the Go runtime; running
// it in a worker turns the crash into an ordinary engine failure.
//
// The parent writes one request frame to the worker's stdin and reads one
// response frame from its stdout. The worker side is Serve, wired to a
// hidden "engine-worker" command of the meshbool binary.
package isolate

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/logging"
)

// Compile-time interface checks.
var (
	_ kernel.Engine    = (*Engine)(nil)
	_ kernel.Reentrant = (*Engine)(nil)
)

// DefaultStderrTail is the number of trailing stderr bytes kept from a
// worker for error reports.
const DefaultStderrTail = 2048

// ErrWorkerCrashed is returned when the worker exits abnormally.
var ErrWorkerCrashed = errors.New("engine worker crashed")

// Option configures an Engine.
type Option func(*Engine)

// WithName sets the engine name reported in logs and faults.
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// WithEnv adds environment variables for the worker.
func WithEnv(env ...string) Option {
	return func(e *Engine) { e.env = append(e.env, env...) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStderrTail sets how many trailing bytes of worker stderr to keep.
func WithStderrTail(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.tail = n
		}
	}
}

// Engine forwards every Perform to a fresh worker process. Workers share
// nothing, so the engine is reentrant whatever the engine inside is.
type Engine struct {
	path   string
	args   []string
	env    []string
	name   string
	tail   int
	logger *log.Logger
}

// New returns an Engine that starts path with args for every call.
func New(path string, args []string, opts ...Option) *Engine {
	e := &Engine{
		path:   path,
		args:   args,
		name:   "isolate",
		tail:   DefaultStderrTail,
		logger: logging.Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements kernel.Engine.
func (e *Engine) Name() string { return e.name }

// Reentrant implements kernel.Reentrant.
func (e *Engine) Reentrant() bool { return true }

// Perform implements kernel.Engine.
func (e *Engine) Perform(a, b kernel.Descriptor, op kernel.Operation) (kernel.Result, error) {
	var req bytes.Buffer
	bw := bufio.NewWriter(&req)
	if err := writeRequest(bw, a, b, op); err != nil {
		return nil, fmt.Errorf("isolate: encode request: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("isolate: encode request: %w", err)
	}

	var stdout bytes.Buffer
	stderr := &tailWriter{limit: e.tail}

	cmd := exec.Command(e.path, e.args...)
	cmd.Env = append(os.Environ(), e.env...)
	cmd.Stdin = &req
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		e.logger.Warn("engine worker failed", "engine", e.name, "op", op.String(), "err", err)
		return nil, fmt.Errorf("%w: %v: %s", ErrWorkerCrashed, err, stderr.String())
	}
	e.logger.Debug("engine worker done", "engine", e.name, "op", op.String(),
		"bytes", stdout.Len(), "elapsed", time.Since(start))

	return readResult(&stdout)
}

// tailWriter keeps the last limit bytes written to it.
type tailWriter struct {
	limit int
	buf   []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.limit; over > 0 {
		w.buf = append(w.buf[:0], w.buf[over:]...)
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	return strings.TrimSpace(string(w.buf))
}

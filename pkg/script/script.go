// Package script evaluates mesh boolean scripts written in a small Lisp.
// It wraps zygomys in a sandboxed environment and exposes builtins for
// building boxes, moving them and combining them with boolean operations:
//
//	(def a (box (vec3 0 0 0) (vec3 1 1 1)))
//	(def b (translate a (vec3 0.5 0 0)))
//	(emit "union" (csg a b :union))
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/logging"
	"github.com/chazu/meshbool/pkg/mesh"
	zygo "github.com/glycerine/zygomys/zygo"
)

// Performer runs a boolean operation. *csg.Dispatcher implements it.
type Performer interface {
	Perform(a, b *mesh.Mesh, op kernel.Operation) (*mesh.Mesh, error)
}

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error, a runtime error in user code or a failed boolean
// operation. Err holds the underlying Go error when a builtin failed.
type EvalError struct {
	Line    int
	Col     int
	Message string
	Err     error
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

func (e EvalError) Unwrap() error {
	return e.Err
}

// Output is a mesh produced by a script.
type Output struct {
	Name string
	Mesh *mesh.Mesh
}

// Result is the output of a successful evaluation. Meshes passed to emit
// are listed in call order; without any emit, a mesh-valued last
// expression is reported as "result".
type Result struct {
	Outputs []Output
}

// Mesh returns the output with the given name, or nil.
func (r *Result) Mesh(name string) *mesh.Mesh {
	for _, o := range r.Outputs {
		if o.Name == name {
			return o.Mesh
		}
	}
	return nil
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout sets the hard limit for one evaluation.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the evaluator logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// Evaluator runs scripts against a Performer. It is safe for concurrent
// use; each call to Evaluate creates a fresh sandboxed environment.
type Evaluator struct {
	csg     Performer
	timeout time.Duration
	logger  *log.Logger

	mu         sync.Mutex
	generation uint64
}

// NewEvaluator creates an Evaluator whose csg builtin uses p.
func NewEvaluator(p Performer, opts ...Option) *Evaluator {
	e := &Evaluator{
		csg:     p,
		timeout: EvalTimeout,
		logger:  logging.Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs source and collects the meshes it produces.
//
// Return semantics:
//   - On success: returns result + nil errors + nil error
//   - On parse/eval failure: returns nil result + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
//
// A timed out evaluation keeps running in the background until the
// interpreter returns; its result is discarded.
func (e *Evaluator) Evaluate(source string) (*Result, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		res, evalErrs, err := e.evaluate(source)
		ch <- evalResult{result: res, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, e.timeout, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Evaluator) evaluate(source string) (*Result, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return &Result{}, nil, nil
	}

	// Sandbox mode keeps scripts away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	st := &state{csg: e.csg}
	registerBuiltins(env, st)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}

	last, err := env.Run()
	if err != nil {
		evalErrs := parseZygomysError(err)
		evalErrs[0].Err = st.err
		return nil, evalErrs, nil
	}

	if len(st.outputs) == 0 {
		if m, ok := last.(*sexpMesh); ok && m.m != nil {
			st.outputs = append(st.outputs, Output{Name: "result", Mesh: m.m})
		}
	}
	e.logger.Debug("script evaluated", "outputs", len(st.outputs), "operations", st.ops)
	return &Result{Outputs: st.outputs}, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError
// values, extracting the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, p := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := p.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	return []EvalError{{Message: strings.TrimSpace(msg)}}
}

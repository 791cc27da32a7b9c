// Package boundary invokes a boolean engine across the ownership boundary.
// It hands the engine descriptors over the caller's buffers, takes
// ownership of the engine-allocated result, copies it into Go memory and
// releases the engine allocation exactly once on every path.
package boundary

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chazu/meshbool/pkg/flatmesh"
	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultCopyWorkers bounds the goroutines used to copy a large result.
	DefaultCopyWorkers = 4
	// DefaultParallelThreshold is the total number of result values at
	// which copy-out switches from a plain copy to chunked workers.
	DefaultParallelThreshold = 1 << 16
)

// Option configures an Invoker.
type Option func(*Invoker)

// WithLogger sets the logger used for per-invocation records.
func WithLogger(l *log.Logger) Option {
	return func(inv *Invoker) {
		if l != nil {
			inv.logger = l
		}
	}
}

// WithCopyWorkers sets the number of copy-out workers. Values below one
// are ignored.
func WithCopyWorkers(n int) Option {
	return func(inv *Invoker) {
		if n >= 1 {
			inv.workers = n
		}
	}
}

// WithParallelThreshold sets the result size above which copy-out runs in
// parallel. Values below one are ignored.
func WithParallelThreshold(n int) Option {
	return func(inv *Invoker) {
		if n >= 1 {
			inv.threshold = n
		}
	}
}

// Invoker performs engine calls. Calls to an engine that does not declare
// itself reentrant are serialized per Invoker.
type Invoker struct {
	engine    kernel.Engine
	logger    *log.Logger
	workers   int
	threshold int
	serialize bool

	mu sync.Mutex
}

// New creates an Invoker for engine.
func New(engine kernel.Engine, opts ...Option) *Invoker {
	inv := &Invoker{
		engine:    engine,
		logger:    logging.Logger(),
		workers:   DefaultCopyWorkers,
		threshold: DefaultParallelThreshold,
		serialize: !kernel.IsReentrant(engine),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Engine returns the engine behind the Invoker.
func (inv *Invoker) Engine() kernel.Engine {
	return inv.engine
}

// Invoke computes op(a, b) with the engine.
//
// Return semantics:
//   - invalid op or nil input: ErrInvalidOperation / ErrInvalidInput, the
//     engine is not called
//   - empty outcome: nil, nil
//   - engine error, panic, fault or inconsistent result: *kernel.EngineFault
//   - otherwise a validated FlatMesh in Go memory
//
// a and b are read by the engine in place and must not be modified until
// Invoke returns.
func (inv *Invoker) Invoke(a, b *flatmesh.FlatMesh, op kernel.Operation) (*flatmesh.FlatMesh, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %d (expected %s)", kernel.ErrInvalidOperation, int(op), kernel.Usage())
	}
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: mesh is nil", kernel.ErrInvalidInput)
	}

	name := inv.engine.Name()
	logger := inv.logger.With("id", uuid.NewString(), "op", op.String(), "engine", name)
	start := time.Now()

	res, err := inv.perform(descriptor(a), descriptor(b), op)
	if res != nil {
		l := newLease(res)
		defer l.release()
	}
	if err != nil {
		fault := kernel.AsFault(name, op, err)
		logger.Warn("engine failed", "err", fault.Description)
		return nil, fault
	}
	if res == nil || res.NumVertices() == 0 {
		logger.Debug("no result", "elapsed", time.Since(start))
		return nil, nil
	}

	out, err := inv.copyOut(res)
	if err != nil {
		fault := kernel.AsFault(name, op, err)
		logger.Warn("bad result", "err", fault.Description)
		return nil, fault
	}

	logger.Debug("invoke",
		"vertices", out.VertexCount(),
		"faces", out.FaceCount(),
		"elapsed", time.Since(start),
	)
	return out, nil
}

func (inv *Invoker) perform(a, b kernel.Descriptor, op kernel.Operation) (res kernel.Result, err error) {
	if inv.serialize {
		inv.mu.Lock()
		defer inv.mu.Unlock()
	}
	err = guard(func() error {
		var perr error
		res, perr = inv.engine.Perform(a, b, op)
		return perr
	})
	return res, err
}

// copyOut copies the result views into exact-size Go buffers and
// validates them. The caller releases res after copyOut returns.
func (inv *Invoker) copyOut(res kernel.Result) (*flatmesh.FlatMesh, error) {
	nv, ni, nf := res.NumVertices(), res.NumFaceIndices(), res.NumFaces()
	srcV, srcI, srcF := res.Vertices(), res.FaceIndices(), res.FaceSizes()
	if len(srcV) != nv || len(srcI) != ni || len(srcF) != nf {
		return nil, fmt.Errorf("result reports %d/%d/%d values but exposes %d/%d/%d",
			nv, ni, nf, len(srcV), len(srcI), len(srcF))
	}

	vertices := make([]float64, nv)
	faceIndices := make([]int32, ni)
	faceSizes := make([]int32, nf)

	if nv+ni+nf < inv.threshold || inv.workers == 1 {
		err := guard(func() error {
			copy(vertices, srcV)
			copy(faceIndices, srcI)
			copy(faceSizes, srcF)
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		var g errgroup.Group
		g.SetLimit(inv.workers)
		copyChunked(&g, vertices, srcV, inv.workers)
		copyChunked(&g, faceIndices, srcI, inv.workers)
		copyChunked(&g, faceSizes, srcF, inv.workers)
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out, err := flatmesh.New(vertices, faceIndices, faceSizes)
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}
	return out, nil
}

// copyChunked splits src into parts contiguous ranges and schedules one
// guarded copy per range on g.
func copyChunked[T any](g *errgroup.Group, dst, src []T, parts int) {
	if len(src) == 0 {
		return
	}
	chunk := (len(src) + parts - 1) / parts
	for lo := 0; lo < len(src); lo += chunk {
		hi := min(lo+chunk, len(src))
		g.Go(func() error {
			return guard(func() error {
				copy(dst[lo:hi], src[lo:hi])
				return nil
			})
		})
	}
}

func descriptor(f *flatmesh.FlatMesh) kernel.Descriptor {
	return kernel.Descriptor{
		Vertices:    f.Vertices,
		FaceIndices: f.FaceIndices,
		FaceSizes:   f.FaceSizes,
	}
}

// guard runs fn with memory faults turned into panics and converts any
// panic into an error.
func guard(fn func() error) (err error) {
	prev := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(prev)
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("engine panicked: %w", e)
			} else {
				err = fmt.Errorf("engine panicked: %v", r)
			}
		}
	}()
	return fn()
}

// lease owns an engine result until its single release.
type lease struct {
	res  kernel.Result
	once sync.Once
}

func newLease(res kernel.Result) *lease {
	return &lease{res: res}
}

func (l *lease) release() {
	l.once.Do(l.res.Release)
}

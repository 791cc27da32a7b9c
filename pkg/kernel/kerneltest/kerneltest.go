// Package kerneltest provides an instrumented fake engine for tests of the
// boundary layer and everything above it. It counts allocations and
// releases so leaks and double releases can be asserted.
//
// The fake treats every input as its axis-aligned bounding box:
//   - Union of overlapping boxes is their hull, otherwise both boxes.
//   - Intersection is the overlap box, or an empty result when disjoint.
//   - AMinusB / BMinusA return the first operand's box, or an empty result
//     when the other box contains it.
//   - SymmetricDifference and All return both boxes.
//
// Inputs whose face indices run past the vertex array fault with a runtime
// index panic, and inputs containing NaN coordinates fault with a nil
// dereference, mimicking a native engine crashing on corrupt geometry.
package kerneltest

import (
	"math"
	"sync"
	"time"

	"github.com/chazu/meshbool/pkg/flatmesh"
	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Stats is a snapshot of the engine counters.
type Stats struct {
	Calls          int
	Allocs         int
	Releases       int
	DoubleReleases int
	Live           int
	MaxConcurrent  int
}

// Engine is the fake. The zero value is not usable; call New.
type Engine struct {
	// Err, when set, is returned from Perform without allocating.
	Err error
	// Corrupt makes results report one face size fewer than they carry.
	Corrupt bool
	// Hold keeps Perform busy for the given duration, to observe overlap.
	Hold time.Duration

	reentrant bool

	mu     sync.Mutex
	stats  Stats
	active int
	live   map[*Result]struct{}
}

var _ kernel.Engine = (*Engine)(nil)
var _ kernel.Reentrant = (*Engine)(nil)

// New returns a fake engine that declares itself non-reentrant.
func New() *Engine {
	return &Engine{live: make(map[*Result]struct{})}
}

// NewReentrant returns a fake engine that declares itself reentrant.
func NewReentrant() *Engine {
	e := New()
	e.reentrant = true
	return e
}

// Name implements kernel.Engine.
func (e *Engine) Name() string { return "fake" }

// Reentrant implements kernel.Reentrant.
func (e *Engine) Reentrant() bool { return e.reentrant }

// Stats returns a copy of the counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Live = len(e.live)
	return s
}

// Perform implements kernel.Engine.
func (e *Engine) Perform(a, b kernel.Descriptor, op kernel.Operation) (kernel.Result, error) {
	e.mu.Lock()
	e.stats.Calls++
	e.active++
	if e.active > e.stats.MaxConcurrent {
		e.stats.MaxConcurrent = e.active
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.active--
		e.mu.Unlock()
	}()

	if e.Hold > 0 {
		time.Sleep(e.Hold)
	}
	if e.Err != nil {
		return nil, e.Err
	}

	boxA := bounds(a)
	boxB := bounds(b)

	var out *mesh.Mesh
	switch op {
	case kernel.Union:
		if boxA.overlaps(boxB) {
			out = boxA.hull(boxB).mesh()
		} else {
			out = concat(boxA.mesh(), boxB.mesh())
		}
	case kernel.Intersection:
		if boxA.overlaps(boxB) {
			out = boxA.overlap(boxB).mesh()
		}
	case kernel.AMinusB:
		if !boxB.contains(boxA) {
			out = boxA.mesh()
		}
	case kernel.BMinusA:
		if !boxA.contains(boxB) {
			out = boxB.mesh()
		}
	default:
		out = concat(boxA.mesh(), boxB.mesh())
	}

	return e.alloc(out), nil
}

// alloc registers a new live result for m; a nil m yields a zero-count
// result that still has to be released.
func (e *Engine) alloc(m *mesh.Mesh) *Result {
	r := &Result{engine: e}
	if m != nil {
		flat, err := flatmesh.Encode(m)
		if err != nil {
			panic(err)
		}
		r.vertices = flat.Vertices
		r.faceIndices = flat.FaceIndices
		r.faceSizes = flat.FaceSizes
		if e.Corrupt && len(r.faceSizes) > 0 {
			r.faceSizes = r.faceSizes[:len(r.faceSizes)-1]
		}
	}

	e.mu.Lock()
	e.stats.Allocs++
	e.live[r] = struct{}{}
	e.mu.Unlock()
	return r
}

// Result is a fake engine allocation.
type Result struct {
	engine      *Engine
	vertices    []float64
	faceIndices []int32
	faceSizes   []int32
}

var _ kernel.Result = (*Result)(nil)

func (r *Result) NumVertices() int { return len(r.vertices) }
func (r *Result) NumFaceIndices() int { return len(r.faceIndices) }
func (r *Result) NumFaces() int { return len(r.faceSizes) }
func (r *Result) Vertices() []float64 { return r.vertices }
func (r *Result) FaceIndices() []int32 { return r.faceIndices }
func (r *Result) FaceSizes() []int32 { return r.faceSizes }

// Release records the release; a second call is counted as a double release.
func (r *Result) Release() {
	e := r.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.live[r]; !ok {
		e.stats.DoubleReleases++
		return
	}
	delete(e.live, r)
	e.stats.Releases++
}

// Descriptor encodes m and returns a descriptor over the encoding.
func Descriptor(m *mesh.Mesh) kernel.Descriptor {
	flat, err := flatmesh.Encode(m)
	if err != nil {
		panic(err)
	}
	return kernel.Descriptor{Vertices: flat.Vertices, FaceIndices: flat.FaceIndices, FaceSizes: flat.FaceSizes}
}

type box struct {
	min, max r3.Vec
	empty    bool
}

// bounds walks the faces of d through their indices, so corrupt indices
// fault the same way a native engine reading the arrays would.
func bounds(d kernel.Descriptor) box {
	b := box{
		min:   r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		max:   r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
		empty: true,
	}
	for _, idx := range d.FaceIndices {
		x, y, z := d.Vertices[3*idx], d.Vertices[3*idx+1], d.Vertices[3*idx+2]
		if math.IsNaN(x) || math.IsNaN(y) || math.IsNaN(z) {
			var corrupt *float64
			x = *corrupt
		}
		b.min = r3.Vec{X: math.Min(b.min.X, x), Y: math.Min(b.min.Y, y), Z: math.Min(b.min.Z, z)}
		b.max = r3.Vec{X: math.Max(b.max.X, x), Y: math.Max(b.max.Y, y), Z: math.Max(b.max.Z, z)}
		b.empty = false
	}
	return b
}

func (b box) overlaps(o box) bool {
	if b.empty || o.empty {
		return false
	}
	return b.min.X < o.max.X && o.min.X < b.max.X &&
		b.min.Y < o.max.Y && o.min.Y < b.max.Y &&
		b.min.Z < o.max.Z && o.min.Z < b.max.Z
}

func (b box) contains(o box) bool {
	if o.empty {
		return true
	}
	if b.empty {
		return false
	}
	return b.min.X <= o.min.X && b.min.Y <= o.min.Y && b.min.Z <= o.min.Z &&
		b.max.X >= o.max.X && b.max.Y >= o.max.Y && b.max.Z >= o.max.Z
}

func (b box) hull(o box) box {
	return box{
		min: r3.Vec{X: math.Min(b.min.X, o.min.X), Y: math.Min(b.min.Y, o.min.Y), Z: math.Min(b.min.Z, o.min.Z)},
		max: r3.Vec{X: math.Max(b.max.X, o.max.X), Y: math.Max(b.max.Y, o.max.Y), Z: math.Max(b.max.Z, o.max.Z)},
	}
}

func (b box) overlap(o box) box {
	return box{
		min: r3.Vec{X: math.Max(b.min.X, o.min.X), Y: math.Max(b.min.Y, o.min.Y), Z: math.Max(b.min.Z, o.min.Z)},
		max: r3.Vec{X: math.Min(b.max.X, o.max.X), Y: math.Min(b.max.Y, o.max.Y), Z: math.Min(b.max.Z, o.max.Z)},
	}
}

func (b box) mesh() *mesh.Mesh {
	if b.empty {
		return mesh.New()
	}
	return mesh.Box(b.min, b.max)
}

func concat(a, b *mesh.Mesh) *mesh.Mesh {
	out := a.Clone()
	base := len(out.Vertices)
	out.Vertices = append(out.Vertices, b.Vertices...)
	for _, f := range b.Faces {
		shifted := make(mesh.Face, len(f))
		for i, idx := range f {
			shifted[i] = idx + base
		}
		out.Faces = append(out.Faces, shifted)
	}
	return out
}

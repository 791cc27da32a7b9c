// Package sdfx implements kernel.Engine on top of the
// github.com/deadsy/sdfx SDF-based CAD library.
//
// Input meshes are turned into signed distance fields, combined with the
// sdfx boolean operators and re-meshed with marching cubes. The output is
// an approximation of the exact boolean whose fidelity is set by the
// resolution; sharp edges are rounded at the scale of one grid cell.
//
// Results are re-meshed, not clipped: flat faces come back as many small
// triangles, so vertex counts grow with the resolution and a union can have
// more vertices than both inputs together. Callers that need exact topology
// use the carve engine.
package sdfx

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/meshbool/pkg/flatmesh"
	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/mesh"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compile-time interface checks.
var (
	_ kernel.Engine    = (*Engine)(nil)
	_ kernel.Reentrant = (*Engine)(nil)
)

// DefaultResolution is the number of marching cubes cells along the
// longest side of the result bounds.
const DefaultResolution = 48

// ErrUnsupported is returned for operations the engine cannot express.
var ErrUnsupported = errors.New("sdfx: operation not supported")

// Option configures an Engine.
type Option func(*Engine)

// WithResolution sets the marching cubes resolution. Values below four
// are ignored.
func WithResolution(cells int) Option {
	return func(e *Engine) {
		if cells >= 4 {
			e.resolution = cells
		}
	}
}

// Engine is a pure-Go boolean engine. It keeps no state between calls and
// is safe for concurrent use.
type Engine struct {
	resolution int
}

// New returns a new Engine.
func New(opts ...Option) *Engine {
	e := &Engine{resolution: DefaultResolution}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements kernel.Engine.
func (e *Engine) Name() string { return "sdfx" }

// Reentrant implements kernel.Reentrant.
func (e *Engine) Reentrant() bool { return true }

// Resolution returns the configured marching cubes resolution.
func (e *Engine) Resolution() int { return e.resolution }

// Perform implements kernel.Engine.
func (e *Engine) Perform(a, b kernel.Descriptor, op kernel.Operation) (kernel.Result, error) {
	if err := validate(a); err != nil {
		return nil, fmt.Errorf("mesh a: %w", err)
	}
	if err := validate(b); err != nil {
		return nil, fmt.Errorf("mesh b: %w", err)
	}

	sa, sb := newMeshSDF(a), newMeshSDF(b)

	// Disjoint operands never intersect; skip the field evaluation.
	if op == kernel.Intersection && (sa == nil || sb == nil || !overlaps(sa, sb)) {
		return kernel.NewMemResult(nil, nil, nil), nil
	}

	s, err := combine(sa, sb, op)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return kernel.NewMemResult(nil, nil, nil), nil
	}

	m := e.toMesh(s)
	flat, err := flatmesh.Encode(m)
	if err != nil {
		return nil, fmt.Errorf("sdfx: encode result: %w", err)
	}
	return kernel.NewMemResult(flat.Vertices, flat.FaceIndices, flat.FaceSizes), nil
}

// combine maps op onto the sdfx operators. A nil SDF stands for an empty
// solid and a nil return means the result is empty.
func combine(a, b *meshSDF, op kernel.Operation) (sdf.SDF3, error) {
	switch op {
	case kernel.Union:
		switch {
		case a == nil && b == nil:
			return nil, nil
		case a == nil:
			return b, nil
		case b == nil:
			return a, nil
		}
		return sdf.Union3D(a, b), nil
	case kernel.Intersection:
		if a == nil || b == nil {
			return nil, nil
		}
		return sdf.Intersect3D(a, b), nil
	case kernel.AMinusB:
		return difference(a, b), nil
	case kernel.BMinusA:
		return difference(b, a), nil
	case kernel.SymmetricDifference:
		ab, ba := difference(a, b), difference(b, a)
		switch {
		case ab == nil:
			return ba, nil
		case ba == nil:
			return ab, nil
		}
		return sdf.Union3D(ab, ba), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, op)
	}
}

func difference(a, b *meshSDF) sdf.SDF3 {
	switch {
	case a == nil:
		return nil
	case b == nil || !overlaps(a, b):
		return a
	}
	return sdf.Difference3D(a, b)
}

// toMesh extracts the zero surface of s and welds the per-triangle
// vertices marching cubes emits into a shared-vertex mesh.
func (e *Engine) toMesh(s sdf.SDF3) *mesh.Mesh {
	renderer := render.NewMarchingCubesUniform(e.resolution)
	triangles := render.ToTriangles(s, renderer)

	m := mesh.New()
	for _, tri := range triangles {
		i0 := m.AddVertex(r3.Vec{X: tri[0].X, Y: tri[0].Y, Z: tri[0].Z})
		i1 := m.AddVertex(r3.Vec{X: tri[1].X, Y: tri[1].Y, Z: tri[1].Z})
		i2 := m.AddVertex(r3.Vec{X: tri[2].X, Y: tri[2].Y, Z: tri[2].Z})
		m.AddTriangle(i0, i1, i2)
	}

	bb := s.BoundingBox()
	size := r3.Sub(fromV3(bb.Max), fromV3(bb.Min))
	cell := math.Max(size.X, math.Max(size.Y, size.Z)) / float64(e.resolution)
	m.WeldWithin(math.Pi, cell*1e-6)
	return compact(m)
}

// compact drops vertices no face refers to, keeping the order of the rest.
func compact(m *mesh.Mesh) *mesh.Mesh {
	remap := make([]int, len(m.Vertices))
	for i := range remap {
		remap[i] = -1
	}
	out := mesh.New()
	for _, f := range m.Faces {
		idx := make([]int, len(f))
		for j, v := range f {
			if remap[v] < 0 {
				remap[v] = out.AddVertex(m.Vertices[v])
			}
			idx[j] = remap[v]
		}
		out.AddFace(idx...)
	}
	return out
}

func overlaps(a, b *meshSDF) bool {
	return a.min.X <= b.max.X && b.min.X <= a.max.X &&
		a.min.Y <= b.max.Y && b.min.Y <= a.max.Y &&
		a.min.Z <= b.max.Z && b.min.Z <= a.max.Z
}

func validate(d kernel.Descriptor) error {
	f := flatmesh.FlatMesh{Vertices: d.Vertices, FaceIndices: d.FaceIndices, FaceSizes: d.FaceSizes}
	return f.Validate()
}

// Package mesh defines the caller-side polygon mesh: shared vertices plus
// faces of arbitrary arity. The boolean pipeline only produces and consumes
// triangles and quads; other arities are representable but rejected by the
// flat codec.
package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Face is an ordered list of vertex indices, counter-clockwise when seen
// from outside the solid.
type Face []int

// Mesh is a polygon mesh.
type Mesh struct {
	Vertices []r3.Vec
	Faces    []Face
}

// New returns an empty mesh.
func New() *Mesh {
	return &Mesh{}
}

// AddVertex appends a vertex and returns its index.
func (m *Mesh) AddVertex(v r3.Vec) int {
	m.Vertices = append(m.Vertices, v)
	return len(m.Vertices) - 1
}

// AddTriangle appends a triangle face.
func (m *Mesh) AddTriangle(a, b, c int) {
	m.Faces = append(m.Faces, Face{a, b, c})
}

// AddQuad appends a quad face.
func (m *Mesh) AddQuad(a, b, c, d int) {
	m.Faces = append(m.Faces, Face{a, b, c, d})
}

// AddFace appends a face with any number of indices.
func (m *Mesh) AddFace(indices ...int) {
	f := make(Face, len(indices))
	copy(f, indices)
	m.Faces = append(m.Faces, f)
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// FaceCount returns the number of faces.
func (m *Mesh) FaceCount() int {
	return len(m.Faces)
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Vertices: make([]r3.Vec, len(m.Vertices)),
		Faces:    make([]Face, len(m.Faces)),
	}
	copy(c.Vertices, m.Vertices)
	for i, f := range m.Faces {
		c.Faces[i] = append(Face(nil), f...)
	}
	return c
}

// BoundingBox returns the axis-aligned bounding box. An empty mesh has a
// zero box.
func (m *Mesh) BoundingBox() (min, max r3.Vec) {
	if len(m.Vertices) == 0 {
		return min, max
	}
	min = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max = r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, v := range m.Vertices {
		min.X, max.X = math.Min(min.X, v.X), math.Max(max.X, v.X)
		min.Y, max.Y = math.Min(min.Y, v.Y), math.Max(max.Y, v.Y)
		min.Z, max.Z = math.Min(min.Z, v.Z), math.Max(max.Z, v.Z)
	}
	return min, max
}

// Translate moves every vertex by d.
func (m *Mesh) Translate(d r3.Vec) {
	for i := range m.Vertices {
		m.Vertices[i] = r3.Add(m.Vertices[i], d)
	}
}

// Validate checks that every face has at least three indices and that
// every index refers to an existing vertex.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	for i, f := range m.Faces {
		if len(f) < 3 {
			return fmt.Errorf("mesh: face %d has %d vertices, need at least 3", i, len(f))
		}
		for _, idx := range f {
			if idx < 0 || idx >= n {
				return fmt.Errorf("mesh: face %d references vertex %d, mesh has %d vertices", i, idx, n)
			}
		}
	}
	return nil
}

// faceNormal returns the area-weighted normal of f using Newell's method,
// which tolerates non-planar polygons.
func (m *Mesh) faceNormal(f Face) r3.Vec {
	var n r3.Vec
	for i := range f {
		a := m.Vertices[f[i]]
		b := m.Vertices[f[(i+1)%len(f)]]
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	return r3.Scale(0.5, n)
}

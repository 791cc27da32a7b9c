// Package flatmesh converts meshes to and from the engine-neutral flat
// layout: a coordinate array with three doubles per vertex, the face
// indices of every face concatenated in face order, and one size per face.
//
// A FlatMesh is a value object. Its slices are exported so descriptors can
// alias them without copying, and nothing may write to them after the
// constructor returns.
package flatmesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/meshbool/pkg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrUnsupportedFace is returned for faces that are neither triangles nor quads.
	ErrUnsupportedFace = errors.New("unsupported face size")
	// ErrIndexOutOfRange is returned when a face refers to a missing vertex.
	ErrIndexOutOfRange = errors.New("face index out of range")
	// ErrMalformed is returned when the arrays break the layout invariants.
	ErrMalformed = errors.New("malformed flat mesh")
)

// FlatMesh is a mesh as three parallel primitive arrays.
type FlatMesh struct {
	Vertices    []float64 // [x0,y0,z0, x1,y1,z1, ...]
	FaceIndices []int32   // face 0 indices, then face 1 indices, ...
	FaceSizes   []int32   // vertex count of each face
}

// New builds a FlatMesh over the given arrays after validating them. The
// arrays are adopted, not copied.
func New(vertices []float64, faceIndices, faceSizes []int32) (*FlatMesh, error) {
	f := &FlatMesh{Vertices: vertices, FaceIndices: faceIndices, FaceSizes: faceSizes}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// VertexCount returns the number of vertices.
func (f *FlatMesh) VertexCount() int {
	return len(f.Vertices) / 3
}

// FaceCount returns the number of faces.
func (f *FlatMesh) FaceCount() int {
	return len(f.FaceSizes)
}

// IsEmpty returns true if the mesh has no vertices.
func (f *FlatMesh) IsEmpty() bool {
	return len(f.Vertices) == 0
}

// Validate checks the layout invariants: whole vertex triples, positive
// face sizes summing to the index count, and every index below the vertex
// count.
func (f *FlatMesh) Validate() error {
	if len(f.Vertices)%3 != 0 {
		return fmt.Errorf("%w: %d coordinate values is not a multiple of 3", ErrMalformed, len(f.Vertices))
	}
	total := 0
	for i, s := range f.FaceSizes {
		if s <= 0 {
			return fmt.Errorf("%w: face %d has size %d", ErrMalformed, i, s)
		}
		total += int(s)
	}
	if total != len(f.FaceIndices) {
		return fmt.Errorf("%w: face sizes sum to %d but there are %d face indices",
			ErrMalformed, total, len(f.FaceIndices))
	}
	n := int32(f.VertexCount())
	for i, idx := range f.FaceIndices {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: face index %d at position %d, mesh has %d vertices",
				ErrIndexOutOfRange, idx, i, n)
		}
	}
	return nil
}

// Encode flattens m. Only triangle and quad faces are accepted.
func Encode(m *mesh.Mesh) (*FlatMesh, error) {
	if err := Check(m); err != nil {
		return nil, fmt.Errorf("flatmesh: encode: %w", err)
	}

	vertices := make([]float64, 0, len(m.Vertices)*3)
	for _, v := range m.Vertices {
		vertices = append(vertices, v.X, v.Y, v.Z)
	}

	faceSizes := make([]int32, len(m.Faces))
	faceIndices := make([]int32, 0, len(m.Faces)*4)
	for i, face := range m.Faces {
		faceSizes[i] = int32(len(face))
		for _, idx := range face {
			faceIndices = append(faceIndices, int32(idx))
		}
	}

	return &FlatMesh{
		Vertices:    vertices,
		FaceIndices: faceIndices,
		FaceSizes:   faceSizes,
	}, nil
}

// Check reports whether m can be encoded as is: every face is a triangle
// or a quad and every index refers to an existing vertex. It does not
// modify m.
func Check(m *mesh.Mesh) error {
	if m == nil {
		return errors.New("nil mesh")
	}
	n := len(m.Vertices)
	if n > math.MaxInt32 {
		return fmt.Errorf("%d vertices exceed the 32-bit index range", n)
	}
	for i, face := range m.Faces {
		if len(face) != 3 && len(face) != 4 {
			return fmt.Errorf("face %d has %d vertices: %w", i, len(face), ErrUnsupportedFace)
		}
		for _, idx := range face {
			if idx < 0 || idx >= n {
				return fmt.Errorf("face %d references vertex %d of %d: %w", i, idx, n, ErrIndexOutOfRange)
			}
		}
	}
	return nil
}

// Decode rebuilds a mesh from f. Faces are read by consuming FaceSizes[i]
// indices from a running offset; sizes other than 3 and 4 are rejected.
func Decode(f *FlatMesh) (*mesh.Mesh, error) {
	if f == nil {
		return nil, errors.New("flatmesh: decode: nil flat mesh")
	}
	if len(f.Vertices)%3 != 0 {
		return nil, fmt.Errorf("flatmesh: decode: %w: %d coordinate values", ErrMalformed, len(f.Vertices))
	}

	n := f.VertexCount()
	m := &mesh.Mesh{
		Vertices: make([]r3.Vec, n),
		Faces:    make([]mesh.Face, 0, len(f.FaceSizes)),
	}
	for i := 0; i < n; i++ {
		m.Vertices[i] = r3.Vec{X: f.Vertices[3*i], Y: f.Vertices[3*i+1], Z: f.Vertices[3*i+2]}
	}

	offset := 0
	for i, size := range f.FaceSizes {
		if size != 3 && size != 4 {
			return nil, fmt.Errorf("flatmesh: decode: face %d has size %d: %w", i, size, ErrUnsupportedFace)
		}
		end := offset + int(size)
		if end > len(f.FaceIndices) {
			return nil, fmt.Errorf("flatmesh: decode: face %d needs indices [%d,%d) but only %d exist: %w",
				i, offset, end, len(f.FaceIndices), ErrMalformed)
		}
		face := make(mesh.Face, size)
		for j, idx := range f.FaceIndices[offset:end] {
			if idx < 0 || int(idx) >= n {
				return nil, fmt.Errorf("flatmesh: decode: face %d references vertex %d of %d: %w",
					i, idx, n, ErrIndexOutOfRange)
			}
			face[j] = int(idx)
		}
		m.Faces = append(m.Faces, face)
		offset = end
	}
	if offset != len(f.FaceIndices) {
		return nil, fmt.Errorf("flatmesh: decode: %d trailing face indices: %w", len(f.FaceIndices)-offset, ErrMalformed)
	}

	return m, nil
}

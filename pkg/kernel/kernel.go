// Package kernel defines the contract of the opaque boolean engine.
// Engines (carve, sdfx, isolate) receive two flat mesh descriptors and an
// operation ordinal and hand back an engine-owned result that must be
// released exactly once. The abstraction lets backends be swapped without
// touching the boundary layer.
package kernel

// Descriptor is the engine-side view of a request mesh. Its slices alias
// the caller's buffers; an engine must not retain or modify them after
// Perform returns.
type Descriptor struct {
	Vertices    []float64 // 3 values per vertex
	FaceIndices []int32   // concatenated face indices
	FaceSizes   []int32   // vertex count per face
}

// NumVertices returns the total number of coordinate values (3 per vertex).
func (d Descriptor) NumVertices() int { return len(d.Vertices) }

// NumFaceIndices returns the total number of face index values.
func (d Descriptor) NumFaceIndices() int { return len(d.FaceIndices) }

// NumFaces returns the number of faces.
func (d Descriptor) NumFaces() int { return len(d.FaceSizes) }

// Result is a mesh allocated by an engine. The slices returned by the
// accessors point into engine memory and are valid only until Release.
type Result interface {
	// Reported sizes, in the same units as Descriptor.
	NumVertices() int
	NumFaceIndices() int
	NumFaces() int

	Vertices() []float64
	FaceIndices() []int32
	FaceSizes() []int32

	// Release frees the engine memory. It must be called exactly once.
	Release()
}

// Engine is the boolean geometry engine.
type Engine interface {
	// Name identifies the engine in logs and errors.
	Name() string

	// Perform computes op(a, b). A nil Result with a nil error means the
	// engine produced nothing; a Result with zero vertices means the same
	// and still has to be released.
	Perform(a, b Descriptor, op Operation) (Result, error)
}

// Reentrant is implemented by engines that tolerate concurrent Perform
// calls. Engines that do not implement it, or return false, are called
// one at a time.
type Reentrant interface {
	Reentrant() bool
}

// IsReentrant reports whether e declares itself safe for concurrent use.
func IsReentrant(e Engine) bool {
	r, ok := e.(Reentrant)
	return ok && r.Reentrant()
}

package kernel

// MemResult is a Result whose arrays live on the Go heap. Pure-Go engines
// return it; Release drops the references.
type MemResult struct {
	vertices    []float64
	faceIndices []int32
	faceSizes   []int32
	released    bool
}

var _ Result = (*MemResult)(nil)

// NewMemResult wraps the arrays without copying.
func NewMemResult(vertices []float64, faceIndices, faceSizes []int32) *MemResult {
	return &MemResult{vertices: vertices, faceIndices: faceIndices, faceSizes: faceSizes}
}

func (r *MemResult) NumVertices() int { return len(r.vertices) }
func (r *MemResult) NumFaceIndices() int { return len(r.faceIndices) }
func (r *MemResult) NumFaces() int { return len(r.faceSizes) }
func (r *MemResult) Vertices() []float64 { return r.vertices }
func (r *MemResult) FaceIndices() []int32 { return r.faceIndices }
func (r *MemResult) FaceSizes() []int32 { return r.faceSizes }
func (r *MemResult) Released() bool { return r.released }

// Release drops the arrays. Later accessor calls return nil.
func (r *MemResult) Release() {
	r.vertices, r.faceIndices, r.faceSizes = nil, nil, nil
	r.released = true
}

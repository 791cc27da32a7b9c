//go:build carve

// Package carve provides a CGo binding to the Carve CSG library through
// CarveLibWrapper (performCSG / freeMesh). Carve computes exact booleans on
// polygon meshes and triangulates its output.
//
// This package requires Carve and CarveLibWrapper to be installed, with
// Wrapper.h on the include path and libcarvewrapper / libcarve on the
// library path.
// Build with: go build -tags=carve
package carve

/*
#cgo CXXFLAGS: -std=c++14 -I/usr/local/include -I/usr/local/include/carvewrapper
#cgo LDFLAGS: -L/usr/local/lib -lcarvewrapper -lcarve -lstdc++

#include <stdlib.h>
#include "carve_shim.h"
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/chazu/meshbool/pkg/kernel"
)

// Compile-time interface checks.
var _ kernel.Engine = (*Engine)(nil)
var _ kernel.Result = (*result)(nil)

// Engine implements kernel.Engine using Carve. Carve is not known to be
// safe for concurrent use, so Engine does not declare itself reentrant.
type Engine struct{}

// New creates a new Carve engine.
func New() (kernel.Engine, error) {
	return &Engine{}, nil
}

// Name implements kernel.Engine.
func (e *Engine) Name() string { return "carve" }

// Perform implements kernel.Engine. The request arrays are pinned for the
// duration of the call and read by Carve in place.
func (e *Engine) Perform(a, b kernel.Descriptor, op kernel.Operation) (kernel.Result, error) {
	var pinner runtime.Pinner
	defer pinner.Unpin()

	ca := newCMesh(&pinner, a)
	cb := newCMesh(&pinner, b)
	pinner.Pin(ca)
	pinner.Pin(cb)

	res := C.carve_perform(ca, cb, C.int(op))
	if res.error != nil {
		msg := C.GoString(res.error)
		C.carve_free_error(res.error)
		return nil, fmt.Errorf("carve: %s", msg)
	}
	if res.mesh == nil {
		return nil, nil
	}
	return newResult(res.mesh), nil
}

// newCMesh builds the C record over the descriptor's arrays.
func newCMesh(p *runtime.Pinner, d kernel.Descriptor) *C.CarveMesh {
	m := &C.CarveMesh{
		numVertices:    C.int(len(d.Vertices)),
		numFaces:       C.int(len(d.FaceSizes)),
		numFaceIndices: C.int(len(d.FaceIndices)),
	}
	if len(d.Vertices) > 0 {
		p.Pin(&d.Vertices[0])
		m.vertices = (*C.double)(unsafe.Pointer(&d.Vertices[0]))
	}
	if len(d.FaceIndices) > 0 {
		p.Pin(&d.FaceIndices[0])
		m.faceIndices = (*C.int)(unsafe.Pointer(&d.FaceIndices[0]))
	}
	if len(d.FaceSizes) > 0 {
		p.Pin(&d.FaceSizes[0])
		m.faceSizes = (*C.int)(unsafe.Pointer(&d.FaceSizes[0]))
	}
	return m
}

// result is a Carve-allocated mesh. The slices view C memory and are
// invalid after Release.
type result struct {
	ptr         *C.CarveMesh
	vertices    []float64
	faceIndices []int32
	faceSizes   []int32
}

func newResult(ptr *C.CarveMesh) *result {
	r := &result{ptr: ptr}
	// An empty result leaves numFaceIndices unset; only trust the counts
	// when there are vertices.
	if ptr.numVertices <= 0 {
		return r
	}
	r.vertices = unsafe.Slice((*float64)(unsafe.Pointer(ptr.vertices)), int(ptr.numVertices))
	r.faceIndices = unsafe.Slice((*int32)(unsafe.Pointer(ptr.faceIndices)), int(ptr.numFaceIndices))
	r.faceSizes = unsafe.Slice((*int32)(unsafe.Pointer(ptr.faceSizes)), int(ptr.numFaces))
	return r
}

func (r *result) NumVertices() int { return len(r.vertices) }
func (r *result) NumFaceIndices() int { return len(r.faceIndices) }
func (r *result) NumFaces() int { return len(r.faceSizes) }
func (r *result) Vertices() []float64 { return r.vertices }
func (r *result) FaceIndices() []int32 { return r.faceIndices }
func (r *result) FaceSizes() []int32 { return r.faceSizes }

// Release frees the arrays and the record in C.
func (r *result) Release() {
	if r.ptr == nil {
		return
	}
	C.carve_release(r.ptr)
	r.ptr = nil
	r.vertices, r.faceIndices, r.faceSizes = nil, nil, nil
}

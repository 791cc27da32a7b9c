// Package csg is the entry point for boolean operations on meshes. It
// welds the inputs, encodes them, runs the operation through a boundary
// Invoker and decodes the result.
package csg

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chazu/meshbool/pkg/boundary"
	"github.com/chazu/meshbool/pkg/flatmesh"
	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/logging"
	"github.com/chazu/meshbool/pkg/mesh"
)

// Errors returned by Perform, re-exported from kernel so callers need
// only this package.
var (
	ErrInvalidInput     = kernel.ErrInvalidInput
	ErrInvalidOperation = kernel.ErrInvalidOperation
)

// EngineFault reports an engine failure on otherwise valid arguments.
type EngineFault = kernel.EngineFault

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWeldAngle sets the maximum angle in radians between vertex normals
// for coincident vertices to be merged before the operation.
func WithWeldAngle(angle float64) Option {
	return func(d *Dispatcher) { d.weldAngle = angle }
}

// WithWeldDistance sets the distance below which vertices count as
// coincident. Zero means exact coincidence.
func WithWeldDistance(distance float64) Option {
	return func(d *Dispatcher) { d.weldDistance = distance }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher runs boolean operations on native meshes.
type Dispatcher struct {
	inv          *boundary.Invoker
	weldAngle    float64
	weldDistance float64
	logger       *log.Logger
}

// New creates a Dispatcher over inv.
func New(inv *boundary.Invoker, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		inv:          inv,
		weldAngle:    mesh.DefaultWeldAngle,
		weldDistance: mesh.DefaultWeldDistance,
		logger:       logging.Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Perform computes op(a, b).
//
// Inputs whose faces are not triangles or quads, or that reference
// missing vertices, are rejected with ErrInvalidInput and left untouched.
// Valid inputs are welded in place first; callers observe the merged
// vertices. A nil mesh with a nil error means the operation produced no
// geometry.
func (d *Dispatcher) Perform(a, b *mesh.Mesh, op kernel.Operation) (*mesh.Mesh, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: %d (expected %s)", ErrInvalidOperation, int(op), kernel.Usage())
	}
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: mesh is nil", ErrInvalidInput)
	}

	// The weld indexes vertices through the faces, so broken inputs must
	// be refused before it runs.
	if err := flatmesh.Check(a); err != nil {
		return nil, fmt.Errorf("%w: mesh a: %w", ErrInvalidInput, err)
	}
	if err := flatmesh.Check(b); err != nil {
		return nil, fmt.Errorf("%w: mesh b: %w", ErrInvalidInput, err)
	}

	removed := a.WeldWithin(d.weldAngle, d.weldDistance)
	if b != a {
		removed += b.WeldWithin(d.weldAngle, d.weldDistance)
	}
	if removed > 0 {
		d.logger.Debug("welded inputs", "removed", removed)
	}

	fa, err := flatmesh.Encode(a)
	if err != nil {
		return nil, fmt.Errorf("%w: mesh a: %w", ErrInvalidInput, err)
	}
	fb, err := flatmesh.Encode(b)
	if err != nil {
		return nil, fmt.Errorf("%w: mesh b: %w", ErrInvalidInput, err)
	}

	out, err := d.inv.Invoke(fa, fb, op)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}

	result, err := flatmesh.Decode(out)
	if err != nil {
		return nil, kernel.AsFault(d.inv.Engine().Name(), op, fmt.Errorf("decode result: %w", err))
	}
	return result, nil
}

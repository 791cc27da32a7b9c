//go:build carve

package carve

import (
	"math"
	"testing"

	"github.com/chazu/meshbool/pkg/boundary"
	"github.com/chazu/meshbool/pkg/csg"
	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/chazu/meshbool/pkg/logging"
	"github.com/chazu/meshbool/pkg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

func mustDispatcher(t *testing.T) *csg.Dispatcher {
	t.Helper()
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	inv := boundary.New(e, boundary.WithLogger(logging.Discard()))
	return csg.New(inv, csg.WithLogger(logging.Discard()))
}

func TestUnionOfOverlappingCubes(t *testing.T) {
	d := mustDispatcher(t)
	a := mesh.UnitCube(r3.Vec{})
	b := mesh.UnitCube(r3.Vec{X: 0.5})

	out, err := d.Perform(a, b, kernel.Union)
	if err != nil {
		t.Fatalf("Perform(Union) error = %v", err)
	}
	if out == nil {
		t.Fatal("Perform(Union) returned no result")
	}
	if out.VertexCount() >= a.VertexCount()+b.VertexCount() {
		t.Errorf("union has %d vertices, want fewer than %d", out.VertexCount(), a.VertexCount()+b.VertexCount())
	}

	min, max := out.BoundingBox()
	if min != (r3.Vec{}) {
		t.Errorf("union min = %v, want origin", min)
	}
	if math.Abs(max.X-1.5) > 1e-9 || math.Abs(max.Y-1) > 1e-9 || math.Abs(max.Z-1) > 1e-9 {
		t.Errorf("union max = %v, want (1.5, 1, 1)", max)
	}
}

func TestDisjointIntersectionIsNoResult(t *testing.T) {
	d := mustDispatcher(t)
	out, err := d.Perform(mesh.UnitCube(r3.Vec{}), mesh.UnitCube(r3.Vec{X: 3}), kernel.Intersection)
	if err != nil {
		t.Fatalf("Perform(Intersection) error = %v", err)
	}
	if out != nil {
		t.Fatalf("disjoint intersection returned %d vertices, want no result", out.VertexCount())
	}
}

func TestDifference(t *testing.T) {
	d := mustDispatcher(t)
	out, err := d.Perform(mesh.UnitCube(r3.Vec{}), mesh.UnitCube(r3.Vec{X: 0.5}), kernel.AMinusB)
	if err != nil {
		t.Fatalf("Perform(AMinusB) error = %v", err)
	}
	if out == nil {
		t.Fatal("Perform(AMinusB) returned no result")
	}
	_, max := out.BoundingBox()
	if math.Abs(max.X-0.5) > 1e-9 {
		t.Errorf("difference max.X = %f, want 0.5", max.X)
	}
	for _, f := range out.Faces {
		if len(f) != 3 {
			t.Fatalf("face has %d vertices, want triangulated output", len(f))
		}
	}
}

func TestAllOperations(t *testing.T) {
	d := mustDispatcher(t)
	for _, op := range kernel.Operations() {
		t.Run(op.String(), func(t *testing.T) {
			_, err := d.Perform(mesh.UnitCube(r3.Vec{}), mesh.UnitCube(r3.Vec{X: 0.5, Y: 0.5}), op)
			if err != nil {
				t.Fatalf("Perform(%s) error = %v", op, err)
			}
		})
	}
}

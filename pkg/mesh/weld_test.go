package mesh

import (
	"bytes"
	"math"
	"os"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/chazu/meshbool/pkg/logging"
	"gonum.org/v1/gonum/spatial/r3"
)

// explodedCube returns a unit cube whose six quads each own their four
// vertices, so every corner appears three times.
func explodedCube() *Mesh {
	src := UnitCube(r3.Vec{})
	m := New()
	for _, f := range src.Faces {
		var idx []int
		for _, v := range f {
			idx = append(idx, m.AddVertex(src.Vertices[v]))
		}
		m.AddFace(idx...)
	}
	return m
}

func TestWeldPositional(t *testing.T) {
	m := explodedCube()
	if m.VertexCount() != 24 {
		t.Fatalf("setup: VertexCount() = %d, want 24", m.VertexCount())
	}

	removed := m.Weld(DefaultWeldAngle)
	if removed != 16 {
		t.Errorf("Weld removed %d vertices, want 16", removed)
	}
	if m.VertexCount() != 8 {
		t.Errorf("VertexCount() = %d, want 8", m.VertexCount())
	}
	if m.FaceCount() != 6 {
		t.Errorf("FaceCount() = %d, want 6", m.FaceCount())
	}
	if err := m.Validate(); err != nil {
		t.Errorf("welded mesh invalid: %v", err)
	}
}

func TestWeldKeepsFirstOccurrenceOrder(t *testing.T) {
	m := explodedCube()
	first := m.Vertices[0]
	m.Weld(math.Pi)
	if m.Vertices[0] != first {
		t.Errorf("Vertices[0] = %v, want %v", m.Vertices[0], first)
	}
}

func TestWeldAngleLimited(t *testing.T) {
	tests := []struct {
		name        string
		angle       float64
		wantRemoved int
	}{
		// Each corner copy carries the normal of one of three perpendicular faces.
		{"sharp edges kept", 0.1, 0},
		{"right angles merged", math.Pi/2 + 0.01, 16},
		{"full range", math.Pi, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := explodedCube()
			if got := m.Weld(tt.angle); got != tt.wantRemoved {
				t.Errorf("Weld(%g) removed %d, want %d", tt.angle, got, tt.wantRemoved)
			}
		})
	}
}

func TestWeldWithinDistance(t *testing.T) {
	build := func() *Mesh {
		m := New()
		a := m.AddVertex(r3.Vec{})
		b := m.AddVertex(r3.Vec{X: 1})
		c := m.AddVertex(r3.Vec{Y: 1})
		d := m.AddVertex(r3.Vec{X: 1e-6})
		e := m.AddVertex(r3.Vec{X: 1, Y: 1})
		m.AddTriangle(a, b, c)
		m.AddTriangle(d, e, c)
		return m
	}

	exact := build()
	if got := exact.WeldWithin(math.Pi, 0); got != 0 {
		t.Errorf("exact weld removed %d, want 0", got)
	}

	near := build()
	if got := near.WeldWithin(math.Pi, 1e-5); got != 1 {
		t.Errorf("tolerant weld removed %d, want 1", got)
	}
	if near.Faces[1][0] != 0 {
		t.Errorf("second face = %v, want it to start at vertex 0", near.Faces[1])
	}
}

func TestWeldDropsCollapsedFaces(t *testing.T) {
	m := New()
	a := m.AddVertex(r3.Vec{})
	b := m.AddVertex(r3.Vec{X: 1})
	c := m.AddVertex(r3.Vec{Y: 1})
	dup := m.AddVertex(r3.Vec{X: 1})
	m.AddTriangle(a, b, c)
	m.AddTriangle(a, b, dup)

	m.Weld(math.Pi)
	if m.FaceCount() != 1 {
		t.Fatalf("FaceCount() = %d, want 1 (degenerate face dropped)", m.FaceCount())
	}
	if m.VertexCount() != 3 {
		t.Errorf("VertexCount() = %d, want 3", m.VertexCount())
	}
}

func TestWeldEmpty(t *testing.T) {
	if got := New().Weld(math.Pi); got != 0 {
		t.Errorf("Weld on empty mesh removed %d", got)
	}
}

func TestWeldDoesNotLog(t *testing.T) {
	var buf bytes.Buffer
	l := logging.Logger()
	l.SetOutput(&buf)
	l.SetLevel(log.DebugLevel)
	t.Cleanup(func() {
		l.SetOutput(os.Stderr)
		l.SetLevel(log.InfoLevel)
	})

	m := explodedCube()
	if got := m.Weld(DefaultWeldAngle); got != 16 {
		t.Fatalf("Weld removed %d, want 16", got)
	}
	if buf.Len() != 0 {
		t.Errorf("Weld wrote to the shared logger: %q", buf.String())
	}
}

package mesh

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestMeshCounts(t *testing.T) {
	tests := []struct {
		name      string
		mesh      *Mesh
		wantVerts int
		wantFaces int
		wantEmpty bool
	}{
		{"empty", New(), 0, 0, true},
		{"box", UnitCube(r3.Vec{}), 8, 6, false},
		{"vertex only", &Mesh{Vertices: []r3.Vec{{X: 1}}}, 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mesh.VertexCount(); got != tt.wantVerts {
				t.Errorf("VertexCount() = %d, want %d", got, tt.wantVerts)
			}
			if got := tt.mesh.FaceCount(); got != tt.wantFaces {
				t.Errorf("FaceCount() = %d, want %d", got, tt.wantFaces)
			}
			if got := tt.mesh.IsEmpty(); got != tt.wantEmpty {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.wantEmpty)
			}
		})
	}
}

func TestAddFaceCopiesIndices(t *testing.T) {
	m := New()
	idx := []int{0, 1, 2}
	m.AddFace(idx...)
	idx[0] = 7
	if m.Faces[0][0] != 0 {
		t.Errorf("AddFace aliased caller slice: face = %v", m.Faces[0])
	}
}

func TestBoundingBox(t *testing.T) {
	m := Box(r3.Vec{X: -1, Y: 2, Z: 3}, r3.Vec{X: 4, Y: 5, Z: 6})
	min, max := m.BoundingBox()
	if min != (r3.Vec{X: -1, Y: 2, Z: 3}) {
		t.Errorf("min = %v, want (-1 2 3)", min)
	}
	if max != (r3.Vec{X: 4, Y: 5, Z: 6}) {
		t.Errorf("max = %v, want (4 5 6)", max)
	}

	min, max = New().BoundingBox()
	if min != (r3.Vec{}) || max != (r3.Vec{}) {
		t.Errorf("empty mesh box = %v %v, want zero", min, max)
	}
}

func TestBoxFacesPointOutward(t *testing.T) {
	m := UnitCube(r3.Vec{})
	center := r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	for i, f := range m.Faces {
		n := m.faceNormal(f)
		var c r3.Vec
		for _, idx := range f {
			c = r3.Add(c, m.Vertices[idx])
		}
		c = r3.Scale(1/float64(len(f)), c)
		if r3.Dot(n, r3.Sub(c, center)) <= 0 {
			t.Errorf("face %d normal %v points inward", i, n)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := UnitCube(r3.Vec{})
	c := m.Clone()
	c.Vertices[0].X = 42
	c.Faces[0][0] = 5
	if m.Vertices[0].X == 42 {
		t.Error("Clone shares vertex storage")
	}
	if m.Faces[0][0] == 5 {
		t.Error("Clone shares face storage")
	}
}

func TestTranslate(t *testing.T) {
	m := UnitCube(r3.Vec{})
	m.Translate(r3.Vec{X: 10, Y: 20, Z: 30})
	min, max := m.BoundingBox()
	if min != (r3.Vec{X: 10, Y: 20, Z: 30}) || max != (r3.Vec{X: 11, Y: 21, Z: 31}) {
		t.Errorf("translated box = %v..%v", min, max)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mesh    *Mesh
		wantErr bool
	}{
		{"box", UnitCube(r3.Vec{}), false},
		{"two index face", &Mesh{Vertices: make([]r3.Vec, 3), Faces: []Face{{0, 1}}}, true},
		{"index out of range", &Mesh{Vertices: make([]r3.Vec, 3), Faces: []Face{{0, 1, 3}}}, true},
		{"negative index", &Mesh{Vertices: make([]r3.Vec, 3), Faces: []Face{{0, -1, 2}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mesh.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

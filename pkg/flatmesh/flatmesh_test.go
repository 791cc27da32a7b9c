package flatmesh

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/chazu/meshbool/pkg/mesh"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/spatial/r3"
)

// randomMesh builds a mesh of random triangles and quads over random
// vertices. Faces may reuse vertices in any order.
func randomMesh(rng *rand.Rand, verts, faces int) *mesh.Mesh {
	m := mesh.New()
	for i := 0; i < verts; i++ {
		m.AddVertex(r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()})
	}
	for i := 0; i < faces; i++ {
		size := 3 + rng.Intn(2)
		idx := make([]int, size)
		for j := range idx {
			idx[j] = rng.Intn(verts)
		}
		m.AddFace(idx...)
	}
	return m
}

func mixedMesh() *mesh.Mesh {
	m := mesh.New()
	for _, v := range []r3.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}, {X: 0.5, Y: 0.5, Z: 1}} {
		m.AddVertex(v)
	}
	m.AddQuad(0, 3, 2, 1)
	m.AddTriangle(0, 1, 4)
	m.AddTriangle(1, 2, 4)
	m.AddTriangle(2, 3, 4)
	m.AddTriangle(3, 0, 4)
	return m
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tests := []struct {
		name string
		mesh *mesh.Mesh
	}{
		{"empty", mesh.New()},
		{"cube", mesh.UnitCube(r3.Vec{X: 2})},
		{"pyramid", mixedMesh()},
		{"random small", randomMesh(rng, 5, 9)},
		{"random large", randomMesh(rng, 500, 2000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flat, err := Encode(tt.mesh)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := Decode(flat)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if diff := cmp.Diff(tt.mesh, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		m := randomMesh(rng, 1+rng.Intn(40), rng.Intn(80))
		flat, err := Encode(m)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if err := flat.Validate(); err != nil {
			t.Fatalf("encoded mesh fails Validate: %v", err)
		}

		sum := 0
		for _, s := range flat.FaceSizes {
			sum += int(s)
		}
		if sum != len(flat.FaceIndices) {
			t.Errorf("sum(FaceSizes) = %d, len(FaceIndices) = %d", sum, len(flat.FaceIndices))
		}
		if len(flat.Vertices) != 3*m.VertexCount() {
			t.Errorf("len(Vertices) = %d, want %d", len(flat.Vertices), 3*m.VertexCount())
		}
		for _, idx := range flat.FaceIndices {
			if int(idx) >= flat.VertexCount() {
				t.Errorf("index %d >= vertex count %d", idx, flat.VertexCount())
			}
		}
	}
}

func TestEncodeLayout(t *testing.T) {
	flat, err := Encode(mixedMesh())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	wantSizes := []int32{4, 3, 3, 3, 3}
	wantIndices := []int32{0, 3, 2, 1, 0, 1, 4, 1, 2, 4, 2, 3, 4, 3, 0, 4}
	if diff := cmp.Diff(wantSizes, flat.FaceSizes); diff != "" {
		t.Errorf("FaceSizes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantIndices, flat.FaceIndices); diff != "" {
		t.Errorf("FaceIndices mismatch (-want +got):\n%s", diff)
	}
	if flat.Vertices[12] != 0.5 || flat.Vertices[14] != 1 {
		t.Errorf("apex coordinates = %v, want (0.5 0.5 1)", flat.Vertices[12:15])
	}
}

func TestEncodeRejects(t *testing.T) {
	pentagon := mesh.New()
	for i := 0; i < 5; i++ {
		pentagon.AddVertex(r3.Vec{X: float64(i)})
	}
	pentagon.AddFace(0, 1, 2, 3, 4)

	dangling := mesh.New()
	dangling.AddVertex(r3.Vec{})
	dangling.AddTriangle(0, 1, 2)

	tests := []struct {
		name string
		mesh *mesh.Mesh
		want error
	}{
		{"pentagon", pentagon, ErrUnsupportedFace},
		{"dangling index", dangling, ErrIndexOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.mesh)
			if !errors.Is(err, tt.want) {
				t.Errorf("Encode() error = %v, want %v", err, tt.want)
			}
			if err := Check(tt.mesh); !errors.Is(err, tt.want) {
				t.Errorf("Check() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Encode(nil); err == nil {
		t.Error("Encode(nil) error = nil, want error")
	}
}

func TestCheck(t *testing.T) {
	withFace := func(idx ...int) *mesh.Mesh {
		m := mesh.UnitCube(r3.Vec{})
		m.AddFace(idx...)
		return m
	}

	tests := []struct {
		name string
		mesh *mesh.Mesh
		want error
	}{
		{"cube", mesh.UnitCube(r3.Vec{}), nil},
		{"negative index", withFace(0, -1, 2), ErrIndexOutOfRange},
		{"two vertex face", withFace(0, 1), ErrUnsupportedFace},
		{"pentagon with repeated index", withFace(0, 1, 1, 5, 4), ErrUnsupportedFace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.mesh.Clone()
			err := Check(tt.mesh)
			if tt.want == nil && err != nil {
				t.Fatalf("Check() error = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("Check() error = %v, want %v", err, tt.want)
			}
			if diff := cmp.Diff(before, tt.mesh); diff != "" {
				t.Errorf("Check modified the mesh (-before +after):\n%s", diff)
			}
		})
	}

	if err := Check(nil); err == nil {
		t.Error("Check(nil) error = nil, want error")
	}
}

func TestDecodeRejects(t *testing.T) {
	tri := []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}
	tests := []struct {
		name string
		flat *FlatMesh
		want error
	}{
		{"partial vertex", &FlatMesh{Vertices: []float64{1, 2}}, ErrMalformed},
		{"size five", &FlatMesh{Vertices: tri, FaceIndices: []int32{0, 1, 2, 0, 1}, FaceSizes: []int32{5}}, ErrUnsupportedFace},
		{"size two", &FlatMesh{Vertices: tri, FaceIndices: []int32{0, 1}, FaceSizes: []int32{2}}, ErrUnsupportedFace},
		{"short indices", &FlatMesh{Vertices: tri, FaceIndices: []int32{0, 1}, FaceSizes: []int32{3}}, ErrMalformed},
		{"trailing indices", &FlatMesh{Vertices: tri, FaceIndices: []int32{0, 1, 2, 0}, FaceSizes: []int32{3}}, ErrMalformed},
		{"index out of range", &FlatMesh{Vertices: tri, FaceIndices: []int32{0, 1, 3}, FaceSizes: []int32{3}}, ErrIndexOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.flat)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New([]float64{0, 0, 0}, []int32{0, 0, 0}, []int32{3}); err != nil {
		t.Errorf("New() error = %v, want nil", err)
	}
	if _, err := New([]float64{0, 0, 0}, []int32{0, 0, 1}, []int32{3}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("New() error = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := New(nil, []int32{0}, []int32{0}); !errors.Is(err, ErrMalformed) {
		t.Errorf("New() error = %v, want ErrMalformed", err)
	}
}

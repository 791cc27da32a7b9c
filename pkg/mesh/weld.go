package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultWeldAngle merges coincident vertices whatever the angle between
// their normals, which makes the weld purely positional.
const DefaultWeldAngle = math.Pi

// DefaultWeldDistance only merges exactly coincident vertices.
const DefaultWeldDistance = 0

// Weld merges exactly coincident vertices whose normals differ by at most
// angle radians. See WeldWithin.
func (m *Mesh) Weld(angle float64) int {
	return m.WeldWithin(angle, DefaultWeldDistance)
}

// WeldWithin merges vertices closer than distance (exact coincidence when
// distance <= 0) whose vertex normals differ by at most angle radians. An
// angle of π or more ignores normals entirely.
//
// The mesh is modified in place: surviving vertices keep their first
// occurrence order, faces are remapped, repeated consecutive indices are
// collapsed and faces left with fewer than three vertices are dropped.
// Returns the number of vertices removed.
func (m *Mesh) WeldWithin(angle, distance float64) int {
	n := len(m.Vertices)
	if n == 0 {
		return 0
	}

	useNormals := angle < math.Pi
	var normals []r3.Vec
	if useNormals {
		normals = m.vertexNormals()
	}
	cosTol := math.Cos(angle)

	remap := make([]int, n)
	kept := make([]r3.Vec, 0, n)
	var keptNormals []r3.Vec
	grid := newWeldGrid(distance)

	for i, v := range m.Vertices {
		match := -1
		grid.visit(v, func(j int) bool {
			if distance > 0 && r3.Norm(r3.Sub(kept[j], v)) > distance {
				return true
			}
			if useNormals && !withinAngle(keptNormals[j], normals[i], cosTol) {
				return true
			}
			match = j
			return false
		})
		if match < 0 {
			match = len(kept)
			kept = append(kept, v)
			if useNormals {
				keptNormals = append(keptNormals, normals[i])
			}
			grid.insert(v, match)
		}
		remap[i] = match
	}

	faces := m.Faces[:0]
	for _, f := range m.Faces {
		out := make(Face, 0, len(f))
		for _, idx := range f {
			r := remap[idx]
			if len(out) > 0 && out[len(out)-1] == r {
				continue
			}
			out = append(out, r)
		}
		for len(out) > 1 && out[0] == out[len(out)-1] {
			out = out[:len(out)-1]
		}
		if len(out) >= 3 {
			faces = append(faces, out)
		}
	}

	m.Vertices = kept
	m.Faces = faces

	return n - len(kept)
}

// vertexNormals averages the normals of the faces incident on each vertex.
// Vertices with no incident faces get a zero normal.
func (m *Mesh) vertexNormals() []r3.Vec {
	normals := make([]r3.Vec, len(m.Vertices))
	for _, f := range m.Faces {
		fn := m.faceNormal(f)
		if l := r3.Norm(fn); l > 0 {
			fn = r3.Scale(1/l, fn)
		}
		for _, idx := range f {
			normals[idx] = r3.Add(normals[idx], fn)
		}
	}
	for i, nv := range normals {
		if l := r3.Norm(nv); l > 0 {
			normals[i] = r3.Scale(1/l, nv)
		}
	}
	return normals
}

// withinAngle reports whether unit vectors a and b are at most acos(cosTol)
// apart. A zero vector is compatible with anything.
func withinAngle(a, b r3.Vec, cosTol float64) bool {
	if r3.Norm(a) == 0 || r3.Norm(b) == 0 {
		return true
	}
	return r3.Dot(a, b) >= cosTol-1e-12
}

// weldGrid buckets representative vertices. With a positive distance the
// buckets are cubic cells of that size and lookups scan the 27 cells around
// the query; otherwise buckets are keyed by the exact position.
type weldGrid struct {
	cell  float64
	exact map[r3.Vec][]int
	cells map[[3]int64][]int
}

func newWeldGrid(distance float64) *weldGrid {
	if distance > 0 {
		return &weldGrid{cell: distance, cells: make(map[[3]int64][]int)}
	}
	return &weldGrid{exact: make(map[r3.Vec][]int)}
}

func (g *weldGrid) key(v r3.Vec) [3]int64 {
	return [3]int64{
		int64(math.Floor(v.X / g.cell)),
		int64(math.Floor(v.Y / g.cell)),
		int64(math.Floor(v.Z / g.cell)),
	}
}

func (g *weldGrid) insert(v r3.Vec, idx int) {
	if g.exact != nil {
		g.exact[v] = append(g.exact[v], idx)
		return
	}
	k := g.key(v)
	g.cells[k] = append(g.cells[k], idx)
}

// visit calls fn with candidate representatives until fn returns false.
func (g *weldGrid) visit(v r3.Vec, fn func(int) bool) {
	if g.exact != nil {
		for _, idx := range g.exact[v] {
			if !fn(idx) {
				return
			}
		}
		return
	}
	k := g.key(v)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, idx := range g.cells[[3]int64{k[0] + dx, k[1] + dy, k[2] + dz}] {
					if !fn(idx) {
						return
					}
				}
			}
		}
	}
}

package sdfx

import (
	"math"

	"github.com/chazu/meshbool/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"
)

// padFraction widens the bounding box of a mesh SDF so the surface never
// sits on the outer layer of the marching cubes grid.
const padFraction = 0.05

type triangle [3]r3.Vec

// meshSDF is the signed distance field of a closed polygon mesh. The
// magnitude is the distance to the nearest triangle and the sign comes from
// the generalized winding number, so slightly open meshes still classify
// sensibly.
type meshSDF struct {
	tris     []triangle
	min, max r3.Vec
	bb       sdf.Box3
}

var _ sdf.SDF3 = (*meshSDF)(nil)

// newMeshSDF builds the field for d. Faces are fan-triangulated. It returns
// nil for a descriptor without faces.
func newMeshSDF(d kernel.Descriptor) *meshSDF {
	if len(d.FaceSizes) == 0 {
		return nil
	}
	vertex := func(idx int32) r3.Vec {
		return r3.Vec{X: d.Vertices[3*idx], Y: d.Vertices[3*idx+1], Z: d.Vertices[3*idx+2]}
	}

	s := &meshSDF{
		min: r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		max: r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
	offset := 0
	for _, size := range d.FaceSizes {
		face := d.FaceIndices[offset : offset+int(size)]
		offset += int(size)
		p0 := vertex(face[0])
		for i := 1; i+1 < len(face); i++ {
			s.tris = append(s.tris, triangle{p0, vertex(face[i]), vertex(face[i+1])})
		}
		for _, idx := range face {
			p := vertex(idx)
			s.min = r3.Vec{X: math.Min(s.min.X, p.X), Y: math.Min(s.min.Y, p.Y), Z: math.Min(s.min.Z, p.Z)}
			s.max = r3.Vec{X: math.Max(s.max.X, p.X), Y: math.Max(s.max.Y, p.Y), Z: math.Max(s.max.Z, p.Z)}
		}
	}
	if len(s.tris) == 0 {
		return nil
	}

	size := r3.Sub(s.max, s.min)
	pad := padFraction * math.Max(size.X, math.Max(size.Y, size.Z))
	padVec := r3.Vec{X: pad, Y: pad, Z: pad}
	s.bb = sdf.Box3{Min: toV3(r3.Sub(s.min, padVec)), Max: toV3(r3.Add(s.max, padVec))}
	return s
}

// Evaluate returns the signed distance from p to the mesh surface,
// negative inside.
func (s *meshSDF) Evaluate(p v3.Vec) float64 {
	q := fromV3(p)

	// Outside the tight bounds the distance to the box is a valid lower
	// bound and the sign is known.
	if d := boxDistance(q, s.min, s.max); d > 0 {
		return s.nearestWithin(q, d)
	}

	d := s.nearest(q)
	if s.winding(q) > 0.5 {
		return -d
	}
	return d
}

// BoundingBox returns the padded bounds of the mesh.
func (s *meshSDF) BoundingBox() sdf.Box3 {
	return s.bb
}

func (s *meshSDF) nearest(q r3.Vec) float64 {
	best := math.Inf(1)
	for _, t := range s.tris {
		if d := r3.Norm(r3.Sub(q, closestOnTriangle(q, t))); d < best {
			best = d
		}
	}
	return best
}

// nearestWithin returns the exact distance for points near the bounds,
// where marching cubes needs it, and the lower bound further out.
func (s *meshSDF) nearestWithin(q r3.Vec, lower float64) float64 {
	size := r3.Sub(s.max, s.min)
	if lower > 0.25*math.Max(size.X, math.Max(size.Y, size.Z)) {
		return lower
	}
	return s.nearest(q)
}

// winding returns the generalized winding number of the mesh around q: 1
// inside a closed outward-oriented surface, 0 outside.
func (s *meshSDF) winding(q r3.Vec) float64 {
	var total float64
	for _, t := range s.tris {
		a := r3.Sub(t[0], q)
		b := r3.Sub(t[1], q)
		c := r3.Sub(t[2], q)
		la, lb, lc := r3.Norm(a), r3.Norm(b), r3.Norm(c)
		num := r3.Dot(a, r3.Cross(b, c))
		den := la*lb*lc + r3.Dot(a, b)*lc + r3.Dot(a, c)*lb + r3.Dot(b, c)*la
		total += 2 * math.Atan2(num, den)
	}
	return total / (4 * math.Pi)
}

// closestOnTriangle returns the point of t closest to p (Ericson,
// Real-Time Collision Detection 5.1.5).
func closestOnTriangle(p r3.Vec, t triangle) r3.Vec {
	a, b, c := t[0], t[1], t[2]
	ab := r3.Sub(b, a)
	ac := r3.Sub(c, a)
	ap := r3.Sub(p, a)

	d1 := r3.Dot(ab, ap)
	d2 := r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := r3.Sub(p, b)
	d3 := r3.Dot(ab, bp)
	d4 := r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return r3.Add(a, r3.Scale(d1/(d1-d3), ab))
	}

	cp := r3.Sub(p, c)
	d5 := r3.Dot(ab, cp)
	d6 := r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return r3.Add(a, r3.Scale(d2/(d2-d6), ac))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		return r3.Add(b, r3.Scale((d4-d3)/((d4-d3)+(d5-d6)), r3.Sub(c, b)))
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}

// boxDistance returns the distance from p to the box min..max, zero inside.
func boxDistance(p, min, max r3.Vec) float64 {
	dx := math.Max(0, math.Max(min.X-p.X, p.X-max.X))
	dy := math.Max(0, math.Max(min.Y-p.Y, p.Y-max.Y))
	dz := math.Max(0, math.Max(min.Z-p.Z, p.Z-max.Z))
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func toV3(v r3.Vec) v3.Vec {
	return v3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

func fromV3(v v3.Vec) r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

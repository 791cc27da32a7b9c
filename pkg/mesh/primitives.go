package mesh

import "gonum.org/v1/gonum/spatial/r3"

// Box returns an axis-aligned box spanning min..max as 8 vertices and 6
// outward-facing quads.
func Box(min, max r3.Vec) *Mesh {
	m := &Mesh{
		Vertices: []r3.Vec{
			{X: min.X, Y: min.Y, Z: min.Z},
			{X: max.X, Y: min.Y, Z: min.Z},
			{X: max.X, Y: max.Y, Z: min.Z},
			{X: min.X, Y: max.Y, Z: min.Z},
			{X: min.X, Y: min.Y, Z: max.Z},
			{X: max.X, Y: min.Y, Z: max.Z},
			{X: max.X, Y: max.Y, Z: max.Z},
			{X: min.X, Y: max.Y, Z: max.Z},
		},
	}
	m.AddQuad(0, 3, 2, 1) // -Z
	m.AddQuad(4, 5, 6, 7) // +Z
	m.AddQuad(0, 1, 5, 4) // -Y
	m.AddQuad(2, 3, 7, 6) // +Y
	m.AddQuad(0, 4, 7, 3) // -X
	m.AddQuad(1, 2, 6, 5) // +X
	return m
}

// UnitCube returns the box spanning (0,0,0)..(1,1,1) moved by offset.
func UnitCube(offset r3.Vec) *Mesh {
	return Box(offset, r3.Add(offset, r3.Vec{X: 1, Y: 1, Z: 1}))
}

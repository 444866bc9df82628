package scene

import (
	"fmt"
	"math"

	"github.com/achilleasa/gpurt/types"
)

// Create a rectangle in the XY plane centered at the origin. Its front face
// points towards +Z.
func NewPlane(width, height float32) (*Geometry, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: plane dimensions must be positive", ErrInvalidGeometry)
	}
	w, h := width/2, height/2
	vertices := []types.Vec4{
		{-w, -h, 0, 1},
		{w, -h, 0, 1},
		{w, h, 0, 1},
		{-w, h, 0, 1},
	}
	faces := []types.Vec3i{
		{0, 1, 2},
		{0, 2, 3},
	}
	return newGeometry(PlaneGeometry, faces, vertices)
}

// Create an axis-aligned box centered at the origin with outward facing
// triangles.
func NewBox(width, height, depth float32) (*Geometry, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("%w: box dimensions must be positive", ErrInvalidGeometry)
	}
	w, h, d := width/2, height/2, depth/2
	vertices := []types.Vec4{
		{-w, -h, d, 1},
		{w, -h, d, 1},
		{w, h, d, 1},
		{-w, h, d, 1},
		{-w, -h, -d, 1},
		{w, -h, -d, 1},
		{w, h, -d, 1},
		{-w, h, -d, 1},
	}
	faces := []types.Vec3i{
		// front (+z)
		{0, 1, 2}, {0, 2, 3},
		// back (-z)
		{5, 4, 7}, {5, 7, 6},
		// right (+x)
		{1, 5, 6}, {1, 6, 2},
		// left (-x)
		{4, 0, 3}, {4, 3, 7},
		// top (+y)
		{3, 2, 6}, {3, 6, 7},
		// bottom (-y)
		{4, 5, 1}, {4, 1, 0},
	}
	return newGeometry(BoxGeometry, faces, vertices)
}

// Create a UV sphere centered at the origin. Rings must be at least 2 and
// segments at least 3.
func NewSphere(radius float32, rings, segments int) (*Geometry, error) {
	if radius <= 0 || rings < 2 || segments < 3 {
		return nil, fmt.Errorf("%w: sphere needs positive radius, >= 2 rings and >= 3 segments", ErrInvalidGeometry)
	}

	vertices := make([]types.Vec4, 0, (rings+1)*segments)
	for ring := 0; ring <= rings; ring++ {
		theta := math.Pi * float64(ring) / float64(rings)
		for seg := 0; seg < segments; seg++ {
			phi := 2 * math.Pi * float64(seg) / float64(segments)
			vertices = append(vertices, types.Vec4{
				radius * float32(math.Sin(theta)*math.Cos(phi)),
				radius * float32(math.Cos(theta)),
				radius * float32(math.Sin(theta)*math.Sin(phi)),
				1,
			})
		}
	}

	faces := make([]types.Vec3i, 0, 2*rings*segments)
	for ring := 0; ring < rings; ring++ {
		for seg := 0; seg < segments; seg++ {
			a := int32(ring*segments + seg)
			b := int32(ring*segments + (seg+1)%segments)
			c := a + int32(segments)
			d := b + int32(segments)
			// Skip degenerate triangles at the poles
			if ring != 0 {
				faces = append(faces, types.Vec3i{a, b, c})
			}
			if ring != rings-1 {
				faces = append(faces, types.Vec3i{b, d, c})
			}
		}
	}
	return newGeometry(SphereGeometry, faces, vertices)
}

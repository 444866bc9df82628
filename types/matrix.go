package types

import "github.com/go-gl/mathgl/mgl32"

// A column-major 4x4 matrix. The heavy lifting is delegated to mathgl.
type Mat4 mgl32.Mat4

// Create identity matrix.
func Ident4() Mat4 {
	return Mat4(mgl32.Ident4())
}

// Create a view matrix for an eye looking at center.
func LookAtV(eye, center, up Vec3) Mat4 {
	return Mat4(mgl32.LookAtV(mgl32.Vec3(eye), mgl32.Vec3(center), mgl32.Vec3(up)))
}

// Create a translation matrix.
func Translate3D(t Vec3) Mat4 {
	return Mat4(mgl32.Translate3D(t[0], t[1], t[2]))
}

// Create a scale matrix.
func Scale3D(s Vec3) Mat4 {
	return Mat4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// Create a rotation matrix from XYZ euler angles (radians) applied in X, Y, Z order.
func Rotate3D(angles Vec3) Mat4 {
	rx := mgl32.HomogRotate3DX(angles[0])
	ry := mgl32.HomogRotate3DY(angles[1])
	rz := mgl32.HomogRotate3DZ(angles[2])
	return Mat4(rz.Mul4(ry).Mul4(rx))
}

// Multiply two matrices.
func (m Mat4) Mul4(m2 Mat4) Mat4 {
	return Mat4(mgl32.Mat4(m).Mul4(mgl32.Mat4(m2)))
}

// Multiply matrix with a 4 component vector.
func (m Mat4) Mul4x1(v Vec4) Vec4 {
	return Vec4(mgl32.Mat4(m).Mul4x1(mgl32.Vec4(v)))
}

// Transform a point (w = 1) and return its xyz components.
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	return m.Mul4x1(p.Vec4(1)).Vec3()
}

// Invert matrix.
func (m Mat4) Inv() Mat4 {
	return Mat4(mgl32.Mat4(m).Inv())
}

package types

import "github.com/go-gl/mathgl/mgl32"

// A rotation quaternion backed by mathgl.
type Quat mgl32.Quat

// Create a quaternion that rotates by angle radians around axis.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	return Quat(mgl32.QuatRotate(angle, mgl32.Vec3(axis)))
}

// Rotate v by this quaternion.
func (q Quat) Rotate(v Vec3) Vec3 {
	return Vec3(mgl32.Quat(q).Rotate(mgl32.Vec3(v)))
}

// Compose two rotations. Multiplication is not commutative.
func (q Quat) Mul(q2 Quat) Quat {
	return Quat(mgl32.Quat(q).Mul(mgl32.Quat(q2)))
}

// Return the unit quaternion; a zero quaternion becomes the identity.
func (q Quat) Normalize() Quat {
	return Quat(mgl32.Quat(q).Normalize())
}

package scene

import (
	"sync"

	"github.com/achilleasa/gpurt/types"
)

// The Camera interface is the only view of the camera that renderers need.
type Camera interface {
	ViewMatrix() types.Mat4
	Dirty() bool
	ClearDirty()
}

// Cameras may implement FieldOfViewer to control the ray spread. The
// returned value is the horizontal field of view in degrees.
type FieldOfViewer interface {
	FieldOfView() float32
}

// A perspective camera controlled by an eye position, a look-at point and
// pitch/yaw rotations.
type PerspectiveCamera struct {
	mutex sync.Mutex

	position types.Vec3
	lookAt   types.Vec3
	up       types.Vec3

	// Horizontal field of view in degrees.
	fov float32

	viewMat types.Mat4
	dirty   bool
}

func NewPerspectiveCamera(fov float32) *PerspectiveCamera {
	c := &PerspectiveCamera{
		position: types.Vec3{0, 0, 0},
		lookAt:   types.Vec3{0, 0, -1},
		up:       types.Vec3{0, 1, 0},
		fov:      fov,
	}
	c.update()
	return c
}

// Position the camera at eye looking towards center.
func (c *PerspectiveCamera) LookAt(eye, center, up types.Vec3) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.position = eye
	c.lookAt = center
	c.up = up
	c.update()
}

// Rotate the view direction by pitch and yaw (radians).
func (c *PerspectiveCamera) Orbit(pitch, yaw float32) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	dir := c.lookAt.Sub(c.position)
	dist := dir.Len()
	dir = dir.Normalize()
	pitchAxis := dir.Cross(c.up).Normalize()
	pitchQuat := types.QuatFromAxisAngle(pitchAxis, pitch)
	yawQuat := types.QuatFromAxisAngle(c.up.Normalize(), yaw)

	orientQuat := pitchQuat.Mul(yawQuat).Normalize()
	dir = orientQuat.Rotate(dir)
	c.lookAt = c.position.Add(dir.Mul(dist))
	c.update()
}

func (c *PerspectiveCamera) SetFieldOfView(fov float32) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.fov = fov
	c.dirty = true
}

func (c *PerspectiveCamera) FieldOfView() float32 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.fov
}

func (c *PerspectiveCamera) Position() types.Vec3 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.position
}

func (c *PerspectiveCamera) ViewMatrix() types.Mat4 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.viewMat
}

func (c *PerspectiveCamera) Dirty() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.dirty
}

func (c *PerspectiveCamera) ClearDirty() {
	c.mutex.Lock()
	c.dirty = false
	c.mutex.Unlock()
}

func (c *PerspectiveCamera) update() {
	c.viewMat = types.LookAtV(c.position, c.lookAt, c.up)
	c.dirty = true
}

package tracer

import (
	"errors"

	"github.com/achilleasa/gpurt/tracer/device"
	"github.com/achilleasa/gpurt/types"
)

var ErrKernelFailed = errors.New("tracer: kernel execution failed")

// A primary ray. Both vectors use w = 1 for the origin and w = 0 for the
// direction.
type Ray struct {
	Direction types.Vec4
	Origin    types.Vec4
}

// A triangle as three global vertex indices padded to an int4.
type Face = types.Vec4i

// A homogeneous vertex position.
type Vertex = types.Vec4

// A packed scene object. Face and vertex offsets index the global face and
// vertex arrays; AttributeIndex points into the geometry attribute array for
// meshes and into the light attribute array for lights.
type Object struct {
	NumFaces          int32
	FaceIndexOffset   int32
	NumVertices       int32
	VertexIndexOffset int32
	Kind              int32
	MaterialType      int32
	AttributeIndex    int32
	_                 int32

	// RGB base color. For metal materials w holds the roughness.
	Color types.Vec4
}

type GeometryAttribute struct {
	BVHEnabled int32

	// Index into the BVH table or -1 if the BVH is disabled.
	BVHIndex int32
}

type LightAttribute struct {
	Brightness float32
	_          [3]float32
	Color      types.Vec4
}

// Locates the threaded nodes of a single object BVH inside the global node
// array. Objects without a BVH have NumNodes = 0.
type ThreadedBVH struct {
	NodeIndexOffset int32
	NumNodes        int32
}

// A single radiance sample.
type Pixel struct {
	R, G, B, A float32
}

// The sample written for rays that do not hit anything.
var MissPixel = Pixel{-1, -1, -1, -1}

// Returns false for samples carrying the negative miss sentinel.
func (p Pixel) Valid() bool {
	return p.R >= 0
}

// A device buffer along with the number of elements it stores.
type BufferArg struct {
	Memory device.Memory
	Count  int
}

// Kernel launch geometry.
type Launch struct {
	Threads int
	Blocks  int
}

// The arguments passed to a Kernel for a single render call.
type KernelArgs struct {
	Rays               BufferArg
	Faces              BufferArg
	Vertices           BufferArg
	Objects            BufferArg
	GeometryAttributes BufferArg
	LightAttributes    BufferArg
	BVHTable           BufferArg
	BVHNodes           BufferArg
	LightIndices       BufferArg
	Output             BufferArg

	Launch          Launch
	SamplesPerPixel int
	MaxBounce       int

	// Number of frames rendered since the last accumulation reset
	// including this one.
	FrameIndex int

	// The device that owns the buffer memories.
	Device device.Device
}

// A Kernel traces every ray in KernelArgs.Rays and writes exactly one Pixel
// per ray into KernelArgs.Output, using MissPixel for rays that hit nothing.
// Render blocks until the output is complete.
type Kernel interface {
	Name() string
	Render(args *KernelArgs) error
}

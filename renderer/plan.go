package renderer

import "strings"

// A Plan lists the preprocessing stages a render call must run before
// invoking the kernel.
type Plan struct {
	// Bring objects into camera space.
	Transform bool

	// Rebuild object BVHs and repack the geometry buffers.
	BuildBVH  bool
	Serialize bool

	// Reallocate the geometry buffers to fit the packed data.
	Reallocate bool

	// Upload the packed geometry buffers.
	TransferGeometry bool

	// Reallocate the ray and output buffers and regenerate the primary rays.
	ReallocateRays bool
	GenerateRays   bool

	// Discard the accumulated samples and restart the frame counter.
	ResetAccumulation bool
}

// Derive the stages needed given which inputs changed since the previous
// render call.
//
//	scene dirty        transform, BVH, serialize, reallocate, transfer, reset
//	camera dirty only  transform, BVH, serialize, transfer, reset
//	layout changed     reallocate rays/output, generate rays, reset
func NewPlan(sceneDirty, cameraDirty, layoutChanged bool) Plan {
	var p Plan
	if sceneDirty || cameraDirty {
		p.Transform = true
		p.BuildBVH = true
		p.Serialize = true
		p.TransferGeometry = true
		p.ResetAccumulation = true
	}
	if sceneDirty {
		p.Reallocate = true
	}
	if layoutChanged {
		p.ReallocateRays = true
		p.GenerateRays = true
		p.ResetAccumulation = true
	}
	return p
}

// Empty returns true if the plan runs no stages.
func (p Plan) Empty() bool {
	return p == Plan{}
}

func (p Plan) String() string {
	stages := make([]string, 0, 8)
	add := func(enabled bool, name string) {
		if enabled {
			stages = append(stages, name)
		}
	}
	add(p.Transform, "transform")
	add(p.BuildBVH, "bvh")
	add(p.Serialize, "serialize")
	add(p.Reallocate, "realloc")
	add(p.TransferGeometry, "transfer")
	add(p.ReallocateRays, "realloc-rays")
	add(p.GenerateRays, "rays")
	add(p.ResetAccumulation, "reset")
	if len(stages) == 0 {
		return "none"
	}
	return strings.Join(stages, "|")
}

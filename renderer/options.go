package renderer

import (
	"fmt"

	"github.com/achilleasa/gpurt/scene/bvh"
)

type Options struct {
	// Number of rays traced per pixel and frame.
	SamplesPerPixel int

	// Number of indirect bounces.
	MaxBounce int

	// Kernel launch geometry.
	Threads int
	Blocks  int

	// Randomize sample positions inside each pixel.
	Jitter bool
	Seed   int64

	// Horizontal field of view in degrees for cameras that do not
	// provide their own.
	FieldOfView float32

	// Number of parallel BVH builds; 0 selects runtime.NumCPU().
	BVHWorkers int

	// Split strategy for BVH builds; nil selects bvh.CentroidMidpoint.
	SplitStrategy bvh.SplitStrategy
}

func DefaultOptions() Options {
	return Options{
		SamplesPerPixel: 4,
		MaxBounce:       4,
		Threads:         64,
		Blocks:          256,
		Jitter:          true,
		FieldOfView:     90,
		SplitStrategy:   bvh.CentroidMidpoint,
	}
}

// Check that all options are within their valid ranges.
func (o Options) Validate() error {
	switch {
	case o.SamplesPerPixel <= 0:
		return fmt.Errorf("%w: samples per pixel must be positive; got %d", ErrInvalidOptions, o.SamplesPerPixel)
	case o.MaxBounce < 0:
		return fmt.Errorf("%w: max bounce must not be negative; got %d", ErrInvalidOptions, o.MaxBounce)
	case o.Threads <= 0 || o.Blocks <= 0:
		return fmt.Errorf("%w: launch geometry must be positive; got %d threads x %d blocks", ErrInvalidOptions, o.Threads, o.Blocks)
	case o.BVHWorkers < 0:
		return fmt.Errorf("%w: BVH workers must not be negative; got %d", ErrInvalidOptions, o.BVHWorkers)
	}
	return validateFieldOfView(o.FieldOfView)
}

// The horizontal field of view must lie in (0, 180) degrees.
func validateFieldOfView(fov float32) error {
	if !(fov > 0 && fov < 180) {
		return fmt.Errorf("%w: field of view must be in (0, 180) degrees; got %g", ErrInvalidOptions, fov)
	}
	return nil
}

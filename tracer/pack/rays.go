package pack

import (
	"math"
	"math/rand/v2"

	"github.com/achilleasa/gpurt/tracer"
	"github.com/achilleasa/gpurt/types"
)

// The parameters that determine the primary ray set. Rays only need to be
// regenerated when the layout changes.
type RayLayout struct {
	Width, Height   int
	SamplesPerPixel int

	// Horizontal field of view in degrees.
	FieldOfView float32

	// Randomize sample positions inside each pixel. Without jitter every
	// sample passes through the pixel center.
	Jitter bool
	Seed   int64
}

func (l RayLayout) NumRays() int {
	return l.Width * l.Height * l.SamplesPerPixel
}

// Generate camera-space primary rays in row-major pixel order with
// SamplesPerPixel consecutive samples per pixel. Rays start at the eye and
// travel towards -Z through an image plane at distance 1/tan(fov/2).
func GenerateRays(layout RayLayout) []tracer.Ray {
	rays := make([]tracer.Ray, layout.NumRays())
	if len(rays) == 0 {
		return rays
	}

	rng := rand.New(rand.NewPCG(uint64(layout.Seed), 0))
	w, h := float32(layout.Width), float32(layout.Height)
	aspect := w / h
	focal := float32(1.0 / math.Tan(float64(layout.FieldOfView)*math.Pi/360.0))
	origin := types.Vec4{0, 0, 0, 1}

	index := 0
	for y := 0; y < layout.Height; y++ {
		for x := 0; x < layout.Width; x++ {
			for s := 0; s < layout.SamplesPerPixel; s++ {
				var jx, jy float32 = 0.5, 0.5
				if layout.Jitter {
					jx, jy = rng.Float32(), rng.Float32()
				}
				rays[index] = tracer.Ray{
					Direction: types.Vec4{
						2*(float32(x)+jx)/w - 1,
						-(2*(float32(y)+jy)/h - 1) / aspect,
						-focal,
						0,
					},
					Origin: origin,
				}
				index++
			}
		}
	}
	return rays
}

package pack

import (
	"testing"

	"github.com/achilleasa/gpurt/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRaysLayout(t *testing.T) {
	layout := RayLayout{Width: 4, Height: 2, SamplesPerPixel: 3, FieldOfView: 90}
	rays := GenerateRays(layout)
	require.Len(t, rays, 24)

	// Pixel (x=1, y=1), all samples through the pixel center
	for s := 0; s < 3; s++ {
		ray := rays[(1*4+1)*3+s]
		assert.Equal(t, types.Vec4{0, 0, 0, 1}, ray.Origin)
		assert.InDelta(t, 2*1.5/4.0-1, ray.Direction[0], 1e-6)
		assert.InDelta(t, -(2*1.5/2.0-1)/2.0, ray.Direction[1], 1e-6)
		assert.InDelta(t, -1, ray.Direction[2], 1e-6)
		assert.Equal(t, float32(0), ray.Direction[3])
	}
}

func TestGenerateRaysJitter(t *testing.T) {
	layout := RayLayout{Width: 8, Height: 8, SamplesPerPixel: 4, FieldOfView: 60, Jitter: true, Seed: 3}
	a := GenerateRays(layout)
	b := GenerateRays(layout)
	assert.Equal(t, a, b, "same seed must produce the same rays")

	layout.Seed = 4
	c := GenerateRays(layout)
	assert.NotEqual(t, a, c)

	// Jittered samples stay inside their pixel
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			for s := 0; s < 4; s++ {
				d := a[(y*8+x)*4+s].Direction
				px := (d[0] + 1) / 2 * 8
				assert.True(t, px >= float32(x)-1e-4 && px <= float32(x+1)+1e-4, "sample x %f outside pixel %d", px, x)
			}
		}
	}
}

func TestGenerateRaysEmpty(t *testing.T) {
	assert.Empty(t, GenerateRays(RayLayout{}))
}

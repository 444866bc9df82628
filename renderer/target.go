package renderer

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// A Target receives the averaged frame. Pixels are stored row-major with
// three channels.
type Target interface {
	Dims() (width, height, channels int)

	// Number of stored channel values.
	Len() int

	SetPixel(x, y int, rgb [3]float64)
}

// A float32 render target.
type FloatBuffer struct {
	Width, Height, Channels int
	Pix                     []float32
}

func NewFloatBuffer(width, height int) *FloatBuffer {
	return &FloatBuffer{
		Width:    width,
		Height:   height,
		Channels: 3,
		Pix:      make([]float32, width*height*3),
	}
}

func (b *FloatBuffer) Dims() (int, int, int) { return b.Width, b.Height, b.Channels }
func (b *FloatBuffer) Len() int               { return len(b.Pix) }

func (b *FloatBuffer) SetPixel(x, y int, rgb [3]float64) {
	offset := (y*b.Width + x) * 3
	b.Pix[offset] = float32(rgb[0])
	b.Pix[offset+1] = float32(rgb[1])
	b.Pix[offset+2] = float32(rgb[2])
}

// Get the value stored for pixel (x, y).
func (b *FloatBuffer) At(x, y int) [3]float32 {
	offset := (y*b.Width + x) * 3
	return [3]float32{b.Pix[offset], b.Pix[offset+1], b.Pix[offset+2]}
}

// Convert to an 8-bit image, applying gamma correction when gamma > 0.
func (b *FloatBuffer) Image(gamma float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	invGamma := 1.0
	if gamma > 0 {
		invGamma = 1.0 / gamma
	}
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			px := b.At(x, y)
			img.SetRGBA(x, y, color.RGBA{
				R: toByte(math.Pow(float64(px[0]), invGamma)),
				G: toByte(math.Pow(float64(px[1]), invGamma)),
				B: toByte(math.Pow(float64(px[2]), invGamma)),
				A: 255,
			})
		}
	}
	return img
}

// An 8-bit render target. Values are scaled by 255 and clamped.
type ByteBuffer struct {
	Width, Height, Channels int
	Pix                     []uint8
}

func NewByteBuffer(width, height int) *ByteBuffer {
	return &ByteBuffer{
		Width:    width,
		Height:   height,
		Channels: 3,
		Pix:      make([]uint8, width*height*3),
	}
}

func (b *ByteBuffer) Dims() (int, int, int) { return b.Width, b.Height, b.Channels }
func (b *ByteBuffer) Len() int               { return len(b.Pix) }

func (b *ByteBuffer) SetPixel(x, y int, rgb [3]float64) {
	offset := (y*b.Width + x) * 3
	b.Pix[offset] = toByte(rgb[0])
	b.Pix[offset+1] = toByte(rgb[1])
	b.Pix[offset+2] = toByte(rgb[2])
}

func (b *ByteBuffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	for i, o := 0, 0; i < len(b.Pix); i, o = i+3, o+4 {
		img.Pix[o] = b.Pix[i]
		img.Pix[o+1] = b.Pix[i+1]
		img.Pix[o+2] = b.Pix[i+2]
		img.Pix[o+3] = 255
	}
	return img
}

func toByte(v float64) uint8 {
	v *= 255
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

func validateTarget(target Target) error {
	if target == nil {
		return fmt.Errorf("%w: nil target", ErrInvalidTarget)
	}
	w, h, c := target.Dims()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: dimensions must be positive; got %dx%d", ErrInvalidTarget, w, h)
	}
	if c != 3 {
		return fmt.Errorf("%w: expected 3 channels; got %d", ErrInvalidTarget, c)
	}
	if target.Len() != w*h*c {
		return fmt.Errorf("%w: buffer holds %d values; expected %d", ErrInvalidTarget, target.Len(), w*h*c)
	}
	return nil
}

// Package renderer drives progressive rendering. Each Render call works out
// which preprocessing stages the scene, camera and output changes require,
// runs them, invokes the tracing kernel and averages the result with the
// frames accumulated so far.
package renderer

import (
	"fmt"
	"time"

	"github.com/achilleasa/gpurt/log"
	"github.com/achilleasa/gpurt/scene"
	"github.com/achilleasa/gpurt/scene/bvh"
	"github.com/achilleasa/gpurt/tracer"
	"github.com/achilleasa/gpurt/tracer/device"
	"github.com/achilleasa/gpurt/tracer/pack"
)

type Renderer struct {
	logger log.Logger
	kernel tracer.Kernel
	opts   Options
}

func New(kernel tracer.Kernel, opts Options) (*Renderer, error) {
	if kernel == nil {
		return nil, ErrNoKernel
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Renderer{
		logger: log.New("renderer"),
		kernel: kernel,
		opts:   opts,
	}, nil
}

func (r *Renderer) Options() Options {
	return r.opts
}

// Render one frame of sc as seen by camera and write the average of all
// frames accumulated by sess into target. Inputs are validated before any
// device work. On error the target and the dirty flags are left untouched.
func (r *Renderer) Render(sess *Session, sc *scene.Scene, camera scene.Camera, target Target) error {
	if sess == nil {
		return fmt.Errorf("%w: nil session", ErrSessionClosed)
	}
	if err := validateTarget(target); err != nil {
		return err
	}
	if sc == nil {
		return ErrSceneNotDefined
	}
	if sc.Len() == 0 {
		return ErrEmptyScene
	}
	if camera == nil {
		return ErrCameraNotDefined
	}

	width, height, _ := target.Dims()
	layout := pack.RayLayout{
		Width:           width,
		Height:          height,
		SamplesPerPixel: r.opts.SamplesPerPixel,
		FieldOfView:     r.opts.FieldOfView,
		Jitter:          r.opts.Jitter,
		Seed:            r.opts.Seed,
	}
	if fov, ok := camera.(scene.FieldOfViewer); ok {
		layout.FieldOfView = fov.FieldOfView()
		if err := validateFieldOfView(layout.FieldOfView); err != nil {
			return fmt.Errorf("camera: %w", err)
		}
	}

	sess.mutex.Lock()
	defer sess.mutex.Unlock()
	if sess.closed {
		return ErrSessionClosed
	}

	plan := NewPlan(
		sc.Dirty() || !sess.prepared,
		camera.Dirty(),
		!sess.hasLayout || sess.layout != layout,
	)

	stats, err := r.renderFrame(sess, plan, sc, camera, layout, target)
	if err != nil {
		sess.invalidate()
		r.logger.Errorf("render failed (plan: %s): %v", plan, err)
		return err
	}

	sess.prepared = true
	sess.layout = layout
	sess.hasLayout = true
	sess.stats = stats
	sc.ClearDirty()
	camera.ClearDirty()

	r.logger.Debugf("rendered frame %d (plan: %s) in %d ms", stats.FrameIndex, plan, stats.RenderTime.Nanoseconds()/1e6)
	return nil
}

func (r *Renderer) renderFrame(sess *Session, plan Plan, sc *scene.Scene, camera scene.Camera, layout pack.RayLayout, target Target) (FrameStats, error) {
	start := time.Now()
	stats := FrameStats{
		SessionID: sess.id,
		Plan:      plan,
	}

	if err := r.prepareGeometry(sess, plan, sc, camera); err != nil {
		return stats, err
	}
	if err := r.prepareRays(sess, plan, layout); err != nil {
		return stats, err
	}
	stats.PrepareTime = time.Since(start)

	frameIndex := sess.frames + 1
	if plan.ResetAccumulation {
		frameIndex = 1
	}

	kernelStart := time.Now()
	args := &tracer.KernelArgs{
		Rays:               sess.bufferArg(device.Rays),
		Faces:              sess.bufferArg(device.Faces),
		Vertices:           sess.bufferArg(device.Vertices),
		Objects:            sess.bufferArg(device.Objects),
		GeometryAttributes: sess.bufferArg(device.GeometryAttributes),
		LightAttributes:    sess.bufferArg(device.LightAttributes),
		BVHTable:           sess.bufferArg(device.BVHTable),
		BVHNodes:           sess.bufferArg(device.BVHNodes),
		LightIndices:       sess.bufferArg(device.LightIndices),
		Output:             sess.bufferArg(device.RenderOutput),
		Launch:             tracer.Launch{Threads: r.opts.Threads, Blocks: r.opts.Blocks},
		SamplesPerPixel:    layout.SamplesPerPixel,
		MaxBounce:          r.opts.MaxBounce,
		FrameIndex:         frameIndex,
		Device:             sess.manager.Device(),
	}
	if err := r.kernel.Render(args); err != nil {
		return stats, fmt.Errorf("renderer: kernel %s: %w", r.kernel.Name(), err)
	}
	if err := sess.manager.TransferToHost(device.RenderOutput); err != nil {
		return stats, err
	}
	stats.KernelTime = time.Since(kernelStart)

	// Nothing below can fail so the session state is only updated here
	accumStart := time.Now()
	sess.accumulate(layout, plan.ResetAccumulation)
	sess.frames = frameIndex
	sess.resolve(layout, target)
	stats.AccumulateTime = time.Since(accumStart)

	stats.FrameIndex = frameIndex
	stats.Rays = sess.counts[device.Rays]
	stats.Faces = sess.counts[device.Faces]
	stats.Vertices = sess.counts[device.Vertices]
	stats.Objects = sess.counts[device.Objects]
	stats.Lights = sess.counts[device.LightIndices]
	stats.BVHNodes = sess.counts[device.BVHNodes]
	stats.RenderTime = time.Since(start)
	return stats, nil
}

func (r *Renderer) prepareGeometry(sess *Session, plan Plan, sc *scene.Scene, camera scene.Camera) error {
	var objects []*scene.Object
	if plan.Transform {
		objects = pack.Transform(sc.Objects(), camera.ViewMatrix())
	}

	var trees []*bvh.Tree
	if plan.BuildBVH {
		var err error
		if trees, err = pack.BuildBVHs(objects, r.opts.SplitStrategy, r.opts.BVHWorkers); err != nil {
			return err
		}
	}

	if plan.Serialize {
		geom, err := pack.Pack(objects, trees)
		if err != nil {
			return err
		}
		sess.setHost(device.Faces, geom.Faces, len(geom.Faces))
		sess.setHost(device.Vertices, geom.Vertices, len(geom.Vertices))
		sess.setHost(device.Objects, geom.Objects, len(geom.Objects))
		sess.setHost(device.GeometryAttributes, geom.GeometryAttributes, len(geom.GeometryAttributes))
		sess.setHost(device.LightAttributes, geom.LightAttributes, len(geom.LightAttributes))
		sess.setHost(device.BVHTable, geom.BVHTable, len(geom.BVHTable))
		sess.setHost(device.BVHNodes, geom.BVHNodes, len(geom.BVHNodes))
		sess.setHost(device.LightIndices, geom.LightIndices, len(geom.LightIndices))
	}

	if plan.Reallocate {
		for _, cat := range geometryCategories {
			if err := sess.manager.AllocateToFitHost(cat); err != nil {
				return err
			}
		}
	}

	if plan.TransferGeometry {
		for _, cat := range geometryCategories {
			if err := sess.manager.TransferToDevice(cat); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Renderer) prepareRays(sess *Session, plan Plan, layout pack.RayLayout) error {
	if plan.GenerateRays {
		rays := pack.GenerateRays(layout)
		sess.output = make([]tracer.Pixel, len(rays))
		sess.setHost(device.Rays, rays, len(rays))
		sess.setHost(device.RenderOutput, sess.output, len(sess.output))
	}

	if plan.ReallocateRays {
		if err := sess.manager.AllocateToFitHost(device.Rays); err != nil {
			return err
		}
		if err := sess.manager.AllocateToFitHost(device.RenderOutput); err != nil {
			return err
		}
	}

	if plan.GenerateRays {
		return sess.manager.TransferToDevice(device.Rays)
	}
	return nil
}

// Add the mean of the valid samples of each pixel to the running sums.
// Samples flagged with the miss sentinel count as black.
func (s *Session) accumulate(layout pack.RayLayout, reset bool) {
	numPixels := layout.Width * layout.Height
	if reset || len(s.accum) != numPixels*3 {
		s.accum = make([]float64, numPixels*3)
	}

	spp := layout.SamplesPerPixel
	invSpp := 1.0 / float64(spp)
	for p := 0; p < numPixels; p++ {
		var sum [3]float64
		for _, sample := range s.output[p*spp : (p+1)*spp] {
			if !sample.Valid() {
				continue
			}
			sum[0] += float64(sample.R)
			sum[1] += float64(sample.G)
			sum[2] += float64(sample.B)
		}
		s.accum[p*3] += sum[0] * invSpp
		s.accum[p*3+1] += sum[1] * invSpp
		s.accum[p*3+2] += sum[2] * invSpp
	}
}

// Write the per-pixel mean over all accumulated frames to target.
func (s *Session) resolve(layout pack.RayLayout, target Target) {
	invFrames := 1.0 / float64(s.frames)
	for y := 0; y < layout.Height; y++ {
		for x := 0; x < layout.Width; x++ {
			offset := (y*layout.Width + x) * 3
			target.SetPixel(x, y, [3]float64{
				s.accum[offset] * invFrames,
				s.accum[offset+1] * invFrames,
				s.accum[offset+2] * invFrames,
			})
		}
	}
}

package cmd

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/achilleasa/gpurt/renderer"
	"github.com/achilleasa/gpurt/scene/bvh"
	"github.com/achilleasa/gpurt/tracer"
	"github.com/achilleasa/gpurt/tracer/cpu"
	"github.com/achilleasa/gpurt/tracer/device"
	"github.com/achilleasa/gpurt/tracer/opencl"
	"github.com/urfave/cli"
)

// Render a scene for a number of progressive frames and save the result.
func RenderFrame(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	opts, err := renderOptions(ctx)
	if err != nil {
		return err
	}

	frames := ctx.Int("frames")
	if frames <= 0 {
		return fmt.Errorf("frame count must be positive; got %d", frames)
	}

	sc, camera, err := loadScene(ctx.String("scene"), ctx.Int("leaf-size"))
	if err != nil {
		return err
	}

	dev, kernel, cleanup, err := setupKernel(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	r, err := renderer.New(kernel, opts)
	if err != nil {
		return err
	}

	sess := renderer.NewSession(dev)
	defer sess.Close()

	target := renderer.NewFloatBuffer(ctx.Int("width"), ctx.Int("height"))
	start := time.Now()
	for frame := 0; frame < frames; frame++ {
		if err = r.Render(sess, sc, camera, target); err != nil {
			return err
		}
		logger.Debugf("frame %d/%d: %s", frame+1, frames, sess.Stats().RenderTime)
	}
	logger.Noticef("rendered %d frame(s) using %s in %s", sess.Frames(), kernel.Name(), time.Since(start))

	displayFrameStats(sess)

	return writePNG(ctx.String("out"), target.Image(ctx.Float64("gamma")))
}

func renderOptions(ctx *cli.Context) (renderer.Options, error) {
	opts := renderer.DefaultOptions()
	opts.SamplesPerPixel = ctx.Int("spp")
	opts.MaxBounce = ctx.Int("bounces")
	opts.Threads = ctx.Int("threads")
	opts.Blocks = ctx.Int("blocks")
	opts.Jitter = !ctx.Bool("no-jitter")
	opts.Seed = ctx.Int64("seed")
	opts.FieldOfView = float32(ctx.Float64("fov"))
	opts.BVHWorkers = ctx.Int("bvh-workers")

	switch ctx.String("split") {
	case "midpoint", "":
		opts.SplitStrategy = bvh.CentroidMidpoint
	case "sah":
		opts.SplitStrategy = bvh.SurfaceAreaHeuristic
	default:
		return opts, fmt.Errorf("unknown BVH split strategy %q; expected midpoint or sah", ctx.String("split"))
	}

	return opts, opts.Validate()
}

// Select the device and matching kernel. The returned cleanup function
// releases any device resources.
func setupKernel(ctx *cli.Context) (device.Device, tracer.Kernel, func(), error) {
	switch ctx.String("device") {
	case "host", "":
		return device.NewHostDevice(), cpu.NewKernel(), func() {}, nil
	case "opencl":
	default:
		return nil, nil, nil, fmt.Errorf("unknown device %q; expected host or opencl", ctx.String("device"))
	}

	devType, err := opencl.ParseDeviceType(ctx.String("cl-type"))
	if err != nil {
		return nil, nil, nil, err
	}
	devList, err := opencl.SelectDevices(devType, ctx.String("cl-device"))
	if err != nil {
		return nil, nil, nil, err
	}
	if len(devList) == 0 {
		return nil, nil, nil, opencl.ErrNoDevices
	}

	dev := devList[0]
	if err = dev.Init(ctx.String("cl-program")); err != nil {
		return nil, nil, nil, err
	}
	kernel, err := opencl.NewKernel(dev)
	if err != nil {
		dev.Close()
		return nil, nil, nil, err
	}
	logger.Noticef("using opencl device %q", dev.Name())

	cleanup := func() {
		kernel.Release()
		dev.Close()
	}
	return dev, kernel, cleanup, nil
}

func displayFrameStats(sess *renderer.Session) {
	logger.Noticef("frame statistics\n%s", sess.Stats().Table())
	logger.Infof("buffer statistics\n%s", sess.BufferStats())
}

func writePNG(path string, img image.Image) error {
	if path == "" {
		return errors.New("missing output file")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err = png.Encode(f, img); err != nil {
		return err
	}
	logger.Noticef("wrote frame to %s", path)
	return f.Close()
}

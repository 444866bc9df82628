package renderer

import (
	"errors"
	"testing"

	"github.com/achilleasa/gpurt/scene"
	"github.com/achilleasa/gpurt/tracer"
	"github.com/achilleasa/gpurt/tracer/cpu"
	"github.com/achilleasa/gpurt/tracer/device"
	"github.com/achilleasa/gpurt/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A kernel that fills the output with values computed from the frame and
// ray index.
type fakeKernel struct {
	frames []int
	err    error
	sample func(frameIndex, rayIndex int) tracer.Pixel
}

func (k *fakeKernel) Name() string { return "fake" }

func (k *fakeKernel) Render(args *tracer.KernelArgs) error {
	k.frames = append(k.frames, args.FrameIndex)
	if k.err != nil {
		return k.err
	}
	mem := args.Output.Memory.(*device.HostMemory)
	out := device.View[tracer.Pixel](mem.Bytes())[:args.Output.Count]
	for i := range out {
		out[i] = k.sample(args.FrameIndex, i)
	}
	return nil
}

func frameValueKernel() *fakeKernel {
	return &fakeKernel{
		sample: func(frameIndex, _ int) tracer.Pixel {
			v := float32(frameIndex)
			return tracer.Pixel{R: v, G: 2 * v, B: 3 * v, A: 1}
		},
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.SamplesPerPixel = 1
	opts.MaxBounce = 2
	opts.Threads = 1
	opts.Blocks = 4
	opts.Jitter = false
	return opts
}

func planeScene(t *testing.T) *scene.Scene {
	plane, err := scene.NewPlane(2, 2)
	require.NoError(t, err)
	plane.SetPosition(types.Vec3{0, 0, -3})

	light, err := scene.NewPlane(4, 4)
	require.NoError(t, err)
	light.SetPosition(types.Vec3{0, 0, 1})

	sc := scene.NewScene()
	require.NoError(t, sc.Add(scene.NewMesh("quad", plane, scene.NewLambert(types.Vec3{1, 1, 1}))))
	require.NoError(t, sc.Add(scene.NewLight("light", light, types.Vec3{1, 1, 1}, 4)))
	return sc
}

func TestPlanTable(t *testing.T) {
	specs := []struct {
		sceneDirty, cameraDirty, layoutChanged bool
		exp                                    Plan
	}{
		{false, false, false, Plan{}},
		{true, false, false, Plan{Transform: true, BuildBVH: true, Serialize: true, Reallocate: true, TransferGeometry: true, ResetAccumulation: true}},
		{false, true, false, Plan{Transform: true, BuildBVH: true, Serialize: true, TransferGeometry: true, ResetAccumulation: true}},
		{true, true, false, Plan{Transform: true, BuildBVH: true, Serialize: true, Reallocate: true, TransferGeometry: true, ResetAccumulation: true}},
		{false, false, true, Plan{ReallocateRays: true, GenerateRays: true, ResetAccumulation: true}},
		{false, true, true, Plan{Transform: true, BuildBVH: true, Serialize: true, TransferGeometry: true, ReallocateRays: true, GenerateRays: true, ResetAccumulation: true}},
		{true, false, true, Plan{Transform: true, BuildBVH: true, Serialize: true, Reallocate: true, TransferGeometry: true, ReallocateRays: true, GenerateRays: true, ResetAccumulation: true}},
	}

	for specIndex, spec := range specs {
		got := NewPlan(spec.sceneDirty, spec.cameraDirty, spec.layoutChanged)
		assert.Equal(t, spec.exp, got, "spec %d", specIndex)
	}

	assert.True(t, NewPlan(false, false, false).Empty())
	assert.Equal(t, "none", Plan{}.String())
	assert.Equal(t, "realloc-rays|rays|reset", NewPlan(false, false, true).String())
}

func TestOptionsValidation(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	mutators := []func(*Options){
		func(o *Options) { o.SamplesPerPixel = 0 },
		func(o *Options) { o.MaxBounce = -1 },
		func(o *Options) { o.Threads = 0 },
		func(o *Options) { o.Blocks = -2 },
		func(o *Options) { o.FieldOfView = 180 },
		func(o *Options) { o.BVHWorkers = -1 },
	}
	for index, mutate := range mutators {
		opts := DefaultOptions()
		mutate(&opts)
		assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions, "mutator %d", index)
	}

	_, err := New(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoKernel)
}

func TestAccumulatesMeanOverFrames(t *testing.T) {
	opts := testOptions()
	opts.SamplesPerPixel = 2

	// The second sample of every pixel is a miss and counts as black
	k := &fakeKernel{
		sample: func(frameIndex, rayIndex int) tracer.Pixel {
			if rayIndex%2 == 1 {
				return tracer.MissPixel
			}
			v := float32(frameIndex)
			return tracer.Pixel{R: v, G: v, B: v, A: 1}
		},
	}
	r, err := New(k, opts)
	require.NoError(t, err)

	sess := NewSession(device.NewHostDevice())
	defer sess.Close()
	sc := planeScene(t)
	cam := scene.NewPerspectiveCamera(90)
	target := NewFloatBuffer(3, 2)

	const frames = 4
	for i := 0; i < frames; i++ {
		require.NoError(t, r.Render(sess, sc, cam, target))
	}
	assert.Equal(t, []int{1, 2, 3, 4}, k.frames)
	assert.Equal(t, frames, sess.Frames())

	// mean over frames of frameIndex / 2
	exp := float32(1+2+3+4) / frames / 2
	for i, v := range target.Pix {
		assert.InDelta(t, exp, v, 1e-6, "channel value %d", i)
	}
}

func TestSceneDirtyResetsAccumulation(t *testing.T) {
	k := frameValueKernel()
	r, err := New(k, testOptions())
	require.NoError(t, err)

	sess := NewSession(device.NewHostDevice())
	defer sess.Close()
	sc := planeScene(t)
	cam := scene.NewPerspectiveCamera(90)
	target := NewFloatBuffer(2, 2)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Render(sess, sc, cam, target))
	}
	require.Equal(t, 3, sess.Frames())

	sc.MarkDirty()
	require.NoError(t, r.Render(sess, sc, cam, target))
	assert.Equal(t, 1, sess.Frames())
	assert.Equal(t, 1, sess.Stats().FrameIndex)
	assert.True(t, sess.Stats().Plan.Reallocate)

	// Prior frames are discarded; only frame 1 contributes
	assert.Equal(t, [3]float32{1, 2, 3}, target.At(1, 1))
	assert.False(t, sc.Dirty())
}

func TestCameraOnlyDirtyDoesNotReallocate(t *testing.T) {
	dev := device.NewHostDevice()
	r, err := New(frameValueKernel(), testOptions())
	require.NoError(t, err)

	sess := NewSession(dev)
	defer sess.Close()
	sc := planeScene(t)
	cam := scene.NewPerspectiveCamera(90)
	target := NewFloatBuffer(4, 4)

	require.NoError(t, r.Render(sess, sc, cam, target))
	require.NoError(t, r.Render(sess, sc, cam, target))
	require.Equal(t, 2, sess.Frames())
	assert.True(t, sess.Stats().Plan.Empty())
	allocations := dev.Allocations()

	cam.Orbit(0.1, 0.2)
	require.NoError(t, r.Render(sess, sc, cam, target))

	stats := sess.Stats()
	assert.True(t, stats.Plan.Transform)
	assert.True(t, stats.Plan.TransferGeometry)
	assert.False(t, stats.Plan.Reallocate)
	assert.False(t, stats.Plan.GenerateRays)
	assert.Equal(t, allocations, dev.Allocations())
	assert.Equal(t, 1, sess.Frames())
	assert.False(t, cam.Dirty())
}

func TestLayoutChangeRegeneratesRays(t *testing.T) {
	r, err := New(frameValueKernel(), testOptions())
	require.NoError(t, err)

	sess := NewSession(device.NewHostDevice())
	defer sess.Close()
	sc := planeScene(t)
	cam := scene.NewPerspectiveCamera(90)

	require.NoError(t, r.Render(sess, sc, cam, NewFloatBuffer(4, 4)))
	require.NoError(t, r.Render(sess, sc, cam, NewFloatBuffer(4, 4)))
	require.Equal(t, 2, sess.Frames())

	require.NoError(t, r.Render(sess, sc, cam, NewFloatBuffer(8, 2)))
	stats := sess.Stats()
	assert.Equal(t, NewPlan(false, false, true), stats.Plan)
	assert.Equal(t, 16, stats.Rays)
	assert.Equal(t, 1, sess.Frames())
}

func TestValidationBeforeDeviceWork(t *testing.T) {
	dev := device.NewHostDevice()
	r, err := New(frameValueKernel(), testOptions())
	require.NoError(t, err)
	sess := NewSession(dev)
	defer sess.Close()
	cam := scene.NewPerspectiveCamera(90)

	badTargets := []Target{
		nil,
		&FloatBuffer{Width: 2, Height: 2, Channels: 4, Pix: make([]float32, 16)},
		&FloatBuffer{Width: 0, Height: 2, Channels: 3},
		&ByteBuffer{Width: 2, Height: 2, Channels: 3, Pix: make([]uint8, 5)},
	}
	for index, target := range badTargets {
		assert.ErrorIs(t, r.Render(sess, planeScene(t), cam, target), ErrInvalidTarget, "target %d", index)
	}

	assert.ErrorIs(t, r.Render(sess, scene.NewScene(), cam, NewFloatBuffer(2, 2)), ErrEmptyScene)
	assert.ErrorIs(t, r.Render(sess, nil, cam, NewFloatBuffer(2, 2)), ErrSceneNotDefined)
	assert.ErrorIs(t, r.Render(sess, planeScene(t), nil, NewFloatBuffer(2, 2)), ErrCameraNotDefined)
	assert.Zero(t, dev.Allocations())
}

func TestCameraFieldOfViewValidation(t *testing.T) {
	dev := device.NewHostDevice()
	k := frameValueKernel()
	r, err := New(k, testOptions())
	require.NoError(t, err)
	sess := NewSession(dev)
	defer sess.Close()
	sc := planeScene(t)

	for _, fov := range []float32{0, 180, -10, 200} {
		cam := scene.NewPerspectiveCamera(fov)
		target := NewFloatBuffer(2, 2)
		err := r.Render(sess, sc, cam, target)
		assert.ErrorIs(t, err, ErrInvalidOptions, "fov %g", fov)
		assert.True(t, sc.Dirty(), "fov %g", fov)
		assert.True(t, cam.Dirty(), "fov %g", fov)
	}
	assert.Zero(t, dev.Allocations())
	assert.Empty(t, k.frames)

	cam := scene.NewPerspectiveCamera(90)
	cam.SetFieldOfView(179)
	require.NoError(t, r.Render(sess, sc, cam, NewFloatBuffer(2, 2)))
}

func TestDeviceFailureKeepsDirtyFlags(t *testing.T) {
	dev := device.NewHostDevice()
	dev.FailAlloc = func(name string, _ int) bool { return name == device.Rays.String() }

	k := frameValueKernel()
	r, err := New(k, testOptions())
	require.NoError(t, err)
	sess := NewSession(dev)
	defer sess.Close()
	sc := planeScene(t)
	cam := scene.NewPerspectiveCamera(90)

	target := NewFloatBuffer(2, 2)
	for i := range target.Pix {
		target.Pix[i] = 7
	}

	err = r.Render(sess, sc, cam, target)
	require.ErrorIs(t, err, device.ErrAllocFailed)
	assert.True(t, sc.Dirty())
	assert.True(t, cam.Dirty())
	assert.Empty(t, k.frames)
	for _, v := range target.Pix {
		assert.Equal(t, float32(7), v)
	}

	dev.FailAlloc = nil
	require.NoError(t, r.Render(sess, sc, cam, target))
	assert.Equal(t, 1, sess.Frames())
	assert.Equal(t, [3]float32{1, 2, 3}, target.At(0, 0))
}

func TestKernelFailureForcesRebuild(t *testing.T) {
	k := frameValueKernel()
	r, err := New(k, testOptions())
	require.NoError(t, err)
	sess := NewSession(device.NewHostDevice())
	defer sess.Close()
	sc := planeScene(t)
	cam := scene.NewPerspectiveCamera(90)
	target := NewFloatBuffer(2, 2)

	require.NoError(t, r.Render(sess, sc, cam, target))
	require.NoError(t, r.Render(sess, sc, cam, target))

	k.err = errors.New("boom")
	require.Error(t, r.Render(sess, sc, cam, target))
	assert.Equal(t, 2, sess.Frames())
	assert.Equal(t, [3]float32{1.5, 3, 4.5}, target.At(0, 0))

	k.err = nil
	require.NoError(t, r.Render(sess, sc, cam, target))
	stats := sess.Stats()
	assert.True(t, stats.Plan.Reallocate)
	assert.True(t, stats.Plan.GenerateRays)
	assert.Equal(t, 1, stats.FrameIndex)
}

func TestClosedSession(t *testing.T) {
	dev := device.NewHostDevice()
	r, err := New(frameValueKernel(), testOptions())
	require.NoError(t, err)
	sess := NewSession(dev)

	require.NoError(t, r.Render(sess, planeScene(t), scene.NewPerspectiveCamera(90), NewFloatBuffer(2, 2)))
	require.NotZero(t, dev.Live())

	sess.Close()
	assert.Zero(t, dev.Live())
	assert.ErrorIs(t, r.Render(sess, planeScene(t), scene.NewPerspectiveCamera(90), NewFloatBuffer(2, 2)), ErrSessionClosed)
}

func TestEndToEndQuad(t *testing.T) {
	opts := testOptions()
	opts.SamplesPerPixel = 2
	r, err := New(cpu.NewKernel(), opts)
	require.NoError(t, err)

	sess := NewSession(device.NewHostDevice())
	defer sess.Close()

	sc := planeScene(t)
	require.NoError(t, sc.Objects()[0].Geometry.SetBVH(true, 1))
	cam := scene.NewPerspectiveCamera(90)

	// At 90 degrees the quad at z=-3 with half size 1 covers pixels 4..7
	const size = 12
	target := NewFloatBuffer(size, size)
	for frame := 0; frame < 2; frame++ {
		require.NoError(t, r.Render(sess, sc, cam, target))
	}
	assert.NotZero(t, sess.Stats().BVHNodes)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			px := target.At(x, y)
			inside := x >= 4 && x <= 7 && y >= 4 && y <= 7
			if inside {
				assert.Greater(t, px[0], float32(0), "pixel (%d, %d)", x, y)
				continue
			}
			assert.Equal(t, [3]float32{}, px, "pixel (%d, %d)", x, y)
		}
	}
}

func TestByteBufferTargetClamps(t *testing.T) {
	k := &fakeKernel{
		sample: func(_, _ int) tracer.Pixel {
			return tracer.Pixel{R: 0.5, G: 2, B: -0.5, A: 1}
		},
	}
	r, err := New(k, testOptions())
	require.NoError(t, err)
	sess := NewSession(device.NewHostDevice())
	defer sess.Close()

	target := NewByteBuffer(3, 2)
	require.NoError(t, r.Render(sess, planeScene(t), scene.NewPerspectiveCamera(90), target))

	for p := 0; p < 3*2; p++ {
		assert.Equal(t, []uint8{127, 255, 0}, target.Pix[p*3:p*3+3], "pixel %d", p)
	}

	img := target.Image()
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	assert.Equal(t, []uint8{127, 255, 0, 255}, img.Pix[:4])
}

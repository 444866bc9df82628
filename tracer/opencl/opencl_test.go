package opencl

import (
	"testing"

	"github.com/achilleasa/gopencl/v1.2/cl"
	"github.com/achilleasa/gpurt/tracer"
	"github.com/achilleasa/gpurt/tracer/device"
	"github.com/achilleasa/gpurt/types"
)

func TestErrorName(t *testing.T) {
	specs := []struct {
		code cl.ErrorCode
		exp  string
	}{
		{0, "SUCCESS"},
		{-5, "OUT_OF_RESOURCES"},
		{-46, "INVALID_KERNEL_NAME"},
		{-999, "unknown error code -999"},
	}

	for specIndex, spec := range specs {
		if got := ErrorName(spec.code); got != spec.exp {
			t.Errorf("[spec %d] expected name %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestParseDeviceType(t *testing.T) {
	specs := map[string]DeviceType{
		"cpu": CpuDevice,
		"GPU": GpuDevice,
		"all": AllDevices,
		"":    AllDevices,
	}
	for name, exp := range specs {
		got, err := ParseDeviceType(name)
		if err != nil {
			t.Fatal(err)
		}
		if got != exp {
			t.Errorf("expected %q to map to %s; got %s", name, exp, got)
		}
	}

	if _, err := ParseDeviceType("fpga"); err == nil {
		t.Fatal("expected an error for an unknown device type")
	}
}

func TestAllocWithoutInit(t *testing.T) {
	var id cl.DeviceId
	dev := newDevice("uninitialized", id, CpuDevice)
	if _, err := dev.Alloc("rays", 16); err == nil {
		t.Fatal("expected an error when allocating on an uninitialized device")
	}
}

func firstDevice(t *testing.T) *Device {
	devList, err := SelectDevices(AllDevices, "")
	if err != nil {
		t.Skipf("opencl unavailable: %v", err)
	}
	if len(devList) == 0 {
		t.Skip("no opencl devices available")
	}
	dev := devList[0]
	if err := dev.Init(""); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(dev.Close)
	return dev
}

func TestBufferRoundTrip(t *testing.T) {
	dev := firstDevice(t)
	mgr := device.NewManager(dev)
	defer mgr.Release()

	in := []int32{1, 2, 3, 4}
	mgr.SetHost(device.LightIndices, in)
	if err := mgr.AllocateToFitHost(device.LightIndices); err != nil {
		t.Fatal(err)
	}
	if err := mgr.TransferToDevice(device.LightIndices); err != nil {
		t.Fatal(err)
	}

	out := make([]int32, len(in))
	mgr.SetHost(device.LightIndices, out)
	if err := mgr.TransferToHost(device.LightIndices); err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("expected element %d to be %d; got %d", i, in[i], out[i])
		}
	}
}

func TestRenderMisses(t *testing.T) {
	dev := firstDevice(t)
	k, err := NewKernel(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer k.Release()

	mgr := device.NewManager(dev)
	defer mgr.Release()

	// No geometry; every ray misses
	rays := []tracer.Ray{{Direction: types.Vec4{0, 0, -1, 0}, Origin: types.Vec4{0, 0, 0, 1}}}
	output := make([]tracer.Pixel, len(rays))
	mgr.SetHost(device.Rays, rays)
	mgr.SetHost(device.RenderOutput, output)
	for _, cat := range []device.Category{device.Rays, device.RenderOutput} {
		if err := mgr.AllocateToFitHost(cat); err != nil {
			t.Fatal(err)
		}
		if err := mgr.TransferToDevice(cat); err != nil {
			t.Fatal(err)
		}
	}

	args := &tracer.KernelArgs{
		Rays:            tracer.BufferArg{Memory: mgr.Memory(device.Rays), Count: len(rays)},
		Output:          tracer.BufferArg{Memory: mgr.Memory(device.RenderOutput), Count: len(output)},
		Launch:          tracer.Launch{Threads: 1, Blocks: 1},
		SamplesPerPixel: 1,
		MaxBounce:       1,
		FrameIndex:      1,
		Device:          dev,
	}
	if err := k.Render(args); err != nil {
		t.Fatal(err)
	}
	if err := mgr.TransferToHost(device.RenderOutput); err != nil {
		t.Fatal(err)
	}
	if output[0] != tracer.MissPixel {
		t.Fatalf("expected miss sentinel; got %v", output[0])
	}
}

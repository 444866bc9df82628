package opencl

import (
	"fmt"
	"reflect"
	"time"
	"unsafe"

	"github.com/achilleasa/gopencl/v1.2/cl"
	"github.com/achilleasa/gpurt/log"
	"github.com/achilleasa/gpurt/tracer"
	"github.com/achilleasa/gpurt/types"
)

// The entry point of the built-in path tracing program.
const RenderKernelName = "render"

// A wrapper around opencl kernel handles. A Kernel loaded from a program
// that exposes the render entry point implements tracer.Kernel.
type Kernel struct {
	device       *Device
	kernelHandle cl.Kernel
	name         string
	logger       log.Logger

	globalWorkSizes [1]uint64
	localWorkSizes  [1]uint64
}

// Create a tracer kernel for an initialized device.
func NewKernel(dev *Device) (*Kernel, error) {
	return dev.Kernel(RenderKernelName)
}

func (k *Kernel) Name() string {
	return "opencl/" + k.device.Name()
}

// Free any allocated resources used by this kernel.
func (k *Kernel) Release() {
	if k.kernelHandle != nil {
		cl.ReleaseKernel(k.kernelHandle)
		k.kernelHandle = nil
	}
}

// Bind arguments to kernelHandle.
func (k *Kernel) SetArgs(args ...interface{}) error {
	var errCode cl.ErrorCode
	for argIndex, arg := range args {
		// We need a pointer to the underlying data so each case re-asserts
		// the concrete type instead of using the captured switch value.
		switch arg.(type) {
		case *Buffer:
			bufHandle := arg.(*Buffer).Handle()
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), uint64(unsafe.Sizeof(bufHandle)), unsafe.Pointer(&bufHandle))
		case cl.Mem:
			bufHandle := arg.(cl.Mem)
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), uint64(unsafe.Sizeof(bufHandle)), unsafe.Pointer(&bufHandle))
		case int32:
			v := arg.(int32)
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), 4, unsafe.Pointer(&v))
		case uint32:
			v := arg.(uint32)
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), 4, unsafe.Pointer(&v))
		case float32:
			v := arg.(float32)
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), 4, unsafe.Pointer(&v))
		case types.Vec4:
			v := arg.(types.Vec4)
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), 16, unsafe.Pointer(&v[0]))
		default:
			return fmt.Errorf(
				"opencl device (%s): could not set arg %d for kernel %s; unsupported arg type: %s",
				k.device.Name(),
				argIndex,
				k.name,
				reflect.TypeOf(arg),
			)
		}

		if errCode != cl.SUCCESS {
			return fmt.Errorf(
				"opencl device (%s): could not set arg %d for kernel %s (error: %s; code %d)",
				k.device.Name(),
				argIndex,
				k.name,
				ErrorName(errCode),
				errCode,
			)
		}
	}

	return nil
}

// Execute 1D kernelHandle and wait for it to complete. If localWorkSize is
// equal to 0 then the opencl implementation will pick the optimal worksize
// split for the underlying hardware.
func (k *Kernel) Exec1D(globalWorkSize, localWorkSize int) (time.Duration, error) {
	var localSizePtr *uint64

	k.globalWorkSizes[0] = uint64(globalWorkSize)
	if localWorkSize != 0 {
		k.localWorkSizes[0] = uint64(localWorkSize)
		localSizePtr = &k.localWorkSizes[0]
	}

	tick := time.Now()
	errCode := cl.EnqueueNDRangeKernel(
		k.device.cmdQueue,
		k.kernelHandle,
		1,
		nil,
		&k.globalWorkSizes[0],
		localSizePtr,
		0,
		nil,
		nil,
	)
	if errCode != cl.SUCCESS {
		return 0, fmt.Errorf("opencl device (%s): unable to execute kernel %s (error: %s; code %d)", k.device.Name(), k.name, ErrorName(errCode), errCode)
	}

	errCode = cl.Finish(k.device.cmdQueue)
	if errCode != cl.SUCCESS {
		return 0, fmt.Errorf("opencl device (%s): kernel %s did not complete successfully (error: %s; code %d)", k.device.Name(), k.name, ErrorName(errCode), errCode)
	}

	return time.Since(tick), nil
}

// Render binds the scene buffers and launches Blocks * Threads work items.
// The program walks the rays with a grid stride so any launch geometry
// covers every ray.
func (k *Kernel) Render(args *tracer.KernelArgs) error {
	buffers := []tracer.BufferArg{
		args.Rays,
		args.Faces,
		args.Vertices,
		args.Objects,
		args.GeometryAttributes,
		args.LightAttributes,
		args.BVHTable,
		args.BVHNodes,
		args.LightIndices,
		args.Output,
	}

	clArgs := make([]interface{}, 0, 2*len(buffers)+3)
	for _, buf := range buffers {
		handle, err := k.bufferHandle(buf)
		if err != nil {
			return fmt.Errorf("%w: %w", tracer.ErrKernelFailed, err)
		}
		clArgs = append(clArgs, handle, int32(buf.Count))
	}
	clArgs = append(clArgs,
		int32(args.SamplesPerPixel),
		int32(args.MaxBounce),
		uint32(args.FrameIndex),
	)

	if err := k.SetArgs(clArgs...); err != nil {
		return fmt.Errorf("%w: %w", tracer.ErrKernelFailed, err)
	}

	globalWorkSize := args.Launch.Blocks * args.Launch.Threads
	localWorkSize := args.Launch.Threads
	if globalWorkSize <= 0 {
		globalWorkSize, localWorkSize = args.Rays.Count, 0
	}
	if globalWorkSize == 0 {
		return nil
	}

	elapsed, err := k.Exec1D(globalWorkSize, localWorkSize)
	if err != nil {
		return fmt.Errorf("%w: %w", tracer.ErrKernelFailed, err)
	}

	k.logger.Debugf("traced %d rays in %d ms", args.Rays.Count, elapsed.Nanoseconds()/1e6)
	return nil
}

// Empty categories are bound as null buffers.
func (k *Kernel) bufferHandle(arg tracer.BufferArg) (cl.Mem, error) {
	if arg.Count == 0 && arg.Memory == nil {
		return nil, nil
	}
	b, ok := arg.Memory.(*Buffer)
	if !ok || b == nil {
		return nil, fmt.Errorf("opencl kernel %s: buffer with %d elements is not device memory (%T)", k.name, arg.Count, arg.Memory)
	}
	return b.Handle(), nil
}

package opencl

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/achilleasa/gopencl/v1.2/cl"
	"github.com/achilleasa/gpurt/log"
	"github.com/achilleasa/gpurt/tracer/device"
)

// The path tracing program used when Init is called without a program file.
//
//go:embed render.cl
var renderProgram string

// Wrapper around opencl-supported devices. Once initialized, a Device
// implements device.Device.
type Device struct {
	name   string
	Id     cl.DeviceId
	Type   DeviceType
	logger log.Logger

	compUnits  uint32
	clockSpeed uint32

	// Speed estimate in GFlops.
	Speed uint32

	// Opencl handles; allocated when device is initialized.
	ctx      *cl.Context
	cmdQueue cl.CommandQueue
	program  cl.Program
}

func newDevice(name string, id cl.DeviceId, devType DeviceType) *Device {
	return &Device{
		name:   name,
		Id:     id,
		Type:   devType,
		logger: log.New("opencl device"),
	}
}

func (d *Device) Name() string {
	return d.name
}

func (d *Device) String() string {
	return fmt.Sprintf(
		"Name: %s\nType: %s\nSpecs: %d computation units, %d Mhz clock, %d GFlops approximate speed",
		d.name,
		d.Type.String(),
		d.compUnits,
		d.clockSpeed,
		d.Speed,
	)
}

// Initialize device and build the program stored in programFile. If
// programFile is empty the built-in path tracing program is used instead.
func (d *Device) Init(programFile string) error {
	var errCode cl.ErrorCode

	// Already initialized
	if d.ctx != nil {
		return nil
	}

	d.ctx = cl.CreateContext(nil, 1, &d.Id, nil, nil, (*int32)(&errCode))
	if errCode != cl.SUCCESS {
		defer d.Close()
		return clError(ErrContextCreationFailed, d.name, "could not create opencl context", errCode)
	}

	d.cmdQueue = cl.CreateCommandQueue(*d.ctx, d.Id, 0, (*int32)(&errCode))
	if errCode != cl.SUCCESS {
		defer d.Close()
		return clError(ErrCmdQueueCreationFailed, d.name, "could not create command queue", errCode)
	}

	source := renderProgram
	buildOpts := "\x00"
	if programFile != "" {
		absProgramPath, err := filepath.Abs(programFile)
		if err != nil {
			defer d.Close()
			return err
		}
		data, err := os.ReadFile(absProgramPath)
		if err != nil {
			defer d.Close()
			return err
		}
		source = string(data)
		buildOpts = fmt.Sprintf("-I %s\x00", filepath.Dir(absProgramPath))
	}
	progSrc := cl.Str(source + "\x00")

	d.program = cl.CreateProgramWithSource(
		*d.ctx,
		1,
		&progSrc,
		nil,
		(*int32)(&errCode),
	)
	if errCode != cl.SUCCESS {
		defer d.Close()
		return clError(ErrProgramBuildFailed, d.name, "could not create program", errCode)
	}

	errCode = cl.BuildProgram(
		d.program,
		1,
		&d.Id,
		cl.Str(buildOpts),
		nil,
		nil,
	)
	if errCode != cl.SUCCESS {
		var dataLen uint64
		data := make([]byte, 120000)

		cl.GetProgramBuildInfo(d.program, d.Id, cl.PROGRAM_BUILD_LOG, uint64(len(data)), unsafe.Pointer(&data[0]), &dataLen)
		defer d.Close()
		buildLog := ""
		if dataLen > 0 {
			buildLog = string(data[0 : dataLen-1])
		}
		return fmt.Errorf("%w:\n%s", clError(ErrProgramBuildFailed, d.name, "could not build kernel", errCode), buildLog)
	}

	d.logger.Noticef("initialized device %q", d.name)
	return nil
}

// Shut down the device.
func (d *Device) Close() {
	if d.program != nil {
		cl.ReleaseProgram(d.program)
		d.program = nil
	}

	if d.cmdQueue != nil {
		cl.ReleaseCommandQueue(d.cmdQueue)
		d.cmdQueue = nil
	}

	if d.ctx != nil {
		cl.ReleaseContext(d.ctx)
		d.ctx = nil
	}
}

// Load kernel by name.
func (d *Device) Kernel(name string) (*Kernel, error) {
	if d.program == nil {
		return nil, ErrNotInitialized
	}

	var errCode cl.ErrorCode
	kernelHandle := cl.CreateKernel(
		d.program,
		cl.Str(name+"\x00"),
		(*int32)(&errCode),
	)
	if errCode != cl.SUCCESS {
		return nil, clError(ErrProgramBuildFailed, d.name, "could not load kernel "+name, errCode)
	}

	return &Kernel{
		device:       d,
		kernelHandle: kernelHandle,
		name:         name,
		logger:       log.New("opencl kernel"),
	}, nil
}

// An opencl buffer.
type Buffer struct {
	name   string
	size   int
	handle cl.Mem
}

func (b *Buffer) Name() string { return b.name }
func (b *Buffer) Size() int    { return b.size }

// Get opencl buffer handle.
func (b *Buffer) Handle() cl.Mem {
	return b.handle
}

// Allocate a read/write buffer.
func (d *Device) Alloc(name string, size int) (device.Memory, error) {
	if d.ctx == nil {
		return nil, fmt.Errorf("%w: %w", device.ErrAllocFailed, ErrNotInitialized)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid size %d for buffer %s", device.ErrAllocFailed, size, name)
	}

	var errCode int32
	handle := cl.CreateBuffer(
		*d.ctx,
		cl.MEM_READ_WRITE,
		cl.MemFlags(size),
		nil,
		&errCode,
	)
	if cl.ErrorCode(errCode) != cl.SUCCESS {
		return nil, clError(device.ErrAllocFailed, d.name, fmt.Sprintf("could not allocate buffer %s of size %d", name, size), cl.ErrorCode(errCode))
	}

	return &Buffer{name: name, size: size, handle: handle}, nil
}

// Release a buffer allocated by this device.
func (d *Device) Free(mem device.Memory) {
	b, ok := mem.(*Buffer)
	if !ok || b == nil {
		panic(fmt.Sprintf("opencl device (%s): attempted to free foreign memory %T", d.name, mem))
	}
	if b.handle != nil {
		cl.ReleaseMemObject(b.handle)
		b.handle = nil
	}
}

// Copy src to dst. Blocks until the copy completes.
func (d *Device) Write(dst device.Memory, src []byte) error {
	b, err := d.checkCopy(dst, len(src))
	if err != nil || len(src) == 0 {
		return err
	}

	errCode := cl.EnqueueWriteBuffer(
		d.cmdQueue,
		b.handle,
		cl.TRUE,
		0,
		uint64(len(src)),
		unsafe.Pointer(&src[0]),
		0,
		nil,
		nil,
	)
	if errCode != cl.SUCCESS {
		return clError(device.ErrCopyFailed, d.name, "error copying host data to device buffer "+b.name, errCode)
	}
	return nil
}

// Copy len(dst) bytes from src to dst. Blocks until the copy completes.
func (d *Device) Read(dst []byte, src device.Memory) error {
	b, err := d.checkCopy(src, len(dst))
	if err != nil || len(dst) == 0 {
		return err
	}

	errCode := cl.EnqueueReadBuffer(
		d.cmdQueue,
		b.handle,
		cl.TRUE,
		0,
		uint64(len(dst)),
		unsafe.Pointer(&dst[0]),
		0,
		nil,
		nil,
	)
	if errCode != cl.SUCCESS {
		return clError(device.ErrCopyFailed, d.name, "error copying device data from "+b.name+" to host buffer", errCode)
	}
	return nil
}

func (d *Device) checkCopy(mem device.Memory, size int) (*Buffer, error) {
	b, ok := mem.(*Buffer)
	if !ok || b == nil || b.handle == nil {
		return nil, fmt.Errorf("%w: opencl device (%s): invalid buffer %T", device.ErrCopyFailed, d.name, mem)
	}
	if size > b.size {
		return nil, fmt.Errorf("%w: opencl device (%s): buffer %s holds %d bytes; copy needs %d", device.ErrSizeMismatch, d.name, b.name, b.size, size)
	}
	return b, nil
}

// Detect device speed.
func (d *Device) detectSpeed() error {
	// Calculate theoretical device speed as: compute units * 2ops/cycle * clock speed
	errCode := cl.GetDeviceInfo(d.Id, cl.DEVICE_MAX_COMPUTE_UNITS, 4, unsafe.Pointer(&d.compUnits), nil)
	if errCode != cl.SUCCESS {
		return clError(ErrNoDevices, d.name, "could not query MAX_COMPUTE_UNITS", errCode)
	}
	errCode = cl.GetDeviceInfo(d.Id, cl.DEVICE_MAX_CLOCK_FREQUENCY, 4, unsafe.Pointer(&d.clockSpeed), nil)
	if errCode != cl.SUCCESS {
		return clError(ErrNoDevices, d.name, "could not query MAX_CLOCK_FREQUENCY", errCode)
	}
	d.Speed = d.compUnits * d.clockSpeed / 1000

	return nil
}

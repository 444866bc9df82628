package opencl

import (
	"errors"
	"fmt"

	"github.com/achilleasa/gopencl/v1.2/cl"
)

var (
	ErrNoDevices              = errors.New("opencl: no matching devices found")
	ErrContextCreationFailed  = errors.New("opencl: could not create opencl context")
	ErrCmdQueueCreationFailed = errors.New("opencl: could not create opencl command queue")
	ErrProgramBuildFailed     = errors.New("opencl: could not build program")
	ErrNotInitialized         = errors.New("opencl: device not initialized")
)

// Return a textual description of an opencl error code. The names mirror the
// CL_* error constants defined by the OpenCL 1.2 headers.
func ErrorName(errCode cl.ErrorCode) string {
	switch errCode {
	case 0:
		return "SUCCESS"
	case -1:
		return "DEVICE_NOT_FOUND"
	case -2:
		return "DEVICE_NOT_AVAILABLE"
	case -3:
		return "COMPILER_NOT_AVAILABLE"
	case -4:
		return "MEM_OBJECT_ALLOCATION_FAILURE"
	case -5:
		return "OUT_OF_RESOURCES"
	case -6:
		return "OUT_OF_HOST_MEMORY"
	case -7:
		return "PROFILING_INFO_NOT_AVAILABLE"
	case -8:
		return "MEM_COPY_OVERLAP"
	case -9:
		return "IMAGE_FORMAT_MISMATCH"
	case -10:
		return "IMAGE_FORMAT_NOT_SUPPORTED"
	case -11:
		return "BUILD_PROGRAM_FAILURE"
	case -12:
		return "MAP_FAILURE"
	case -30:
		return "INVALID_VALUE"
	case -31:
		return "INVALID_DEVICE_TYPE"
	case -32:
		return "INVALID_PLATFORM"
	case -33:
		return "INVALID_DEVICE"
	case -34:
		return "INVALID_CONTEXT"
	case -35:
		return "INVALID_QUEUE_PROPERTIES"
	case -36:
		return "INVALID_COMMAND_QUEUE"
	case -37:
		return "INVALID_HOST_PTR"
	case -38:
		return "INVALID_MEM_OBJECT"
	case -40:
		return "INVALID_IMAGE_SIZE"
	case -42:
		return "INVALID_BINARY"
	case -43:
		return "INVALID_BUILD_OPTIONS"
	case -44:
		return "INVALID_PROGRAM"
	case -45:
		return "INVALID_PROGRAM_EXECUTABLE"
	case -46:
		return "INVALID_KERNEL_NAME"
	case -47:
		return "INVALID_KERNEL_DEFINITION"
	case -48:
		return "INVALID_KERNEL"
	case -49:
		return "INVALID_ARG_INDEX"
	case -50:
		return "INVALID_ARG_VALUE"
	case -51:
		return "INVALID_ARG_SIZE"
	case -52:
		return "INVALID_KERNEL_ARGS"
	case -53:
		return "INVALID_WORK_DIMENSION"
	case -54:
		return "INVALID_WORK_GROUP_SIZE"
	case -55:
		return "INVALID_WORK_ITEM_SIZE"
	case -56:
		return "INVALID_GLOBAL_OFFSET"
	case -57:
		return "INVALID_EVENT_WAIT_LIST"
	case -58:
		return "INVALID_EVENT"
	case -59:
		return "INVALID_OPERATION"
	case -61:
		return "INVALID_BUFFER_SIZE"
	case -63:
		return "INVALID_GLOBAL_WORK_SIZE"
	default:
		return fmt.Sprintf("unknown error code %d", errCode)
	}
}

// Wrap a failed opencl call into an error that carries the error name.
func clError(sentinel error, devName, op string, errCode cl.ErrorCode) error {
	return fmt.Errorf("%w: opencl device (%s): %s (error: %s; code %d)", sentinel, devName, op, ErrorName(errCode), errCode)
}

package device

import "errors"

var (
	ErrAllocFailed  = errors.New("device: allocation failed")
	ErrCopyFailed   = errors.New("device: copy failed")
	ErrSizeMismatch = errors.New("device: host and device buffer sizes differ")
)

// A block of device memory.
type Memory interface {
	// A name for identifying the allocation in logs.
	Name() string

	// Allocated size in bytes.
	Size() int
}

// A compute device capable of allocating memory and performing blocking
// copies between host and device memory.
type Device interface {
	Name() string

	// Allocate size bytes of device memory.
	Alloc(name string, size int) (Memory, error)

	// Release a previously allocated memory block.
	Free(mem Memory)

	// Copy len(src) bytes from the host to dst. Blocks until the copy completes.
	Write(dst Memory, src []byte) error

	// Copy len(dst) bytes from src to the host. Blocks until the copy completes.
	Read(dst []byte, src Memory) error
}

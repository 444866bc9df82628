package device

import (
	"fmt"
	"sync"
)

// Memory allocated by a HostDevice.
type HostMemory struct {
	name string
	data []byte
}

func (m *HostMemory) Name() string {
	return m.name
}

func (m *HostMemory) Size() int {
	return len(m.data)
}

// Bytes exposes the backing storage to kernels running on the host.
func (m *HostMemory) Bytes() []byte {
	return m.data
}

// HostDevice implements Device on top of regular host memory. It keeps
// counters of every allocation so tests can observe reallocation behavior.
type HostDevice struct {
	mutex sync.Mutex

	allocations int
	frees       int
	bytes       int
	live        map[*HostMemory]struct{}

	// Optional fault injection hooks. When a hook returns true the
	// corresponding operation fails.
	FailAlloc func(name string, size int) bool
	FailCopy  func(name string) bool
}

func NewHostDevice() *HostDevice {
	return &HostDevice{
		live: make(map[*HostMemory]struct{}),
	}
}

func (d *HostDevice) Name() string {
	return "host"
}

func (d *HostDevice) Alloc(name string, size int) (Memory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("host device: invalid allocation size %d for %s", size, name)
	}
	if d.FailAlloc != nil && d.FailAlloc(name, size) {
		return nil, fmt.Errorf("host device: could not allocate buffer %s of size %d", name, size)
	}

	mem := &HostMemory{name: name, data: make([]byte, size)}

	d.mutex.Lock()
	d.allocations++
	d.bytes += size
	d.live[mem] = struct{}{}
	d.mutex.Unlock()

	return mem, nil
}

func (d *HostDevice) Free(mem Memory) {
	hostMem := d.memory(mem)

	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.live[hostMem]; !ok {
		panic(fmt.Sprintf("host device: double free of buffer %s", hostMem.name))
	}
	delete(d.live, hostMem)
	d.frees++
	d.bytes -= hostMem.Size()
}

func (d *HostDevice) Write(dst Memory, src []byte) error {
	hostMem := d.memory(dst)
	if len(src) > hostMem.Size() {
		return fmt.Errorf("host device: insufficient buffer space (%d) in %s for copying data of length %d", hostMem.Size(), hostMem.name, len(src))
	}
	if d.FailCopy != nil && d.FailCopy(hostMem.name) {
		return fmt.Errorf("host device: error copying host data to device buffer %s", hostMem.name)
	}
	copy(hostMem.data, src)
	return nil
}

func (d *HostDevice) Read(dst []byte, src Memory) error {
	hostMem := d.memory(src)
	if len(dst) > hostMem.Size() {
		return fmt.Errorf("host device: cannot read %d bytes from buffer %s of size %d", len(dst), hostMem.name, hostMem.Size())
	}
	if d.FailCopy != nil && d.FailCopy(hostMem.name) {
		return fmt.Errorf("host device: error copying device data from %s to host buffer", hostMem.name)
	}
	copy(dst, hostMem.data)
	return nil
}

// Total number of successful allocations.
func (d *HostDevice) Allocations() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.allocations
}

// Total number of frees.
func (d *HostDevice) Frees() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.frees
}

// Number of allocations that have not been freed.
func (d *HostDevice) Live() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.live)
}

// Number of allocated bytes that have not been freed.
func (d *HostDevice) LiveBytes() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.bytes
}

func (d *HostDevice) memory(mem Memory) *HostMemory {
	hostMem, ok := mem.(*HostMemory)
	if !ok {
		panic(fmt.Sprintf("host device: memory %s was not allocated by a host device", mem.Name()))
	}
	return hostMem
}

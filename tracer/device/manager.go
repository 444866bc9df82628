package device

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/achilleasa/gpurt/log"
	"github.com/olekukonko/tablewriter"
)

// The buffer categories managed by a Manager.
type Category uint8

const (
	Rays Category = iota
	Faces
	Vertices
	Objects
	GeometryAttributes
	LightAttributes
	BVHTable
	BVHNodes
	LightIndices
	RenderOutput

	numCategories
)

var categoryNames = [numCategories]string{
	"rays",
	"faces",
	"vertices",
	"objects",
	"geometryAttributes",
	"lightAttributes",
	"bvhTable",
	"bvhNodes",
	"lightIndices",
	"renderOutput",
}

func (c Category) String() string {
	if c >= numCategories {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// All buffer categories in declaration order.
func Categories() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// A host slice paired with a device allocation.
type buffer struct {
	host interface{}
	mem  Memory
}

// Manager owns one host array and one device allocation for each buffer
// category. It must not be shared between renderers.
type Manager struct {
	logger  log.Logger
	device  Device
	buffers [numCategories]buffer
}

func NewManager(dev Device) *Manager {
	return &Manager{
		logger: log.New("device manager"),
		device: dev,
	}
}

func (m *Manager) Device() Device {
	return m.device
}

// Attach a host slice to a category. The slice element type must be a
// fixed-size, pointer-free value type.
func (m *Manager) SetHost(cat Category, slice interface{}) {
	if slice != nil && reflect.ValueOf(slice).Kind() != reflect.Slice {
		panic(fmt.Sprintf("device manager: host data for %s must be a slice", cat))
	}
	m.buffers[cat].host = slice
}

// Get the host slice attached to a category.
func (m *Manager) Host(cat Category) interface{} {
	return m.buffers[cat].host
}

// Get the host slice size in bytes.
func (m *Manager) HostSize(cat Category) int {
	if m.buffers[cat].host == nil {
		return 0
	}
	return len(Bytes(m.buffers[cat].host))
}

// Get the device allocation for a category or nil if none exists.
func (m *Manager) Memory(cat Category) Memory {
	return m.buffers[cat].mem
}

// Get the device allocation size in bytes.
func (m *Manager) Size(cat Category) int {
	if m.buffers[cat].mem == nil {
		return 0
	}
	return m.buffers[cat].mem.Size()
}

// Ensure that the device allocation for cat is exactly size bytes. If the
// existing allocation already has that size it is kept; otherwise it is
// released and a new one is made. A zero size simply frees the category.
func (m *Manager) Allocate(cat Category, size int) error {
	buf := &m.buffers[cat]
	if buf.mem != nil && buf.mem.Size() == size {
		return nil
	}

	m.Free(cat)
	if size == 0 {
		return nil
	}

	mem, err := m.device.Alloc(cat.String(), size)
	if err != nil {
		return fmt.Errorf("%w: %s (%d bytes): %w", ErrAllocFailed, cat, size, err)
	}
	buf.mem = mem
	m.logger.Debugf("allocated %s for %s", fmtSize(size), cat)
	return nil
}

// Allocate device memory that matches the size of the attached host slice.
func (m *Manager) AllocateToFitHost(cat Category) error {
	return m.Allocate(cat, m.HostSize(cat))
}

// Release the device allocation for cat. Safe to call on empty categories.
func (m *Manager) Free(cat Category) {
	buf := &m.buffers[cat]
	if buf.mem == nil {
		return
	}
	m.device.Free(buf.mem)
	buf.mem = nil
}

// Copy the host slice to the device allocation. Blocks until the copy completes.
func (m *Manager) TransferToDevice(cat Category) error {
	data, err := m.checkSizes(cat)
	if err != nil || len(data) == 0 {
		return err
	}
	if err = m.device.Write(m.buffers[cat].mem, data); err != nil {
		return fmt.Errorf("%w: %s host to device: %w", ErrCopyFailed, cat, err)
	}
	return nil
}

// Copy the device allocation into the host slice. Blocks until the copy completes.
func (m *Manager) TransferToHost(cat Category) error {
	data, err := m.checkSizes(cat)
	if err != nil || len(data) == 0 {
		return err
	}
	if err = m.device.Read(data, m.buffers[cat].mem); err != nil {
		return fmt.Errorf("%w: %s device to host: %w", ErrCopyFailed, cat, err)
	}
	return nil
}

func (m *Manager) checkSizes(cat Category) ([]byte, error) {
	var data []byte
	if m.buffers[cat].host != nil {
		data = Bytes(m.buffers[cat].host)
	}
	if len(data) != m.Size(cat) {
		return nil, fmt.Errorf("%w: %s host %d bytes, device %d bytes", ErrSizeMismatch, cat, len(data), m.Size(cat))
	}
	return data, nil
}

// Release all device allocations.
func (m *Manager) Release() {
	for cat := Category(0); cat < numCategories; cat++ {
		m.Free(cat)
	}
}

// Build a tabular representation of the host and device buffer sizes.
func (m *Manager) Stats() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Buffer", "Host", "Device"})

	var hostTotal, deviceTotal int
	for cat := Category(0); cat < numCategories; cat++ {
		hostSize, deviceSize := m.HostSize(cat), m.Size(cat)
		hostTotal += hostSize
		deviceTotal += deviceSize
		table.Append([]string{cat.String(), fmtSize(hostSize), fmtSize(deviceSize)})
	}
	table.SetFooter([]string{"Total", strings.TrimLeft(fmtSize(hostTotal), " "), strings.TrimLeft(fmtSize(deviceTotal), " ")})

	table.Render()
	return buf.String()
}

// Format a byte count with the appropriate byte/kb/mb unit.
func fmtSize(totalBytes int) string {
	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", totalBytes)
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", float32(totalBytes)/1e3)
	}
	return fmt.Sprintf("%5.1f mb", float32(totalBytes)/1e6)
}

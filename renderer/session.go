package renderer

import (
	"sync"

	"github.com/achilleasa/gpurt/log"
	"github.com/achilleasa/gpurt/tracer"
	"github.com/achilleasa/gpurt/tracer/device"
	"github.com/achilleasa/gpurt/tracer/pack"
	"github.com/google/uuid"
)

// Session holds the state carried across render calls: the device buffers,
// the frame counter and the accumulated samples. A Session must only be
// used with a single Renderer.
type Session struct {
	mutex  sync.Mutex
	id     string
	logger log.Logger

	manager *device.Manager
	counts  map[device.Category]int

	// False until a render call succeeds and after any failed call.
	prepared bool
	closed   bool

	layout    pack.RayLayout
	hasLayout bool

	frames int
	accum  []float64
	output []tracer.Pixel

	stats FrameStats
}

var geometryCategories = []device.Category{
	device.Faces,
	device.Vertices,
	device.Objects,
	device.GeometryAttributes,
	device.LightAttributes,
	device.BVHTable,
	device.BVHNodes,
	device.LightIndices,
}

// Create a session whose buffers live on dev.
func NewSession(dev device.Device) *Session {
	id := uuid.NewString()
	s := &Session{
		id:      id,
		logger:  log.New("session " + id[:8]),
		manager: device.NewManager(dev),
		counts:  make(map[device.Category]int),
	}
	s.logger.Infof("created render session on device %q", dev.Name())
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Number of frames accumulated since the last reset.
func (s *Session) Frames() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.frames
}

// Stats for the last successful render call.
func (s *Session) Stats() FrameStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}

// Tabular view of the session buffers.
func (s *Session) BufferStats() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.manager.Stats()
}

// Release all device memory. The session cannot be used afterwards.
func (s *Session) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return
	}
	s.manager.Release()
	s.closed = true
	s.prepared = false
	s.logger.Infof("closed render session")
}

func (s *Session) setHost(cat device.Category, slice interface{}, count int) {
	s.manager.SetHost(cat, slice)
	s.counts[cat] = count
}

func (s *Session) bufferArg(cat device.Category) tracer.BufferArg {
	return tracer.BufferArg{Memory: s.manager.Memory(cat), Count: s.counts[cat]}
}

// Forget everything that depends on device state so the next call rebuilds it.
func (s *Session) invalidate() {
	s.prepared = false
	s.hasLayout = false
}

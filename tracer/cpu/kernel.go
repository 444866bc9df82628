// Package cpu provides a host implementation of the tracer kernel contract.
// It consumes exactly the same packed buffers as a device kernel and is used
// for testing and for rendering on machines without an OpenCL device.
package cpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/achilleasa/gpurt/log"
	"github.com/achilleasa/gpurt/scene"
	"github.com/achilleasa/gpurt/scene/bvh"
	"github.com/achilleasa/gpurt/tracer"
	"github.com/achilleasa/gpurt/tracer/device"
)

const lightKind = int32(scene.LightObject)

type objectRecord = tracer.Object

// A view of the packed scene buffers.
type sceneData struct {
	rays               []tracer.Ray
	faces              []tracer.Face
	vertices           []tracer.Vertex
	objects            []tracer.Object
	geometryAttributes []tracer.GeometryAttribute
	lightAttributes    []tracer.LightAttribute
	bvhTable           []tracer.ThreadedBVH
	bvhNodes           []bvh.ThreadedNode
	lightIndices       []int32
	output             []tracer.Pixel
}

// Kernel traces rays on the host. Memories must come from a
// device.HostDevice.
type Kernel struct {
	logger log.Logger
}

func NewKernel() *Kernel {
	return &Kernel{
		logger: log.New("cpu kernel"),
	}
}

func (k *Kernel) Name() string {
	return "cpu"
}

// Render traces all rays splitting them evenly across Launch.Blocks
// goroutines. The output is deterministic for a given frame index.
func (k *Kernel) Render(args *tracer.KernelArgs) error {
	s, err := mapBuffers(args)
	if err != nil {
		return fmt.Errorf("%w: %w", tracer.ErrKernelFailed, err)
	}
	if len(s.output) < len(s.rays) {
		return fmt.Errorf("%w: output buffer holds %d pixels; need %d", tracer.ErrKernelFailed, len(s.output), len(s.rays))
	}

	blocks := args.Launch.Blocks
	if blocks <= 0 {
		blocks = 1
	}
	blockSize := (len(s.rays) + blocks - 1) / blocks

	start := time.Now()
	var wg sync.WaitGroup
	for first := 0; first < len(s.rays); first += blockSize {
		last := first + blockSize
		if last > len(s.rays) {
			last = len(s.rays)
		}
		wg.Add(1)
		go func(first, last int) {
			defer wg.Done()
			for rayIndex := first; rayIndex < last; rayIndex++ {
				s.output[rayIndex] = s.trace(rayIndex, args.FrameIndex, args.MaxBounce)
			}
		}(first, last)
	}
	wg.Wait()

	k.logger.Debugf("traced %d rays in %d ms using %d blocks", len(s.rays), time.Since(start).Nanoseconds()/1e6, blocks)
	return nil
}

func mapBuffers(args *tracer.KernelArgs) (*sceneData, error) {
	var err error
	s := &sceneData{}
	if s.rays, err = view[tracer.Ray](args.Rays); err != nil {
		return nil, err
	}
	if s.faces, err = view[tracer.Face](args.Faces); err != nil {
		return nil, err
	}
	if s.vertices, err = view[tracer.Vertex](args.Vertices); err != nil {
		return nil, err
	}
	if s.objects, err = view[tracer.Object](args.Objects); err != nil {
		return nil, err
	}
	if s.geometryAttributes, err = view[tracer.GeometryAttribute](args.GeometryAttributes); err != nil {
		return nil, err
	}
	if s.lightAttributes, err = view[tracer.LightAttribute](args.LightAttributes); err != nil {
		return nil, err
	}
	if s.bvhTable, err = view[tracer.ThreadedBVH](args.BVHTable); err != nil {
		return nil, err
	}
	if s.bvhNodes, err = view[bvh.ThreadedNode](args.BVHNodes); err != nil {
		return nil, err
	}
	if s.lightIndices, err = view[int32](args.LightIndices); err != nil {
		return nil, err
	}
	if s.output, err = view[tracer.Pixel](args.Output); err != nil {
		return nil, err
	}
	return s, nil
}

func view[T any](arg tracer.BufferArg) ([]T, error) {
	if arg.Count == 0 {
		return nil, nil
	}
	if arg.Memory == nil {
		return nil, fmt.Errorf("cpu kernel: missing memory for buffer with %d elements", arg.Count)
	}
	mem, ok := arg.Memory.(*device.HostMemory)
	if !ok {
		return nil, fmt.Errorf("cpu kernel: buffer %s is not host memory", arg.Memory.Name())
	}
	out := device.View[T](mem.Bytes())
	if len(out) < arg.Count {
		return nil, fmt.Errorf("cpu kernel: buffer %s holds %d elements; expected %d", mem.Name(), len(out), arg.Count)
	}
	return out[:arg.Count], nil
}

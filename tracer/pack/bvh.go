package pack

import (
	"fmt"
	"runtime"

	"github.com/achilleasa/gpurt/scene"
	"github.com/achilleasa/gpurt/scene/bvh"
)

type buildResult struct {
	index int
	tree  *bvh.Tree
	err   error
}

// Build a BVH for every BVH-enabled object using up to workers goroutines
// (0 selects runtime.NumCPU()). The returned slice is index-aligned with
// objects; objects without a BVH get a nil entry.
func BuildBVHs(objects []*scene.Object, strategy bvh.SplitStrategy, workers int) ([]*bvh.Tree, error) {
	trees := make([]*bvh.Tree, len(objects))

	pending := make([]int, 0, len(objects))
	for index, obj := range objects {
		if obj.BVHEnabled() {
			pending = append(pending, index)
		}
	}
	if len(pending) == 0 {
		return trees, nil
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(pending) {
		workers = len(pending)
	}

	jobChan := make(chan int)
	resultChan := make(chan buildResult)
	for w := 0; w < workers; w++ {
		go func() {
			for index := range jobChan {
				geom := objects[index].Geometry
				tree, err := bvh.Build(geom.Faces(), geom.Vertices(), geom.MaxTrianglesPerLeaf(), strategy)
				resultChan <- buildResult{index: index, tree: tree, err: err}
			}
		}()
	}
	go func() {
		for _, index := range pending {
			jobChan <- index
		}
		close(jobChan)
	}()

	// Trees share no state so the merge only needs to place them
	var firstErr error
	for range pending {
		res := <-resultChan
		if res.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("pack: building BVH for object %d (%s): %w", res.index, objects[res.index].Name, res.err)
			}
			continue
		}
		trees[res.index] = res.tree
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return trees, nil
}

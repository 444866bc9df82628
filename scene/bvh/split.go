package bvh

import (
	"math"
	"sort"

	"github.com/achilleasa/gpurt/types"
)

type Axis uint8

const (
	XAxis Axis = iota
	YAxis
	ZAxis

	// The SAH strategy will not attempt to calculate split candidates
	// if the node bbox along an axis is less than this threshold.
	minSideLength float32 = 1e-3

	// If the split step (calculated as side length / (1024 / (depth+1)))
	// is less than this threshold the SAH strategy will not evaluate
	// split candidates.
	minSplitStep float32 = 1e-5
)

var (
	// Split at the midpoint of the item centroids along the longest axis
	// falling back to a median split. Always splits.
	CentroidMidpoint SplitStrategy = centroidMidpoint{}

	// Split using the surface area heuristic (SAH). Refuses to split when
	// no candidate scores better than the unsplit node.
	SurfaceAreaHeuristic SplitStrategy = surfaceAreaHeuristic{}
)

// A SplitStrategy partitions items in place so that items[:n] form the left
// child and items[n:] the right child, and returns n. Returning 0 or
// len(items) turns the node into a leaf.
type SplitStrategy interface {
	Split(items []Item, bbox [2]types.Vec3, depth int) int
}

// Reorder items so that those with center[axis] < splitPoint come first.
// Returns the number of items on the left side.
func partitionItems(items []Item, axis Axis, splitPoint float32) int {
	left := 0
	for i := range items {
		if items[i].Center[axis] < splitPoint {
			items[left], items[i] = items[i], items[left]
			left++
		}
	}
	return left
}

type centroidMidpoint struct{}

func (s centroidMidpoint) Split(items []Item, bbox [2]types.Vec3, depth int) int {
	if len(items) < 2 {
		return 0
	}

	axis := Axis(bbox[1].Sub(bbox[0]).MaxComponent())

	var minCenter float32 = math.MaxFloat32
	var maxCenter float32 = -math.MaxFloat32
	for _, item := range items {
		c := item.Center[axis]
		if c < minCenter {
			minCenter = c
		}
		if c > maxCenter {
			maxCenter = c
		}
	}

	left := partitionItems(items, axis, 0.5*(minCenter+maxCenter))
	if left > 0 && left < len(items) {
		return left
	}

	// All centroids landed on one side; split the sorted list in half
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Center[axis] < items[j].Center[axis]
	})
	return len(items) / 2
}

type splitScore struct {
	axis       Axis
	splitPoint float32

	leftCount, rightCount int
	score                 float32
}

type surfaceAreaHeuristic struct{}

func (h surfaceAreaHeuristic) Split(items []Item, bbox [2]types.Vec3, depth int) int {
	var bestScore float32 = h.scorePartition(items)
	var bestSplit *splitScore

	scoreChan := make(chan splitScore)
	pendingScores := 0

	// Run axis split tests in parallel
	side := bbox[1].Sub(bbox[0])
	for axis := XAxis; axis <= ZAxis; axis++ {
		if side[axis] < minSideLength {
			continue
		}

		// We want the split steps to become more granular the deeper we go
		splitStep := side[axis] / (1024.0 / float32(depth+1))
		if splitStep < minSplitStep {
			continue
		}

		// Candidates are indexed so that steps below the float32 resolution of
		// the bbox origin cannot stall the loop.
		numCandidates := int(side[axis] / splitStep)
		for candidate := 0; candidate < numCandidates; candidate++ {
			splitPoint := bbox[0][axis] + float32(candidate)*splitStep
			pendingScores++
			go func(axis Axis, splitPoint float32) {
				lCount, rCount, score := h.scoreSplit(items, axis, splitPoint)
				scoreChan <- splitScore{
					axis:       axis,
					splitPoint: splitPoint,
					leftCount:  lCount,
					rightCount: rCount,
					score:      score,
				}
			}(axis, splitPoint)
		}
	}

	// Process all scores and pick the best split
	for ; pendingScores > 0; pendingScores-- {
		candidate := <-scoreChan
		if candidate.score < bestScore {
			bestScore = candidate.score
			bestSplit = &candidate
		}
	}

	if bestSplit == nil {
		return 0
	}
	return partitionItems(items, bestSplit.axis, bestSplit.splitPoint)
}

// Score a split using: left count * left BBOX area + right count * right BBOX area.
// Splits that generate empty partitions get the worst possible score.
func (h surfaceAreaHeuristic) scoreSplit(items []Item, axis Axis, splitPoint float32) (leftCount, rightCount int, score float32) {
	lbox := types.EmptyBBox()
	rbox := types.EmptyBBox()

	for _, item := range items {
		if item.Center[axis] < splitPoint {
			leftCount++
			lbox[0] = types.MinVec3(lbox[0], item.BBox[0])
			lbox[1] = types.MaxVec3(lbox[1], item.BBox[1])
		} else {
			rightCount++
			rbox[0] = types.MinVec3(rbox[0], item.BBox[0])
			rbox[1] = types.MaxVec3(rbox[1], item.BBox[1])
		}
	}

	if leftCount == 0 || rightCount == 0 {
		return leftCount, rightCount, math.MaxFloat32
	}

	return leftCount, rightCount, float32(leftCount)*halfArea(lbox) + float32(rightCount)*halfArea(rbox)
}

// Score an unsplit node as count * BBOX area.
func (h surfaceAreaHeuristic) scorePartition(items []Item) float32 {
	if len(items) == 0 {
		return math.MaxFloat32
	}
	return float32(len(items)) * halfArea(itemBounds(items))
}

func halfArea(bbox [2]types.Vec3) float32 {
	side := bbox[1].Sub(bbox[0])
	return side[0]*side[1] + side[1]*side[2] + side[0]*side[2]
}

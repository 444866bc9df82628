package bvh

import (
	"errors"
	"fmt"
	"time"

	"github.com/achilleasa/gpurt/log"
	"github.com/achilleasa/gpurt/types"
)

var ErrEmptyInput = errors.New("bvh: no faces to partition")

// An Item is a single triangle as seen by the split strategies.
type Item struct {
	// Index of the face in the geometry face list.
	Index int32

	Center types.Vec3
	BBox   [2]types.Vec3
}

// A tree node stored in the Tree arena. Internal nodes reference their
// children by index; leaves own a contiguous range of the reordered face
// list.
type Node struct {
	Min types.Vec3
	Max types.Vec3

	// Child indices; -1 for leaves.
	Left  int32
	Right int32

	// Leaf face range into Tree.Order().
	FaceStart int32
	FaceCount int32
}

func (n *Node) IsLeaf() bool {
	return n.Left < 0
}

type Stats struct {
	Faces     int
	Nodes     int
	Leaves    int
	MaxDepth  int
	BuildTime time.Duration
}

// A BVH over the faces of a single geometry. Nodes are stored in preorder.
type Tree struct {
	nodes  []Node
	order  []int32
	leaves []int32
	stats  Stats
}

type builder struct {
	logger log.Logger

	nodes  []Node
	order  []int32
	leaves []int32

	// Nodes with this many items or less become leaves.
	maxLeafItems int

	strategy SplitStrategy

	stats Stats
}

// Build a BVH over faces. A nil strategy selects CentroidMidpoint.
func Build(faces []types.Vec3i, vertices []types.Vec4, maxLeafItems int, strategy SplitStrategy) (*Tree, error) {
	if len(faces) == 0 {
		return nil, ErrEmptyInput
	}
	if maxLeafItems <= 0 {
		return nil, fmt.Errorf("bvh: max triangles per leaf must be positive; got %d", maxLeafItems)
	}
	if strategy == nil {
		strategy = CentroidMidpoint
	}

	items := make([]Item, len(faces))
	numVertices := int32(len(vertices))
	for faceIndex, face := range faces {
		bbox := types.EmptyBBox()
		var center types.Vec3
		for _, vertexIndex := range face {
			if vertexIndex < 0 || vertexIndex >= numVertices {
				return nil, fmt.Errorf("bvh: face %d references vertex %d; geometry has %d vertices", faceIndex, vertexIndex, numVertices)
			}
			v := vertices[vertexIndex].Vec3()
			bbox[0] = types.MinVec3(bbox[0], v)
			bbox[1] = types.MaxVec3(bbox[1], v)
			center = center.Add(v)
		}
		items[faceIndex] = Item{
			Index:  int32(faceIndex),
			Center: center.Mul(1.0 / 3.0),
			BBox:   bbox,
		}
	}

	b := &builder{
		logger:       log.New("bvh builder"),
		nodes:        make([]Node, 0, 2*len(items)/maxLeafItems+1),
		order:        make([]int32, 0, len(items)),
		leaves:       make([]int32, 0),
		maxLeafItems: maxLeafItems,
		strategy:     strategy,
		stats: Stats{
			Faces: len(items),
		},
	}

	start := time.Now()
	b.partition(items, 0)
	b.stats.BuildTime = time.Since(start)
	b.logger.Debugf(
		"BVH tree build time: %d ms, faces: %d, maxDepth: %d, nodes: %d, leafs: %d",
		b.stats.BuildTime.Nanoseconds()/1e6,
		b.stats.Faces, b.stats.MaxDepth, b.stats.Nodes, b.stats.Leaves,
	)

	return &Tree{
		nodes:  b.nodes,
		order:  b.order,
		leaves: b.leaves,
		stats:  b.stats,
	}, nil
}

// Partition items and return the node index. The node is appended before
// its children so the arena ends up in preorder.
func (b *builder) partition(items []Item, depth int) int32 {
	if depth > b.stats.MaxDepth {
		b.stats.MaxDepth = depth
	}

	bbox := itemBounds(items)
	nodeIndex := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{
		Min:       bbox[0],
		Max:       bbox[1],
		Left:      -1,
		Right:     -1,
		FaceStart: -1,
	})
	b.stats.Nodes++

	// Do we have few enough items to create a leaf?
	if len(items) <= b.maxLeafItems {
		b.createLeaf(nodeIndex, items)
		return nodeIndex
	}

	split := b.strategy.Split(items, bbox, depth)
	if split <= 0 || split >= len(items) {
		// Splitting does not reduce the item count any further
		b.createLeaf(nodeIndex, items)
		return nodeIndex
	}

	left := b.partition(items[:split], depth+1)
	right := b.partition(items[split:], depth+1)
	b.nodes[nodeIndex].Left = left
	b.nodes[nodeIndex].Right = right

	return nodeIndex
}

func (b *builder) createLeaf(nodeIndex int32, items []Item) {
	node := &b.nodes[nodeIndex]
	node.FaceStart = int32(len(b.order))
	node.FaceCount = int32(len(items))
	for _, item := range items {
		b.order = append(b.order, item.Index)
	}

	b.leaves = append(b.leaves, nodeIndex)
	b.stats.Leaves++
}

func itemBounds(items []Item) [2]types.Vec3 {
	bbox := types.EmptyBBox()
	for _, item := range items {
		bbox[0] = types.MinVec3(bbox[0], item.BBox[0])
		bbox[1] = types.MaxVec3(bbox[1], item.BBox[1])
	}
	return bbox
}

// Nodes returns the node arena in preorder. Index 0 is the root.
func (t *Tree) Nodes() []Node {
	return t.nodes
}

func (t *Tree) NumNodes() int {
	return len(t.nodes)
}

// Order lists face indices in leaf order. Leaf face ranges index into it.
func (t *Tree) Order() []int32 {
	return t.order
}

// Leaves lists leaf node indices in leaf (left to right) order.
func (t *Tree) Leaves() []int32 {
	return t.leaves
}

func (t *Tree) Stats() Stats {
	return t.stats
}

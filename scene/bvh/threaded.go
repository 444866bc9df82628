package bvh

import "github.com/achilleasa/gpurt/types"

// End of traversal marker for hit/miss links.
const Terminal int32 = -1

// The device representation of a BVH node. Child ownership is replaced by
// hit and miss successor links so that traversal needs no stack.
//
// Hit and Miss are indices into the node list of the same tree. Leaves
// reference the global face range [FaceStart, FaceEnd); internal nodes set
// both to -1.
type ThreadedNode struct {
	Hit       int32
	Miss      int32
	FaceStart int32
	FaceEnd   int32
	AABBMax   types.Vec4
	AABBMin   types.Vec4
}

func (n *ThreadedNode) IsLeaf() bool {
	return n.FaceStart >= 0
}

// Thread linearizes the tree in preorder. Leaf face ranges are offset by
// faceOffset, the position of the geometry's first face in the global face
// array.
func (t *Tree) Thread(faceOffset int32) []ThreadedNode {
	out := make([]ThreadedNode, len(t.nodes))
	if len(t.nodes) != 0 {
		t.thread(out, 0, Terminal, faceOffset)
	}
	return out
}

// The miss link of a left child is its right sibling; a right child
// inherits the miss link of its parent which is the same as walking up
// until a node with an unvisited sibling is found.
func (t *Tree) thread(out []ThreadedNode, index, miss, faceOffset int32) {
	node := &t.nodes[index]
	tn := &out[index]
	tn.Miss = miss
	tn.AABBMin = node.Min.Vec4(1)
	tn.AABBMax = node.Max.Vec4(1)

	if node.IsLeaf() {
		tn.Hit = miss
		tn.FaceStart = faceOffset + node.FaceStart
		tn.FaceEnd = faceOffset + node.FaceStart + node.FaceCount
		return
	}

	if node.Left != index+1 {
		panic("bvh: node arena is not in preorder")
	}
	tn.Hit = node.Left
	tn.FaceStart = -1
	tn.FaceEnd = -1
	t.thread(out, node.Left, node.Right, faceOffset)
	t.thread(out, node.Right, miss, faceOffset)
}

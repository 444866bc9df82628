package pack

import (
	"fmt"

	"github.com/achilleasa/gpurt/scene"
	"github.com/achilleasa/gpurt/scene/bvh"
	"github.com/achilleasa/gpurt/tracer"
	"github.com/achilleasa/gpurt/types"
)

// Flattened scene data ready for upload to a compute device.
type Geometry struct {
	Vertices           []tracer.Vertex
	Faces              []tracer.Face
	Objects            []tracer.Object
	GeometryAttributes []tracer.GeometryAttribute
	LightAttributes    []tracer.LightAttribute
	LightIndices       []int32
	BVHTable           []tracer.ThreadedBVH
	BVHNodes           []bvh.ThreadedNode
}

// Return camera-space copies of objects. Each copy has view * model applied
// to its vertices.
func Transform(objects []*scene.Object, view types.Mat4) []*scene.Object {
	out := make([]*scene.Object, len(objects))
	for index, obj := range objects {
		out[index] = obj.Transform(view)
	}
	return out
}

// Pack objects and their BVHs into flat arrays. trees must be index-aligned
// with objects as returned by BuildBVHs.
//
// The BVH table holds one entry per object so an object's BVH index equals
// its object index; objects without a BVH get an entry with NumNodes = 0.
func Pack(objects []*scene.Object, trees []*bvh.Tree) (*Geometry, error) {
	if len(objects) == 0 {
		return nil, fmt.Errorf("pack: no objects to serialize")
	}
	if len(trees) != len(objects) {
		return nil, fmt.Errorf("pack: got %d BVH trees for %d objects", len(trees), len(objects))
	}

	var totalFaces, totalVertices, totalNodes, numLights int
	for index, obj := range objects {
		totalFaces += obj.Geometry.FaceCount()
		totalVertices += obj.Geometry.VertexCount()
		if obj.IsLight() {
			numLights++
		}
		if obj.BVHEnabled() {
			if trees[index] == nil {
				return nil, fmt.Errorf("pack: object %d (%s) has BVH enabled but no tree was built", index, obj.Name)
			}
			totalNodes += trees[index].NumNodes()
		}
	}

	g := &Geometry{
		Vertices:           make([]tracer.Vertex, totalVertices),
		Faces:              make([]tracer.Face, totalFaces),
		Objects:            make([]tracer.Object, len(objects)),
		GeometryAttributes: make([]tracer.GeometryAttribute, 0, len(objects)-numLights),
		LightAttributes:    make([]tracer.LightAttribute, 0, numLights),
		LightIndices:       make([]int32, 0, numLights),
		BVHTable:           make([]tracer.ThreadedBVH, len(objects)),
		BVHNodes:           make([]bvh.ThreadedNode, 0, totalNodes),
	}

	var vertexOffset, faceOffset int32
	for index, obj := range objects {
		geom := obj.Geometry
		numFaces := int32(geom.FaceCount())
		numVertices := int32(geom.VertexCount())

		geom.SerializeVertices(g.Vertices, int(vertexOffset))

		var order []int32
		if obj.BVHEnabled() {
			tree := trees[index]
			order = tree.Order()
			g.BVHTable[index] = tracer.ThreadedBVH{
				NodeIndexOffset: int32(len(g.BVHNodes)),
				NumNodes:        int32(tree.NumNodes()),
			}
			g.BVHNodes = append(g.BVHNodes, tree.Thread(faceOffset)...)
		} else {
			g.BVHTable[index] = tracer.ThreadedBVH{NodeIndexOffset: int32(len(g.BVHNodes))}
		}
		geom.SerializeFaces(g.Faces, int(faceOffset), vertexOffset, order)
		checkFaceRange(g.Faces[faceOffset:faceOffset+numFaces], vertexOffset, numVertices, obj)

		packed := tracer.Object{
			NumFaces:          numFaces,
			FaceIndexOffset:   faceOffset,
			NumVertices:       numVertices,
			VertexIndexOffset: vertexOffset,
			Kind:              int32(obj.Kind),
		}

		if obj.IsLight() {
			g.LightIndices = append(g.LightIndices, int32(index))
			packed.AttributeIndex = int32(len(g.LightAttributes))
			packed.Color = obj.Color.Vec4(1)
			g.LightAttributes = append(g.LightAttributes, tracer.LightAttribute{
				Brightness: obj.Brightness,
				Color:      obj.Color.Vec4(1),
			})
		} else {
			attr := tracer.GeometryAttribute{BVHIndex: -1}
			if obj.BVHEnabled() {
				attr.BVHEnabled = 1
				attr.BVHIndex = int32(index)
			}
			packed.AttributeIndex = int32(len(g.GeometryAttributes))
			packed.MaterialType = int32(obj.Material.Type)
			packed.Color = obj.Material.Color.Vec4(obj.Material.Roughness)
			g.GeometryAttributes = append(g.GeometryAttributes, attr)
		}
		g.Objects[index] = packed

		vertexOffset += numVertices
		faceOffset += numFaces
	}

	return g, nil
}

// Every shifted vertex index must stay within the object's own vertex range.
func checkFaceRange(faces []tracer.Face, vertexOffset, numVertices int32, obj *scene.Object) {
	for faceIndex, face := range faces {
		for _, vi := range face[:3] {
			if vi < vertexOffset || vi >= vertexOffset+numVertices {
				panic(fmt.Sprintf("pack: face %d of %s references vertex %d outside [%d, %d)", faceIndex, obj, vi, vertexOffset, vertexOffset+numVertices))
			}
		}
	}
}

// Total number of faces, vertices and lights.
func (g *Geometry) Counts() (faces, vertices, lights int) {
	return len(g.Faces), len(g.Vertices), len(g.LightIndices)
}

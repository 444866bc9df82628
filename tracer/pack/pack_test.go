package pack

import (
	"testing"

	"github.com/achilleasa/gpurt/scene"
	"github.com/achilleasa/gpurt/scene/bvh"
	"github.com/achilleasa/gpurt/tracer"
	"github.com/achilleasa/gpurt/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testObjects(t *testing.T) []*scene.Object {
	plane, err := scene.NewPlane(2, 2)
	require.NoError(t, err)

	box, err := scene.NewBox(1, 1, 1)
	require.NoError(t, err)
	box.SetPosition(types.Vec3{0, 0, -4})
	require.NoError(t, box.SetBVH(true, 2))

	sphere, err := scene.NewSphere(1, 6, 8)
	require.NoError(t, err)
	sphere.SetPosition(types.Vec3{2, 0, -5})
	require.NoError(t, sphere.SetBVH(true, 3))

	light, err := scene.NewPlane(1, 1)
	require.NoError(t, err)
	light.SetPosition(types.Vec3{0, 3, -4})

	return []*scene.Object{
		scene.NewMesh("floor", plane, scene.NewLambert(types.Vec3{0.8, 0.8, 0.8})),
		scene.NewMesh("box", box, scene.NewMetal(types.Vec3{0.9, 0.5, 0.1}, 0.2)),
		scene.NewLight("light", light, types.Vec3{1, 1, 0.9}, 4),
		scene.NewMesh("sphere", sphere, scene.NewLambert(types.Vec3{0.1, 0.2, 0.9})),
	}
}

func packTestObjects(t *testing.T) ([]*scene.Object, *Geometry) {
	objects := Transform(testObjects(t), types.Ident4())
	trees, err := BuildBVHs(objects, nil, 2)
	require.NoError(t, err)

	g, err := Pack(objects, trees)
	require.NoError(t, err)
	return objects, g
}

func TestBuildBVHsIsIndexAligned(t *testing.T) {
	objects := Transform(testObjects(t), types.Ident4())
	trees, err := BuildBVHs(objects, bvh.SurfaceAreaHeuristic, 0)
	require.NoError(t, err)
	require.Len(t, trees, len(objects))

	assert.Nil(t, trees[0])
	assert.NotNil(t, trees[1])
	assert.Nil(t, trees[2])
	assert.NotNil(t, trees[3])
	assert.Len(t, trees[1].Order(), objects[1].Geometry.FaceCount())
}

func TestPackOffsetsAndAttributes(t *testing.T) {
	objects, g := packTestObjects(t)

	var expFaceOffset, expVertexOffset int32
	for index, obj := range g.Objects {
		assert.Equal(t, expFaceOffset, obj.FaceIndexOffset, "object %d face offset", index)
		assert.Equal(t, expVertexOffset, obj.VertexIndexOffset, "object %d vertex offset", index)
		assert.Equal(t, int32(objects[index].Geometry.FaceCount()), obj.NumFaces)
		assert.Equal(t, int32(objects[index].Geometry.VertexCount()), obj.NumVertices)
		expFaceOffset += obj.NumFaces
		expVertexOffset += obj.NumVertices
	}
	assert.Len(t, g.Faces, int(expFaceOffset))
	assert.Len(t, g.Vertices, int(expVertexOffset))

	// One light record and three geometry records
	require.Equal(t, []int32{2}, g.LightIndices)
	require.Len(t, g.LightAttributes, 1)
	assert.Equal(t, float32(4), g.LightAttributes[0].Brightness)
	assert.Equal(t, int32(0), g.Objects[2].AttributeIndex)
	assert.Equal(t, types.Vec4{1, 1, 0.9, 1}, g.Objects[2].Color)

	require.Len(t, g.GeometryAttributes, 3)
	assert.Equal(t, tracer.GeometryAttribute{BVHEnabled: 0, BVHIndex: -1}, g.GeometryAttributes[g.Objects[0].AttributeIndex])
	assert.Equal(t, tracer.GeometryAttribute{BVHEnabled: 1, BVHIndex: 1}, g.GeometryAttributes[g.Objects[1].AttributeIndex])
	assert.Equal(t, tracer.GeometryAttribute{BVHEnabled: 1, BVHIndex: 3}, g.GeometryAttributes[g.Objects[3].AttributeIndex])
	assert.Equal(t, int32(scene.MetalMaterial), g.Objects[1].MaterialType)
	assert.Equal(t, float32(0.2), g.Objects[1].Color[3])

	// BVH table has one entry per object
	require.Len(t, g.BVHTable, len(objects))
	assert.Equal(t, int32(0), g.BVHTable[0].NumNodes)
	assert.Equal(t, int32(0), g.BVHTable[2].NumNodes)
	assert.Equal(t, g.BVHTable[1].NumNodes, g.BVHTable[3].NodeIndexOffset)
	assert.Len(t, g.BVHNodes, int(g.BVHTable[1].NumNodes+g.BVHTable[3].NumNodes))
}

func TestPackLeafRangesStayInsideObject(t *testing.T) {
	objects, g := packTestObjects(t)

	for _, objIndex := range []int{1, 3} {
		obj := g.Objects[objIndex]
		entry := g.BVHTable[objIndex]
		nodes := g.BVHNodes[entry.NodeIndexOffset : entry.NodeIndexOffset+entry.NumNodes]

		covered := 0
		for _, node := range nodes {
			if !node.IsLeaf() {
				continue
			}
			require.GreaterOrEqual(t, node.FaceStart, obj.FaceIndexOffset)
			require.LessOrEqual(t, node.FaceEnd, obj.FaceIndexOffset+obj.NumFaces)

			for fi := node.FaceStart; fi < node.FaceEnd; fi++ {
				covered++
				for _, vi := range g.Faces[fi][:3] {
					require.GreaterOrEqual(t, vi, obj.VertexIndexOffset)
					require.Less(t, vi, obj.VertexIndexOffset+obj.NumVertices)

					// Leaf vertices must lie inside the leaf bbox
					v := g.Vertices[vi]
					for axis := 0; axis < 3; axis++ {
						require.GreaterOrEqual(t, v[axis], node.AABBMin[axis])
						require.LessOrEqual(t, v[axis], node.AABBMax[axis])
					}
				}
			}
		}
		assert.Equal(t, int(obj.NumFaces), covered, "leaves of %s must cover every face", objects[objIndex].Name)
	}
}

func TestPackFacesFollowLeafOrder(t *testing.T) {
	objects := Transform(testObjects(t), types.Ident4())
	trees, err := BuildBVHs(objects, nil, 1)
	require.NoError(t, err)
	g, err := Pack(objects, trees)
	require.NoError(t, err)

	box := objects[1].Geometry
	packed := g.Objects[1]
	for i, faceIndex := range trees[1].Order() {
		src := box.Faces()[faceIndex]
		dst := g.Faces[packed.FaceIndexOffset+int32(i)]
		for k := 0; k < 3; k++ {
			assert.Equal(t, src[k]+packed.VertexIndexOffset, dst[k])
		}
	}

	// Objects without a BVH keep declaration order
	floor := objects[0].Geometry
	for i, src := range floor.Faces() {
		assert.Equal(t, types.Vec4i{src[0], src[1], src[2], 0}, g.Faces[i])
	}
}

func TestPackRejectsMissingTrees(t *testing.T) {
	objects := Transform(testObjects(t), types.Ident4())
	_, err := Pack(objects, make([]*bvh.Tree, len(objects)))
	assert.Error(t, err)

	_, err = Pack(objects, nil)
	assert.Error(t, err)

	_, err = Pack(nil, nil)
	assert.Error(t, err)
}

func TestTransformUsesViewAndModel(t *testing.T) {
	objects := testObjects(t)
	view := types.Translate3D(types.Vec3{0, 0, -1})
	out := Transform(objects, view)

	require.Len(t, out, len(objects))
	// box is centered at z=-4 in world space and z=-5 after the view translation
	bbox := out[1].Geometry.BBox()
	assert.InDelta(t, -5, 0.5*(bbox[0][2]+bbox[1][2]), 1e-5)
	assert.Equal(t, objects[1].Name, out[1].Name)
}

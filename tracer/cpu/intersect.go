package cpu

import (
	"math"

	"github.com/achilleasa/gpurt/scene/bvh"
	"github.com/achilleasa/gpurt/types"
)

const (
	// Barycentric tolerance so rays through a shared edge hit at least one
	// of the adjacent triangles.
	baryEpsilon float32 = 1e-6
	detEpsilon  float32 = 1e-9

	// Minimum hit distance; suppresses self intersections.
	tMinEpsilon float32 = 1e-4
)

type surfaceHit struct {
	t      float32
	object int32
	face   int32
}

type ray struct {
	origin types.Vec3
	dir    types.Vec3
	invDir types.Vec3
}

func newRay(origin, dir types.Vec3) ray {
	return ray{
		origin: origin,
		dir:    dir,
		invDir: types.Vec3{1 / dir[0], 1 / dir[1], 1 / dir[2]},
	}
}

// Möller-Trumbore ray/triangle test. Returns the hit distance or false.
func intersectTriangle(r *ray, v0, v1, v2 types.Vec3) (float32, bool) {
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	p := r.dir.Cross(e2)
	det := e1.Dot(p)
	if det > -detEpsilon && det < detEpsilon {
		return 0, false
	}
	invDet := 1 / det

	s := r.origin.Sub(v0)
	u := s.Dot(p) * invDet
	if u < -baryEpsilon || u > 1+baryEpsilon {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.dir.Dot(q) * invDet
	if v < -baryEpsilon || u+v > 1+baryEpsilon {
		return 0, false
	}
	return e2.Dot(q) * invDet, true
}

// Slab test against a node bbox limited to [0, tMax].
func intersectAABB(r *ray, min, max types.Vec4, tMax float32) bool {
	var tNear float32 = 0
	tFar := tMax
	for axis := 0; axis < 3; axis++ {
		t1 := (min[axis] - r.origin[axis]) * r.invDir[axis]
		t2 := (max[axis] - r.origin[axis]) * r.invDir[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		// NaN comparisons are false so degenerate slabs do not cull
		if t1 > tNear {
			tNear = t1
		}
		if t2 < tFar {
			tFar = t2
		}
		if tNear > tFar {
			return false
		}
	}
	return true
}

// Find the closest surface along r closer than tMax.
func (s *sceneData) intersect(r *ray, tMax float32) (surfaceHit, bool) {
	closest := surfaceHit{t: tMax, object: -1, face: -1}
	for objIndex := range s.objects {
		obj := &s.objects[objIndex]
		if s.useBVH(obj) {
			s.intersectBVH(r, int32(objIndex), &closest)
			continue
		}
		s.intersectFaces(r, int32(objIndex), obj.FaceIndexOffset, obj.FaceIndexOffset+obj.NumFaces, &closest)
	}
	return closest, closest.object >= 0
}

// Report whether anything blocks r before dist.
func (s *sceneData) occluded(r *ray, dist float32) bool {
	_, found := s.intersect(r, dist*(1-1e-3))
	return found
}

func (s *sceneData) useBVH(obj *objectRecord) bool {
	if obj.Kind != lightKind {
		attr := s.geometryAttributes[obj.AttributeIndex]
		return attr.BVHEnabled != 0 && attr.BVHIndex >= 0 && s.bvhTable[attr.BVHIndex].NumNodes > 0
	}
	return false
}

// Stackless walk over the threaded nodes of a single object.
func (s *sceneData) intersectBVH(r *ray, objIndex int32, closest *surfaceHit) {
	attr := s.geometryAttributes[s.objects[objIndex].AttributeIndex]
	entry := s.bvhTable[attr.BVHIndex]
	nodes := s.bvhNodes[entry.NodeIndexOffset : entry.NodeIndexOffset+entry.NumNodes]

	for index := int32(0); index != bvh.Terminal; {
		node := &nodes[index]
		if !intersectAABB(r, node.AABBMin, node.AABBMax, closest.t) {
			index = node.Miss
			continue
		}
		if node.IsLeaf() {
			s.intersectFaces(r, objIndex, node.FaceStart, node.FaceEnd, closest)
		}
		index = node.Hit
	}
}

func (s *sceneData) intersectFaces(r *ray, objIndex, start, end int32, closest *surfaceHit) {
	for faceIndex := start; faceIndex < end; faceIndex++ {
		face := s.faces[faceIndex]
		t, ok := intersectTriangle(r,
			s.vertices[face[0]].Vec3(),
			s.vertices[face[1]].Vec3(),
			s.vertices[face[2]].Vec3(),
		)
		if ok && t > tMinEpsilon && t < closest.t {
			closest.t = t
			closest.object = objIndex
			closest.face = faceIndex
		}
	}
}

// Geometric normal of a face and its area.
func (s *sceneData) faceNormal(faceIndex int32) (types.Vec3, float32) {
	face := s.faces[faceIndex]
	v0 := s.vertices[face[0]].Vec3()
	n := s.vertices[face[1]].Vec3().Sub(v0).Cross(s.vertices[face[2]].Vec3().Sub(v0))
	l := n.Len()
	if l == 0 || math.IsNaN(float64(l)) {
		return types.Vec3{}, 0
	}
	return n.Mul(1 / l), 0.5 * l
}

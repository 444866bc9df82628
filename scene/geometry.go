package scene

import (
	"errors"
	"fmt"

	"github.com/achilleasa/gpurt/types"
)

// Returned for geometry input that cannot be serialized.
var ErrInvalidGeometry = errors.New("scene: invalid geometry")

// The default leaf size used when enabling a BVH without an explicit value.
const DefaultMaxTrianglesPerLeaf = 8

type GeometryType uint8

const (
	StandardGeometry GeometryType = iota
	PlaneGeometry
	BoxGeometry
	SphereGeometry
)

func (t GeometryType) String() string {
	switch t {
	case StandardGeometry:
		return "standard"
	case PlaneGeometry:
		return "plane"
	case BoxGeometry:
		return "box"
	case SphereGeometry:
		return "sphere"
	}
	return fmt.Sprintf("GeometryType(%d)", uint8(t))
}

// Geometry is a triangle mesh tagged with the shape it was generated from.
// Every variant exposes the same capability set so the serializer never
// needs to inspect the tag.
type Geometry struct {
	kind GeometryType

	vertices []types.Vec4
	faces    []types.Vec3i

	position types.Vec3
	rotation types.Vec3
	scale    types.Vec3

	bvhEnabled          bool
	maxTrianglesPerLeaf int
}

// Create a standard geometry from triangle index triples and vertex positions.
func NewStandardGeometry(faces []types.Vec3i, vertices []types.Vec3) (*Geometry, error) {
	verts := make([]types.Vec4, len(vertices))
	for i, v := range vertices {
		verts[i] = v.Vec4(1)
	}
	return newGeometry(StandardGeometry, faces, verts)
}

// Create a standard geometry from flat row-major arrays. The face array must
// have shape (N, 3) and the vertex array shape (M, 4).
func NewStandardGeometryFromArrays(faces []int32, faceShape []int, vertices []float32, vertexShape []int) (*Geometry, error) {
	if len(faceShape) != 2 {
		return nil, fmt.Errorf("%w: face array rank %d != 2", ErrInvalidGeometry, len(faceShape))
	}
	if len(vertexShape) != 2 {
		return nil, fmt.Errorf("%w: vertex array rank %d != 2", ErrInvalidGeometry, len(vertexShape))
	}
	if faceShape[1] != 3 {
		return nil, fmt.Errorf("%w: face channel count %d != 3", ErrInvalidGeometry, faceShape[1])
	}
	if vertexShape[1] != 4 {
		return nil, fmt.Errorf("%w: vertex channel count %d != 4", ErrInvalidGeometry, vertexShape[1])
	}
	if faceShape[0]*3 != len(faces) || vertexShape[0]*4 != len(vertices) {
		return nil, fmt.Errorf("%w: array length does not match shape", ErrInvalidGeometry)
	}

	faceList := make([]types.Vec3i, faceShape[0])
	for i := range faceList {
		faceList[i] = types.Vec3i{faces[i*3], faces[i*3+1], faces[i*3+2]}
	}
	vertexList := make([]types.Vec4, vertexShape[0])
	for i := range vertexList {
		vertexList[i] = types.Vec4{vertices[i*4], vertices[i*4+1], vertices[i*4+2], 1}
	}
	return newGeometry(StandardGeometry, faceList, vertexList)
}

func newGeometry(kind GeometryType, faces []types.Vec3i, vertices []types.Vec4) (*Geometry, error) {
	if len(faces) == 0 {
		return nil, fmt.Errorf("%w: no faces", ErrInvalidGeometry)
	}
	numVertices := int32(len(vertices))
	for faceIndex, face := range faces {
		for _, index := range face {
			if index < 0 || index >= numVertices {
				return nil, fmt.Errorf("%w: face %d references vertex %d; geometry has %d vertices", ErrInvalidGeometry, faceIndex, index, numVertices)
			}
		}
	}

	return &Geometry{
		kind:     kind,
		vertices: vertices,
		faces:    faces,
		scale:    types.Vec3{1, 1, 1},
	}, nil
}

func (g *Geometry) Type() GeometryType {
	return g.kind
}

func (g *Geometry) FaceCount() int {
	return len(g.faces)
}

func (g *Geometry) VertexCount() int {
	return len(g.vertices)
}

// Faces returns the face list. Callers must not modify it.
func (g *Geometry) Faces() []types.Vec3i {
	return g.faces
}

// Vertices returns the vertex list. Callers must not modify it.
func (g *Geometry) Vertices() []types.Vec4 {
	return g.vertices
}

// Enable or disable BVH construction for this geometry.
func (g *Geometry) SetBVH(enabled bool, maxTrianglesPerLeaf int) error {
	if enabled && maxTrianglesPerLeaf <= 0 {
		return fmt.Errorf("%w: max triangles per leaf must be positive; got %d", ErrInvalidGeometry, maxTrianglesPerLeaf)
	}
	g.bvhEnabled = enabled
	g.maxTrianglesPerLeaf = maxTrianglesPerLeaf
	return nil
}

func (g *Geometry) BVHEnabled() bool {
	return g.bvhEnabled
}

func (g *Geometry) MaxTrianglesPerLeaf() int {
	return g.maxTrianglesPerLeaf
}

func (g *Geometry) SetPosition(p types.Vec3) {
	g.position = p
}

// Set XYZ euler rotation in radians.
func (g *Geometry) SetRotation(r types.Vec3) {
	g.rotation = r
}

func (g *Geometry) SetScale(s types.Vec3) {
	g.scale = s
}

// Get the model matrix: translate * rotate * scale.
func (g *Geometry) ModelMatrix() types.Mat4 {
	return types.Translate3D(g.position).
		Mul4(types.Rotate3D(g.rotation)).
		Mul4(types.Scale3D(g.scale))
}

// Return a copy of the geometry with m applied to every vertex. The copy
// keeps the tag and BVH settings and has an identity model matrix.
func (g *Geometry) Transform(m types.Mat4) *Geometry {
	out := &Geometry{
		kind:                g.kind,
		vertices:            make([]types.Vec4, len(g.vertices)),
		faces:               g.faces,
		scale:               types.Vec3{1, 1, 1},
		bvhEnabled:          g.bvhEnabled,
		maxTrianglesPerLeaf: g.maxTrianglesPerLeaf,
	}
	for i, v := range g.vertices {
		out.vertices[i] = m.TransformPoint(v.Vec3()).Vec4(1)
	}
	return out
}

// Copy vertices into dst starting at offset. Returns the number of
// vertices written.
func (g *Geometry) SerializeVertices(dst []types.Vec4, offset int) int {
	return copy(dst[offset:offset+len(g.vertices)], g.vertices)
}

// Write faces into dst starting at offset with every vertex index shifted
// by vertexOffset. If order is non-nil faces are emitted in that order,
// otherwise in declaration order. Returns the number of faces written.
func (g *Geometry) SerializeFaces(dst []types.Vec4i, offset int, vertexOffset int32, order []int32) int {
	if order == nil {
		for i, face := range g.faces {
			dst[offset+i] = shiftFace(face, vertexOffset)
		}
		return len(g.faces)
	}

	if len(order) != len(g.faces) {
		panic(fmt.Sprintf("scene: face order has %d entries; geometry has %d faces", len(order), len(g.faces)))
	}
	for i, faceIndex := range order {
		dst[offset+i] = shiftFace(g.faces[faceIndex], vertexOffset)
	}
	return len(order)
}

func shiftFace(face types.Vec3i, vertexOffset int32) types.Vec4i {
	return types.Vec4i{face[0] + vertexOffset, face[1] + vertexOffset, face[2] + vertexOffset, 0}
}

// Get the bounding box of all vertices.
func (g *Geometry) BBox() [2]types.Vec3 {
	bbox := types.EmptyBBox()
	for _, v := range g.vertices {
		bbox[0] = types.MinVec3(bbox[0], v.Vec3())
		bbox[1] = types.MaxVec3(bbox[1], v.Vec3())
	}
	return bbox
}

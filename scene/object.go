package scene

import (
	"fmt"

	"github.com/achilleasa/gpurt/types"
)

type ObjectKind int32

const (
	MeshObject ObjectKind = iota
	LightObject
)

// An Object places a geometry in the scene either as a shaded mesh or as an
// area light.
type Object struct {
	Name     string
	Kind     ObjectKind
	Geometry *Geometry

	// Mesh objects only.
	Material Material

	// Light objects only.
	Color      types.Vec3
	Brightness float32
}

// Create a mesh object.
func NewMesh(name string, geometry *Geometry, material Material) *Object {
	return &Object{
		Name:     name,
		Kind:     MeshObject,
		Geometry: geometry,
		Material: material,
	}
}

// Create an area light. Lights never carry a BVH.
func NewLight(name string, geometry *Geometry, color types.Vec3, brightness float32) *Object {
	return &Object{
		Name:       name,
		Kind:       LightObject,
		Geometry:   geometry,
		Color:      color,
		Brightness: brightness,
	}
}

func (o *Object) IsLight() bool {
	return o.Kind == LightObject
}

func (o *Object) BVHEnabled() bool {
	return o.Kind == MeshObject && o.Geometry.BVHEnabled()
}

// Return a copy of the object whose geometry is transformed by
// m * model matrix.
func (o *Object) Transform(m types.Mat4) *Object {
	out := *o
	out.Geometry = o.Geometry.Transform(m.Mul4(o.Geometry.ModelMatrix()))
	return &out
}

func (o *Object) String() string {
	kind := "mesh"
	if o.IsLight() {
		kind = "light"
	}
	return fmt.Sprintf("%s %q (%s, %d faces, %d vertices)", kind, o.Name, o.Geometry.Type(), o.Geometry.FaceCount(), o.Geometry.VertexCount())
}

package reader

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/achilleasa/gpurt/scene"
	"github.com/achilleasa/gpurt/types"
)

func TestFloat32Parser(t *testing.T) {
	expError := "unsupported syntax for 'v'; expected 1 argument; got 0"
	_, err := parseFloat32([]string{"v"})
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get %s; got %v", expError, err)
	}

	_, err = parseFloat32([]string{"v", "not-a-float"})
	if err == nil {
		t.Fatal("expected to get a parse error")
	}

	v, err := parseFloat32([]string{"v", "3.14"})
	if err != nil {
		t.Fatal(err)
	}
	if v != 3.14 {
		t.Fatalf("expected parsed value to be 3.14; got %f", v)
	}
}

func TestVec3Parser(t *testing.T) {
	expError := "unsupported syntax for 'v'; expected 3 arguments; got 0"
	_, err := parseVec3([]string{"v"})
	if err == nil || err.Error() != expError {
		t.Fatalf("expected to get %s; got %v", expError, err)
	}

	v, err := parseVec3([]string{"v", "3.14", "0", "0.4"})
	if err != nil {
		t.Fatal(err)
	}
	expVal := types.Vec3{3.14, 0, 0.4}
	if !reflect.DeepEqual(v, expVal) {
		t.Fatalf("expected parsed value to be %v; got %v", expVal, v)
	}
}

func TestSelectFaceCoordinate(t *testing.T) {
	expError := "index out of bounds"
	type spec struct {
		in       string
		listLen  int
		out      int
		expError string
	}
	specs := []spec{
		{"2", 1, -1, expError},
		{"-2", 1, -1, expError},
		{"1", 10, 0, ""}, // indices are 1-based
		{"-1", 10, 9, ""},
	}

	for idx, s := range specs {
		v, err := selectFaceCoordIndex(s.in, s.listLen)
		if s.expError != "" && (err == nil || err.Error() != s.expError) {
			t.Fatalf("[spec %d] expected error %s; got %v", idx, s.expError, err)
		} else if v != s.out {
			t.Fatalf("[spec %d] expected index to be %d; got %d", idx, s.out, v)
		}
	}
}

func TestReadMeshesAndCamera(t *testing.T) {
	payload := `
# a quad and a triangle
camera_fov 60
camera_eye 0 0 5
camera_look 0 0 0

o quad
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
f 1/1/1 2/2/2 3/3/3 4/4/4

o tri
v 0 0 1
v 1 0 1
v 0 1 1
f -3 -2 -1
`
	res, err := Read(strings.NewReader(payload), "test.obj", Options{EnableBVH: true, MaxTrianglesPerLeaf: 1})
	if err != nil {
		t.Fatal(err)
	}

	objects := res.Scene.Objects()
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects; got %d", len(objects))
	}

	quad := objects[0]
	if quad.Name != "quad" {
		t.Fatalf("expected first object to be named quad; got %s", quad.Name)
	}
	if got := quad.Geometry.FaceCount(); got != 2 {
		t.Fatalf("expected the quad to be split into 2 triangles; got %d", got)
	}
	if got := quad.Geometry.VertexCount(); got != 4 {
		t.Fatalf("expected quad to have 4 vertices; got %d", got)
	}
	if !quad.BVHEnabled() {
		t.Fatal("expected BVH to be enabled")
	}

	// Negative indices resolve against the vertices seen so far
	tri := objects[1]
	if got := tri.Geometry.Vertices()[0]; got != (types.Vec4{0, 0, 1, 1}) {
		t.Fatalf("expected first triangle vertex to be (0, 0, 1); got %v", got)
	}
	if tri.Material.Color != (types.Vec3{0.7, 0.7, 0.7}) {
		t.Fatalf("expected default material color; got %v", tri.Material.Color)
	}

	if res.Camera == nil {
		t.Fatal("expected a camera to be defined")
	}
	if res.Camera.FieldOfView() != 60 {
		t.Fatalf("expected fov 60; got %f", res.Camera.FieldOfView())
	}
	if res.Camera.Position() != (types.Vec3{0, 0, 5}) {
		t.Fatalf("expected camera eye (0, 0, 5); got %v", res.Camera.Position())
	}
}

func TestReadMaterialLibrary(t *testing.T) {
	dir := t.TempDir()
	mtl := `
newmtl lamp
Ke 4 2 0

newmtl mirror
illum 3
Ks 0.9 0.9 0.9
Pr 0.1

newmtl red
Kd 0.8 0.1 0.1
`
	if err := os.WriteFile(filepath.Join(dir, "scene.mtl"), []byte(mtl), 0o644); err != nil {
		t.Fatal(err)
	}

	obj := `
mtllib scene.mtl
v 0 0 0
v 1 0 0
v 0 1 0
o light
usemtl lamp
f 1 2 3
o metal
usemtl mirror
f 1 2 3
o wall
usemtl red
f 1 2 3
`
	objPath := filepath.Join(dir, "scene.obj")
	if err := os.WriteFile(objPath, []byte(obj), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := ReadFile(objPath, Options{EnableBVH: true, MaxTrianglesPerLeaf: 4})
	if err != nil {
		t.Fatal(err)
	}
	objects := res.Scene.Objects()
	if len(objects) != 3 {
		t.Fatalf("expected 3 objects; got %d", len(objects))
	}

	light := objects[0]
	if !light.IsLight() || light.BVHEnabled() {
		t.Fatalf("expected a light without BVH; got %s", light)
	}
	if light.Brightness != 4 || light.Color != (types.Vec3{1, 0.5, 0}) {
		t.Fatalf("expected brightness 4 and color (1, 0.5, 0); got %f and %v", light.Brightness, light.Color)
	}

	metal := objects[1]
	if metal.Material.Type != scene.MetalMaterial || metal.Material.Roughness != 0.1 {
		t.Fatalf("expected metal material with roughness 0.1; got %+v", metal.Material)
	}

	wall := objects[2]
	if wall.Material.Type != scene.LambertMaterial || wall.Material.Color != (types.Vec3{0.8, 0.1, 0.1}) {
		t.Fatalf("expected red lambert material; got %+v", wall.Material)
	}

	if res.Camera != nil {
		t.Fatal("expected no camera without camera statements")
	}
}

func TestReadErrors(t *testing.T) {
	specs := []struct {
		payload  string
		expError string
	}{
		{"v 0 0 0\nf 1 2 3\n", "index out of bounds"},
		{"v 0 0 0\nv 1 0 0\nf 1 2\n", "expected at least 3 arguments"},
		{"usemtl missing\n", "undefined material with name 'missing'"},
		{"v 0 0\n", "expected 3 arguments"},
		{"# nothing\n", "no faces defined"},
	}

	for specIndex, spec := range specs {
		_, err := Read(strings.NewReader(spec.payload), "bad.obj", Options{})
		if err == nil || !strings.Contains(err.Error(), spec.expError) {
			t.Errorf("[spec %d] expected error containing %q; got %v", specIndex, spec.expError, err)
			continue
		}
		if !errors.Is(err, ErrParse) {
			t.Errorf("[spec %d] expected error to wrap ErrParse", specIndex)
		}
	}
}

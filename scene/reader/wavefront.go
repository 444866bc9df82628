// Package reader loads scenes from wavefront object files.
//
// Besides the usual v, f, o, g, usemtl and mtllib statements the reader
// understands the camera_fov, camera_eye, camera_look and camera_up
// extensions. Materials with a non-zero Ke become lights. A material with
// illum 3 becomes a metal whose roughness is read from Pr.
package reader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/gpurt/log"
	"github.com/achilleasa/gpurt/scene"
	"github.com/achilleasa/gpurt/types"
)

var ErrParse = errors.New("reader: parse error")

type Options struct {
	// Build BVHs for every mesh using the given leaf size. Lights never
	// use a BVH.
	EnableBVH           bool
	MaxTrianglesPerLeaf int
}

// The result of parsing a scene file.
type Result struct {
	Scene *scene.Scene

	// Nil unless the file contains camera statements.
	Camera *scene.PerspectiveCamera
}

type material struct {
	kd, ks, ke types.Vec3
	illum      int
	roughness  float32
}

// Faces of a single object/material pair. Vertex indices are global
// until the mesh is converted.
type meshData struct {
	name     string
	material *material
	faces    [][3]int
}

type cameraDef struct {
	defined bool
	fov     float32
	eye     types.Vec3
	look    types.Vec3
	up      types.Vec3
}

type wavefrontReader struct {
	logger log.Logger
	opts   Options

	vertexList []types.Vec3
	materials  map[string]*material
	meshes     []*meshData

	curName     string
	curMaterial *material
	camera      cameraDef

	// An error stack that provides additional error information when
	// scene files include other files.
	errStack []string
}

func newWavefrontReader(opts Options) *wavefrontReader {
	return &wavefrontReader{
		logger:    log.New("wavefront reader"),
		opts:      opts,
		materials: make(map[string]*material),
		curName:   "default",
		camera: cameraDef{
			fov:  90,
			look: types.Vec3{0, 0, -1},
			up:   types.Vec3{0, 1, 0},
		},
	}
}

// Read a scene from a wavefront object file. The path may also be an http
// or https URL. Material libraries are resolved relative to the file.
func ReadFile(path string, opts Options) (*Result, error) {
	src, err := openSource(path, nil)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return read(src, opts)
}

// Read a scene from r. The name is used in error messages and to resolve
// relative material library paths.
func Read(r io.Reader, name string, opts Options) (*Result, error) {
	return read(sourceFromStream(name, r), opts)
}

func read(src *source, opts Options) (*Result, error) {
	rd := newWavefrontReader(opts)
	start := time.Now()
	if err := rd.parse(src); err != nil {
		return nil, err
	}

	res, err := rd.result()
	if err != nil {
		return nil, err
	}
	rd.logger.Infof("parsed %d objects from %s in %d ms", res.Scene.Len(), src.Path(), time.Since(start).Nanoseconds()/1e6)
	return res, nil
}

// Generate an error message that also includes any data in the error stack.
func (r *wavefrontReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)
	stack := strings.Join(r.errStack, "\n")
	if stack != "" {
		stack = "\n" + stack
	}
	return fmt.Errorf("%w: [%s: %d] %s%s", ErrParse, file, line, msg, stack)
}

func (r *wavefrontReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

func (r *wavefrontReader) popFrame() {
	r.errStack = r.errStack[1:]
}

func (r *wavefrontReader) parse(src *source) error {
	var lineNum int
	var err error

	name := src.Path()
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "mtllib":
			if len(lineTokens) != 2 {
				return r.emitError(name, lineNum, "unsupported syntax for 'mtllib'; expected 1 argument; got %d", len(lineTokens)-1)
			}
			r.pushFrame(fmt.Sprintf("referenced from %s:%d [mtllib]", name, lineNum))
			if err = r.parseMaterialFile(lineTokens[1], src); err != nil {
				return err
			}
			r.popFrame()
		case "usemtl":
			if len(lineTokens) != 2 {
				return r.emitError(name, lineNum, "unsupported syntax for 'usemtl'; expected 1 argument; got %d", len(lineTokens)-1)
			}
			mat, exists := r.materials[lineTokens[1]]
			if !exists {
				return r.emitError(name, lineNum, "undefined material with name '%s'", lineTokens[1])
			}
			r.curMaterial = mat
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(name, lineNum, "%s", err.Error())
			}
			r.vertexList = append(r.vertexList, v)
		case "g", "o":
			if len(lineTokens) < 2 {
				return r.emitError(name, lineNum, "unsupported syntax for '%s'; expected 1 argument for object name; got %d", lineTokens[0], len(lineTokens)-1)
			}
			r.curName = lineTokens[1]
		case "f":
			faces, err := r.parseFace(lineTokens)
			if err != nil {
				return r.emitError(name, lineNum, "%s", err.Error())
			}
			mesh := r.currentMesh()
			mesh.faces = append(mesh.faces, faces...)
		case "camera_fov":
			r.camera.fov, err = parseFloat32(lineTokens)
			r.camera.defined = true
		case "camera_eye":
			r.camera.eye, err = parseVec3(lineTokens)
			r.camera.defined = true
		case "camera_look":
			r.camera.look, err = parseVec3(lineTokens)
			r.camera.defined = true
		case "camera_up":
			r.camera.up, err = parseVec3(lineTokens)
			r.camera.defined = true
		}

		if err != nil {
			return r.emitError(name, lineNum, "%s", err.Error())
		}
	}

	return scanner.Err()
}

// Faces are grouped by object name and material.
func (r *wavefrontReader) currentMesh() *meshData {
	if r.curMaterial == nil {
		r.curMaterial = r.defaultMaterial()
	}
	if len(r.meshes) > 0 {
		last := r.meshes[len(r.meshes)-1]
		if last.name == r.curName && last.material == r.curMaterial {
			return last
		}
	}

	name := r.curName
	for _, mesh := range r.meshes {
		if mesh.name == name {
			name = fmt.Sprintf("%s.%d", r.curName, len(r.meshes))
			break
		}
	}
	mesh := &meshData{name: name, material: r.curMaterial}
	r.meshes = append(r.meshes, mesh)
	return mesh
}

func (r *wavefrontReader) defaultMaterial() *material {
	mat, exists := r.materials[""]
	if !exists {
		mat = &material{kd: types.Vec3{0.7, 0.7, 0.7}}
		r.materials[""] = mat
	}
	return mat
}

// Parse a face definition. Each vertex argument is one of v, v/vt, v//vn
// or v/vt/vn; only the vertex index is used. Polygons with more than three
// vertices are split into a triangle fan.
func (r *wavefrontReader) parseFace(lineTokens []string) ([][3]int, error) {
	if len(lineTokens) < 4 {
		return nil, fmt.Errorf("unsupported syntax for 'f'; expected at least 3 arguments; got %d", len(lineTokens)-1)
	}

	indices := make([]int, len(lineTokens)-1)
	for arg := range indices {
		vTokens := strings.Split(lineTokens[arg+1], "/")
		if vTokens[0] == "" {
			return nil, fmt.Errorf("face argument %d does not include a vertex index", arg)
		}

		vOffset, err := selectFaceCoordIndex(vTokens[0], len(r.vertexList))
		if err != nil {
			return nil, fmt.Errorf("could not parse vertex coord for face argument %d: %s", arg, err.Error())
		}
		indices[arg] = vOffset
	}

	faces := make([][3]int, 0, len(indices)-2)
	for i := 1; i+1 < len(indices); i++ {
		faces = append(faces, [3]int{indices[0], indices[i], indices[i+1]})
	}
	return faces, nil
}

func (r *wavefrontReader) parseMaterialFile(path string, relTo *source) error {
	lib, err := openSource(path, relTo)
	if err != nil {
		return r.emitError(path, 0, "%s", err.Error())
	}
	defer lib.Close()
	return r.parseMaterials(lib, lib.Path())
}

// Parse a wavefront material library.
func (r *wavefrontReader) parseMaterials(in io.Reader, name string) error {
	var lineNum int
	var curMaterial *material

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		if lineTokens[0] == "newmtl" {
			if len(lineTokens) != 2 {
				return r.emitError(name, lineNum, "unsupported syntax for 'newmtl'; expected 1 argument; got %d", len(lineTokens)-1)
			}
			matName := lineTokens[1]
			if _, exists := r.materials[matName]; exists {
				return r.emitError(name, lineNum, "material '%s' already defined", matName)
			}
			curMaterial = &material{}
			r.materials[matName] = curMaterial
			continue
		}

		if curMaterial == nil {
			return r.emitError(name, lineNum, "got '%s' without a 'newmtl'", lineTokens[0])
		}

		var err error
		switch lineTokens[0] {
		case "Kd":
			curMaterial.kd, err = parseVec3(lineTokens)
		case "Ks":
			curMaterial.ks, err = parseVec3(lineTokens)
		case "Ke":
			curMaterial.ke, err = parseVec3(lineTokens)
		case "Pr":
			curMaterial.roughness, err = parseFloat32(lineTokens)
		case "illum":
			var v float32
			v, err = parseFloat32(lineTokens)
			curMaterial.illum = int(v)
		}
		if err != nil {
			return r.emitError(name, lineNum, "%s", err.Error())
		}
	}

	return scanner.Err()
}

// Convert the parsed meshes into scene objects.
func (r *wavefrontReader) result() (*Result, error) {
	if len(r.meshes) == 0 {
		return nil, fmt.Errorf("%w: no faces defined", ErrParse)
	}

	sc := scene.NewScene()
	for _, mesh := range r.meshes {
		geom, err := r.geometry(mesh)
		if err != nil {
			return nil, fmt.Errorf("reader: mesh %s: %w", mesh.name, err)
		}

		var obj *scene.Object
		mat := mesh.material
		brightness := mat.ke[mat.ke.MaxComponent()]
		switch {
		case brightness > 0:
			obj = scene.NewLight(mesh.name, geom, mat.ke.Mul(1/brightness), brightness)
		case mat.illum == 3:
			obj = scene.NewMesh(mesh.name, geom, scene.NewMetal(mat.ks, mat.roughness))
		default:
			obj = scene.NewMesh(mesh.name, geom, scene.NewLambert(mat.kd))
		}

		if r.opts.EnableBVH && !obj.IsLight() {
			if err = geom.SetBVH(true, r.opts.MaxTrianglesPerLeaf); err != nil {
				return nil, fmt.Errorf("reader: mesh %s: %w", mesh.name, err)
			}
		}
		if err = sc.Add(obj); err != nil {
			return nil, err
		}
	}

	res := &Result{Scene: sc}
	if r.camera.defined {
		res.Camera = scene.NewPerspectiveCamera(r.camera.fov)
		res.Camera.LookAt(r.camera.eye, r.camera.look, r.camera.up)
	}
	return res, nil
}

// Build a geometry with its own compact vertex list.
func (r *wavefrontReader) geometry(mesh *meshData) (*scene.Geometry, error) {
	remap := make(map[int]int32)
	vertices := make([]types.Vec3, 0)
	faces := make([]types.Vec3i, len(mesh.faces))
	for faceIndex, face := range mesh.faces {
		for i, globalIndex := range face {
			local, exists := remap[globalIndex]
			if !exists {
				local = int32(len(vertices))
				remap[globalIndex] = local
				vertices = append(vertices, r.vertexList[globalIndex])
			}
			faces[faceIndex][i] = local
		}
	}
	return scene.NewStandardGeometry(faces, vertices)
}

// Given an index for a face coord calculate the proper offset into the
// coord list. Wavefront format can also use negative indices to reference
// elements from the end of the coord list.
func selectFaceCoordIndex(indexToken string, coordListLen int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var vOffset int
	if index < 0 {
		vOffset = coordListLen + int(index)
	} else {
		vOffset = int(index - 1)
	}
	if vOffset < 0 || vOffset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return vOffset, nil
}

// Parse a float scalar value.
func parseFloat32(lineTokens []string) (float32, error) {
	if len(lineTokens) < 2 {
		return 0, fmt.Errorf("unsupported syntax for '%s'; expected 1 argument; got %d", lineTokens[0], len(lineTokens)-1)
	}

	val, err := strconv.ParseFloat(lineTokens[1], 32)
	if err != nil {
		return 0, err
	}

	return float32(val), nil
}

// Parse a Vec3 row.
func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf("unsupported syntax for '%s'; expected 3 arguments; got %d", lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}

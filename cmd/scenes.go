package cmd

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/achilleasa/gpurt/scene"
	"github.com/achilleasa/gpurt/scene/reader"
	"github.com/achilleasa/gpurt/types"
)

type sceneBuilder func(leafSize int) (*scene.Scene, *scene.PerspectiveCamera, error)

var builtinScenes = map[string]sceneBuilder{
	"quad":    quadScene,
	"cornell": cornellScene,
}

func builtinSceneNames() string {
	names := make([]string, 0, len(builtinScenes))
	for name := range builtinScenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Load one of the built-in scenes or parse a wavefront scene file. A leaf
// size of 0 disables BVH construction.
func loadScene(name string, leafSize int) (*scene.Scene, *scene.PerspectiveCamera, error) {
	if builder, exists := builtinScenes[name]; exists {
		return builder(leafSize)
	}

	if !strings.HasSuffix(name, ".obj") {
		return nil, nil, fmt.Errorf("unknown scene %q; expected a .obj file or one of: %s", name, builtinSceneNames())
	}

	res, err := reader.ReadFile(name, reader.Options{EnableBVH: leafSize > 0, MaxTrianglesPerLeaf: leafSize})
	if err != nil {
		return nil, nil, err
	}
	camera := res.Camera
	if camera == nil {
		camera = scene.NewPerspectiveCamera(90)
	}
	return res.Scene, camera, nil
}

type wall struct {
	name     string
	w, h     float32
	position types.Vec3
	rotation types.Vec3
	color    types.Vec3
}

func addWalls(sc *scene.Scene, leafSize int, walls []wall) error {
	for _, def := range walls {
		geom, err := scene.NewPlane(def.w, def.h)
		if err != nil {
			return err
		}
		geom.SetPosition(def.position)
		geom.SetRotation(def.rotation)
		if err = enableBVH(geom, leafSize); err != nil {
			return err
		}
		if err = sc.Add(scene.NewMesh(def.name, geom, scene.NewLambert(def.color))); err != nil {
			return err
		}
	}
	return nil
}

func enableBVH(geom *scene.Geometry, leafSize int) error {
	if leafSize <= 0 {
		return nil
	}
	return geom.SetBVH(true, leafSize)
}

// A white quad lit by a large area light behind the camera.
func quadScene(leafSize int) (*scene.Scene, *scene.PerspectiveCamera, error) {
	sc := scene.NewScene()
	err := addWalls(sc, leafSize, []wall{
		{name: "quad", w: 2, h: 2, position: types.Vec3{0, 0, -3}, color: types.Vec3{1, 1, 1}},
	})
	if err != nil {
		return nil, nil, err
	}

	light, err := scene.NewPlane(4, 4)
	if err != nil {
		return nil, nil, err
	}
	light.SetPosition(types.Vec3{0, 0, 1})
	if err = sc.Add(scene.NewLight("light", light, types.Vec3{1, 1, 1}, 4)); err != nil {
		return nil, nil, err
	}
	return sc, scene.NewPerspectiveCamera(90), nil
}

// The classic cornell box: a 2x2x2 room with a red left wall, a green right
// wall and a ceiling light containing a diffuse box and a metal sphere.
func cornellScene(leafSize int) (*scene.Scene, *scene.PerspectiveCamera, error) {
	white := types.Vec3{0.73, 0.73, 0.73}
	red := types.Vec3{0.65, 0.05, 0.05}
	green := types.Vec3{0.12, 0.45, 0.15}
	halfPi := float32(math.Pi / 2)

	sc := scene.NewScene()
	err := addWalls(sc, leafSize, []wall{
		{name: "back", w: 2, h: 2, position: types.Vec3{0, 0, -4}, color: white},
		{name: "floor", w: 2, h: 2, position: types.Vec3{0, -1, -3}, rotation: types.Vec3{-halfPi, 0, 0}, color: white},
		{name: "ceiling", w: 2, h: 2, position: types.Vec3{0, 1, -3}, rotation: types.Vec3{halfPi, 0, 0}, color: white},
		{name: "left", w: 2, h: 2, position: types.Vec3{-1, 0, -3}, rotation: types.Vec3{0, halfPi, 0}, color: red},
		{name: "right", w: 2, h: 2, position: types.Vec3{1, 0, -3}, rotation: types.Vec3{0, -halfPi, 0}, color: green},
	})
	if err != nil {
		return nil, nil, err
	}

	box, err := scene.NewBox(0.6, 1.2, 0.6)
	if err != nil {
		return nil, nil, err
	}
	box.SetPosition(types.Vec3{-0.35, -0.4, -3.4})
	box.SetRotation(types.Vec3{0, 0.3, 0})
	if err = enableBVH(box, leafSize); err != nil {
		return nil, nil, err
	}
	if err = sc.Add(scene.NewMesh("box", box, scene.NewLambert(white))); err != nil {
		return nil, nil, err
	}

	sphere, err := scene.NewSphere(0.35, 16, 24)
	if err != nil {
		return nil, nil, err
	}
	sphere.SetPosition(types.Vec3{0.4, -0.65, -2.7})
	if err = enableBVH(sphere, leafSize); err != nil {
		return nil, nil, err
	}
	if err = sc.Add(scene.NewMesh("sphere", sphere, scene.NewMetal(types.Vec3{0.9, 0.9, 0.9}, 0.05))); err != nil {
		return nil, nil, err
	}

	light, err := scene.NewPlane(0.6, 0.6)
	if err != nil {
		return nil, nil, err
	}
	light.SetPosition(types.Vec3{0, 0.99, -3})
	light.SetRotation(types.Vec3{halfPi, 0, 0})
	if err = sc.Add(scene.NewLight("light", light, types.Vec3{1, 0.9, 0.8}, 12)); err != nil {
		return nil, nil, err
	}

	camera := scene.NewPerspectiveCamera(60)
	camera.LookAt(types.Vec3{0, 0, 0}, types.Vec3{0, 0, -3}, types.Vec3{0, 1, 0})
	return sc, camera, nil
}

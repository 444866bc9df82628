package scene

import "github.com/achilleasa/gpurt/types"

type MaterialType int32

const (
	LambertMaterial MaterialType = iota
	MetalMaterial
)

// Defines a surface material.
type Material struct {
	// The type of the material.
	Type MaterialType

	// Base color.
	Color types.Vec3

	// Glossiness spread for metal materials; 0 is a perfect mirror.
	Roughness float32
}

// Create a diffuse material.
func NewLambert(color types.Vec3) Material {
	return Material{Type: LambertMaterial, Color: color}
}

// Create a glossy metal material.
func NewMetal(color types.Vec3, roughness float32) Material {
	return Material{Type: MetalMaterial, Color: color, Roughness: roughness}
}

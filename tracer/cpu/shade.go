package cpu

import (
	"math"
	"math/rand/v2"

	"github.com/achilleasa/gpurt/scene"
	"github.com/achilleasa/gpurt/tracer"
	"github.com/achilleasa/gpurt/types"
)

// Offset applied along the surface normal when spawning secondary rays.
const surfaceOffset float32 = 1e-4

// Trace a single primary ray and return its radiance sample.
func (s *sceneData) trace(rayIndex, frameIndex, maxBounce int) tracer.Pixel {
	rng := rand.New(rand.NewPCG(uint64(frameIndex), uint64(rayIndex)))

	primary := s.rays[rayIndex]
	r := newRay(primary.Origin.Vec3(), primary.Direction.Vec3().Normalize())

	var radiance types.Vec3
	throughput := types.Vec3{1, 1, 1}
	countEmission := true

	for bounce := 0; bounce <= maxBounce; bounce++ {
		hit, found := s.intersect(&r, math.MaxFloat32)
		if !found {
			if bounce == 0 {
				return tracer.MissPixel
			}
			break
		}

		obj := &s.objects[hit.object]
		if obj.Kind == lightKind {
			// Diffuse bounces already sampled the light explicitly
			if countEmission {
				radiance = radiance.Add(throughput.MulVec(s.emission(obj)))
			}
			break
		}

		point := r.origin.Add(r.dir.Mul(hit.t))
		normal, _ := s.faceNormal(hit.face)
		if normal.Dot(r.dir) > 0 {
			normal = normal.Mul(-1)
		}
		albedo := obj.Color.Vec3()

		var dir types.Vec3
		switch scene.MaterialType(obj.MaterialType) {
		case scene.MetalMaterial:
			dir = reflect(r.dir, normal)
			if roughness := obj.Color[3]; roughness > 0 {
				dir = dir.Add(randomInUnitSphere(rng).Mul(roughness)).Normalize()
			}
			if dir.Dot(normal) <= 0 {
				return s.finish(radiance)
			}
			countEmission = true
		default:
			direct := s.sampleLights(point, normal, rng)
			radiance = radiance.Add(throughput.MulVec(albedo).MulVec(direct).Mul(1 / math.Pi))
			dir = sampleCosineHemisphere(normal, rng)
			countEmission = false
		}

		throughput = throughput.MulVec(albedo)
		r = newRay(point.Add(normal.Mul(surfaceOffset)), dir)
	}

	return s.finish(radiance)
}

func (s *sceneData) finish(radiance types.Vec3) tracer.Pixel {
	return tracer.Pixel{R: radiance[0], G: radiance[1], B: radiance[2], A: 1}
}

func (s *sceneData) emission(obj *tracer.Object) types.Vec3 {
	attr := s.lightAttributes[obj.AttributeIndex]
	return attr.Color.Vec3().Mul(attr.Brightness)
}

// Estimate direct illumination at point by sampling one point on one light.
// Lights are two-sided.
func (s *sceneData) sampleLights(point, normal types.Vec3, rng *rand.Rand) types.Vec3 {
	if len(s.lightIndices) == 0 {
		return types.Vec3{}
	}

	light := &s.objects[s.lightIndices[rng.IntN(len(s.lightIndices))]]
	if light.NumFaces == 0 {
		return types.Vec3{}
	}
	faceIndex := light.FaceIndexOffset + int32(rng.IntN(int(light.NumFaces)))
	lightNormal, area := s.faceNormal(faceIndex)
	if area == 0 {
		return types.Vec3{}
	}

	// Uniform point on the triangle
	face := s.faces[faceIndex]
	v0 := s.vertices[face[0]].Vec3()
	v1 := s.vertices[face[1]].Vec3()
	v2 := s.vertices[face[2]].Vec3()
	su := float32(math.Sqrt(float64(rng.Float32())))
	b1, b2 := 1-su, rng.Float32()*su
	target := v0.Mul(b1).Add(v1.Mul(b2)).Add(v2.Mul(1 - b1 - b2))

	toLight := target.Sub(point)
	dist := toLight.Len()
	if dist < tMinEpsilon {
		return types.Vec3{}
	}
	wi := toLight.Mul(1 / dist)

	cosSurface := normal.Dot(wi)
	cosLight := float32(math.Abs(float64(lightNormal.Dot(wi))))
	if cosSurface <= 0 || cosLight <= 0 {
		return types.Vec3{}
	}

	shadow := newRay(point.Add(normal.Mul(surfaceOffset)), wi)
	if s.occluded(&shadow, dist) {
		return types.Vec3{}
	}

	// pdf of picking this point = 1 / (numLights * numFaces * area)
	invPdf := float32(len(s.lightIndices)) * float32(light.NumFaces) * area
	return s.emission(light).Mul(cosSurface * cosLight / (dist * dist) * invPdf)
}

func reflect(v, n types.Vec3) types.Vec3 {
	return v.Sub(n.Mul(2 * v.Dot(n)))
}

func randomInUnitSphere(rng *rand.Rand) types.Vec3 {
	for {
		p := types.Vec3{2*rng.Float32() - 1, 2*rng.Float32() - 1, 2*rng.Float32() - 1}
		if p.Dot(p) < 1 {
			return p
		}
	}
}

// Cosine weighted direction around n.
func sampleCosineHemisphere(n types.Vec3, rng *rand.Rand) types.Vec3 {
	r1 := 2 * math.Pi * float64(rng.Float32())
	r2 := float64(rng.Float32())
	r2s := math.Sqrt(r2)

	// Build an orthonormal basis around n
	var a types.Vec3
	if math.Abs(float64(n[0])) > 0.9 {
		a = types.Vec3{0, 1, 0}
	} else {
		a = types.Vec3{1, 0, 0}
	}
	u := a.Cross(n).Normalize()
	v := n.Cross(u)

	return u.Mul(float32(math.Cos(r1) * r2s)).
		Add(v.Mul(float32(math.Sin(r1) * r2s))).
		Add(n.Mul(float32(math.Sqrt(1 - r2)))).
		Normalize()
}

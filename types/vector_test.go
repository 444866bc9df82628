package types

import (
	"math"
	"testing"
)

func TestMaxComponent(t *testing.T) {
	specs := []struct {
		in  Vec3
		exp int
	}{
		{Vec3{3, 1, 2}, 0},
		{Vec3{1, 3, 2}, 1},
		{Vec3{1, 2, 3}, 2},
		{Vec3{1, 1, 1}, 0},
	}

	for idx, spec := range specs {
		if got := spec.in.MaxComponent(); got != spec.exp {
			t.Fatalf("[spec %d] expected max component %d; got %d", idx, spec.exp, got)
		}
	}
}

func TestNormalizeZero(t *testing.T) {
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Fatalf("expected zero vector; got %v", got)
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate3D(Vec3{1, 2, 3}).Mul4(Scale3D(Vec3{2, 2, 2}))
	got := m.TransformPoint(Vec3{1, 1, 1})
	exp := Vec3{3, 4, 5}
	if got != exp {
		t.Fatalf("expected %v; got %v", exp, got)
	}
}

func TestQuatRotate(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{0, 1, 0}, math.Pi/2)
	got := q.Rotate(Vec3{1, 0, 0})
	exp := Vec3{0, 0, -1}
	for i := 0; i < 3; i++ {
		if math.Abs(float64(got[i]-exp[i])) > 1e-5 {
			t.Fatalf("expected %v; got %v", exp, got)
		}
	}
}

func TestQuatComposeAndNormalize(t *testing.T) {
	quarter := QuatFromAxisAngle(Vec3{0, 0, 1}, math.Pi/4)
	got := quarter.Mul(quarter).Normalize().Rotate(Vec3{1, 0, 0})
	exp := Vec3{0, 1, 0}
	for i := 0; i < 3; i++ {
		if math.Abs(float64(got[i]-exp[i])) > 1e-5 {
			t.Fatalf("expected %v; got %v", exp, got)
		}
	}

	ident := Quat{}.Normalize()
	if got := ident.Rotate(Vec3{1, 2, 3}); got != (Vec3{1, 2, 3}) {
		t.Fatalf("expected zero quaternion to normalize to identity; got rotation %v", got)
	}
}

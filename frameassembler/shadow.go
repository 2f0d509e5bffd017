package frameassembler

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ShadowConfig mirrors the engine config's shadow section (spec §6
// "shadow (cascade count, resolution, split lambda, PCF radius)").
type ShadowConfig struct {
	CascadeCount int
	Resolution   int
	SplitLambda  float32 // 0 = uniform splits, 1 = logarithmic, blended between
	PCFRadius    int
}

// Cascade is one shadow-map split: its near/far distance along the camera
// view axis and the orthographic projection fitted to it.
type Cascade struct {
	Near, Far float32
	ViewProj  mgl32.Mat4
}

// ComputeCascadeSplits blends uniform and logarithmic splits by
// SplitLambda (spec §4.6 step 5 "cascaded splits (blended uniform/
// logarithmic)"), the standard practical-split-scheme compromise: uniform
// splits waste resolution on the far plane, logarithmic splits waste it
// near the camera.
func ComputeCascadeSplits(cfg ShadowConfig, near, far float32) []float32 {
	n := cfg.CascadeCount
	if n <= 0 {
		return nil
	}
	splits := make([]float32, n+1)
	splits[0] = near
	for i := 1; i <= n; i++ {
		fi := float32(i) / float32(n)
		uniform := near + (far-near)*fi
		log := uniform
		if near > 0 {
			log = near * float32(math.Pow(float64(far/near), float64(fi)))
		}
		splits[i] = cfg.SplitLambda*log + (1-cfg.SplitLambda)*uniform
	}
	return splits
}

// BuildCascade fits an orthographic light-space matrix around the bounding
// sphere (center, radius) as seen from a directional light pointed along
// lightDir. Only ViewProj is set on the returned Cascade.
func BuildCascade(lightDir mgl32.Vec3, center mgl32.Vec3, radius float32) Cascade {
	lightDir = lightDir.Normalize()
	eye := center.Sub(lightDir.Mul(radius * 2))
	up := mgl32.Vec3{0, 1, 0}
	if lightDir.Cross(up).Len() < 1e-4 {
		up = mgl32.Vec3{0, 0, 1}
	}
	view := mgl32.LookAtV(eye, center, up)
	proj := mgl32.Ortho(-radius, radius, -radius, radius, 0.01, radius*4)
	return Cascade{ViewProj: proj.Mul4(view)}
}

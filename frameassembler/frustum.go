// Package frameassembler implements the Frame Assembler (spec §4.6):
// frustum culling, guardrail-policy footprint enforcement, atlas+material
// batching, GPU submission, shadow cascades, light clustering, and
// per-pass GPU timing — grounded on the teacher's gpu_operations.go /
// renderer_guard.go and CameraComponent (mod_client.go).
package frameassembler

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

// Plane is a half-space ax+by+cz+d >= 0 is "inside".
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

func (p Plane) DistanceToPoint(pt mgl32.Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

// Frustum is the six half-spaces of a camera's view-projection volume, in
// left/right/bottom/top/near/far order.
type Frustum struct {
	Planes [6]Plane
}

// ViewProjection builds the camera's combined view-projection matrix.
func ViewProjection(cam *kestrel.Camera) mgl32.Mat4 {
	view := mgl32.LookAtV(cam.Position, cam.Target, cam.Up)
	proj := mgl32.Perspective(mgl32.DegToRad(cam.Fov), cam.Aspect, cam.Near, cam.Far)
	return proj.Mul4(view)
}

// ExtractFrustum derives the six clip planes from a view-projection matrix
// (Gribb/Hartmann row extraction), normalized so DistanceToPoint is in
// world units.
func ExtractFrustum(vp mgl32.Mat4) Frustum {
	row := func(i int) mgl32.Vec4 {
		return mgl32.Vec4{vp[i], vp[i+4], vp[i+8], vp[i+12]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	mk := func(v mgl32.Vec4) Plane {
		n := mgl32.Vec3{v[0], v[1], v[2]}
		length := n.Len()
		if length < 1e-8 {
			return Plane{Normal: n, D: v[3]}
		}
		return Plane{Normal: n.Mul(1 / length), D: v[3] / length}
	}

	return Frustum{Planes: [6]Plane{
		mk(r3.Add(r0)), // left
		mk(r3.Sub(r0)), // right
		mk(r3.Add(r1)), // bottom
		mk(r3.Sub(r1)), // top
		mk(r3.Add(r2)), // near
		mk(r3.Sub(r2)), // far
	}}
}

// SphereInFrustum is a conservative visibility test: a sphere is culled
// only once it is fully on the outside of some plane.
func (f Frustum) SphereInFrustum(center mgl32.Vec3, radius float32) bool {
	for _, p := range f.Planes {
		if p.DistanceToPoint(center) < -radius {
			return false
		}
	}
	return true
}

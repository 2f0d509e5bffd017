package physicsstep

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// inertiaTensor derives a scalar-diagonal box inertia tensor from a body's
// effective extents and mass (teacher's physics.go fallback-box formula);
// this engine's RigidBody component carries no explicit inertia tensor, so
// it is recomputed per tick rather than cached — physics is a 6% budget
// share and recomputing a 3x3 diagonal is cheap next to contact solving.
func inertiaTensor(b *Body) mgl32.Mat3 {
	ext := effectiveExtents(b)
	width, height, depth := ext.X()*2, ext.Y()*2, ext.Z()*2
	m := b.RigidBody.Mass
	if m <= 0 {
		m = 1
	}
	ix := (1.0 / 12.0) * m * (height*height + depth*depth)
	iy := (1.0 / 12.0) * m * (width*width + depth*depth)
	iz := (1.0 / 12.0) * m * (width*width + height*height)
	return mgl32.Mat3{ix, 0, 0, 0, iy, 0, 0, 0, iz}
}

func invInertiaWorld(b *Body) mgl32.Mat3 {
	if b.Collider.IsStatic || b.RigidBody.Mass <= 0 {
		return mgl32.Mat3{}
	}
	local := inertiaTensor(b).Inv()
	r := quatToMat3(b.Transform.Rotation)
	return r.Mul3(local).Mul3(r.Transpose())
}

func quatToMat3(q mgl32.Quat) mgl32.Mat3 {
	m4 := q.Mat4()
	return mgl32.Mat3{m4[0], m4[1], m4[2], m4[4], m4[5], m4[6], m4[8], m4[9], m4[10]}
}

// Resolve applies impulse-based separation for one contact, with
// restitution and friction each averaged over Collider A and Collider B
// (teacher's ResolveContact,
// reduced to non-voxel geometry). Static bodies (spec §4.5 "Static bounds
// are colliders like any other") contribute infinite mass and never move.
func Resolve(c Contact, bodies []Body, dt float32) {
	a, b := &bodies[c.A], &bodies[c.B]
	restitution := (a.Collider.Restitution + b.Collider.Restitution) / 2
	friction := (a.Collider.Friction + b.Collider.Friction) / 2

	invMassA := invMass(a)
	invMassB := invMass(b)
	if invMassA == 0 && invMassB == 0 {
		return
	}

	invIA := invInertiaWorld(a)
	invIB := invInertiaWorld(b)

	rA := c.Point.Sub(a.Transform.Translation)
	rB := c.Point.Sub(b.Transform.Translation)

	vA := a.RigidBody.LinearVel.Add(a.RigidBody.AngularVel.Cross(rA))
	vB := b.RigidBody.LinearVel.Add(b.RigidBody.AngularVel.Cross(rB))
	vRel := vA.Sub(vB)

	velAlongNormal := vRel.Dot(c.Normal)
	if velAlongNormal > 0 {
		return // separating
	}

	angA := invIA.Mul3x1(rA.Cross(c.Normal)).Cross(rA).Dot(c.Normal)
	angB := invIB.Mul3x1(rB.Cross(c.Normal)).Cross(rB).Dot(c.Normal)
	denom := invMassA + invMassB + angA + angB
	if denom == 0 {
		return
	}

	j := -(1 + restitution) * velAlongNormal / denom

	const beta, slop = 0.2, 0.01
	bias := (beta / dt) * float32(math.Max(0, float64(c.Depth-slop)))
	j += bias / denom

	impulse := c.Normal.Mul(j)
	applyImpulse(a, invMassA, invIA, rA, impulse)
	applyImpulse(b, invMassB, invIB, rB, impulse.Mul(-1))

	tangent := vRel.Sub(c.Normal.Mul(velAlongNormal))
	if tangent.Len() <= 1e-4 {
		return
	}
	tangent = tangent.Normalize()
	angAT := invIA.Mul3x1(rA.Cross(tangent)).Cross(rA).Dot(tangent)
	angBT := invIB.Mul3x1(rB.Cross(tangent)).Cross(rB).Dot(tangent)
	denomT := invMassA + invMassB + angAT + angBT
	if denomT <= 0 {
		return
	}
	jt := -vRel.Dot(tangent) / denomT
	if float32(math.Abs(float64(jt))) > j*friction {
		jt = j * friction * float32(math.Copysign(1, float64(jt)))
	}
	impulseT := tangent.Mul(jt)
	applyImpulse(a, invMassA, invIA, rA, impulseT)
	applyImpulse(b, invMassB, invIB, rB, impulseT.Mul(-1))
}

func applyImpulse(b *Body, invMass float32, invI mgl32.Mat3, r mgl32.Vec3, impulse mgl32.Vec3) {
	if invMass == 0 {
		return
	}
	b.RigidBody.LinearVel = b.RigidBody.LinearVel.Add(impulse.Mul(invMass))
	b.RigidBody.AngularVel = b.RigidBody.AngularVel.Add(invI.Mul3x1(r.Cross(impulse)))
	b.RigidBody.Sleeping = false
	b.RigidBody.SleepTimer = 0
}

func invMass(b *Body) float32 {
	if b.Collider.IsStatic || b.RigidBody.Mass <= 0 {
		return 0
	}
	return 1.0 / b.RigidBody.Mass
}

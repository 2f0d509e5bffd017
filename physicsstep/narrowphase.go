package physicsstep

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

// Body is one entity's physics state for the duration of a single fixed
// tick, gathered once at the start of the step and written back at the
// end (spec §4.5, teacher's BodyInfo).
type Body struct {
	Entity      kestrel.EntityId
	Transform   *kestrel.Transform
	RigidBody   *kestrel.RigidBody
	Collider    *kestrel.Collider
	HalfExtents mgl32.Vec3 // world-space, scale-adjusted
}

func (b *Body) AABB() AABB {
	he := b.HalfExtents
	return AABB{
		Min: b.Transform.Translation.Sub(he),
		Max: b.Transform.Translation.Add(he),
	}
}

// Contact is one resolvable overlap between two bodies, or between a body
// and a static collider (a static body is marked by its Collider.IsStatic).
type Contact struct {
	A, B   int // indices into the tick's []Body
	Point  mgl32.Vec3
	Normal mgl32.Vec3 // points from B to A
	Depth  float32
}

// FindContacts narrowphases every candidate pair with AABB overlap, and
// for overlapping pairs derives a contact normal/point/depth from the axis
// of least penetration — the same approach as teacher's FindBodyContacts,
// generalized off box half-extents for both box and sphere colliders
// (a sphere is treated as its bounding box of half-extent Radius; the
// contact is not corrected to the true sphere surface).
func FindContacts(bodies []Body, pairs [][2]int) []Contact {
	var contacts []Contact
	for _, p := range pairs {
		a, b := &bodies[p[0]], &bodies[p[1]]
		if a.RigidBody.Sleeping && b.RigidBody.Sleeping {
			continue
		}
		if c, ok := contactBetween(a, b, p[0], p[1]); ok {
			contacts = append(contacts, c)
		}
	}
	return contacts
}

func contactBetween(a, b *Body, ia, ib int) (Contact, bool) {
	diff := a.Transform.Translation.Sub(b.Transform.Translation)
	extA, extB := effectiveExtents(a), effectiveExtents(b)

	overlapX := float64(extA.X()+extB.X()) - math.Abs(float64(diff.X()))
	overlapY := float64(extA.Y()+extB.Y()) - math.Abs(float64(diff.Y()))
	overlapZ := float64(extA.Z()+extB.Z()) - math.Abs(float64(diff.Z()))
	if overlapX <= 0 || overlapY <= 0 || overlapZ <= 0 {
		return Contact{}, false
	}

	normal := mgl32.Vec3{0, 1, 0}
	depth := float32(overlapY)
	switch {
	case overlapX < overlapY && overlapX < overlapZ:
		depth = float32(overlapX)
		normal = mgl32.Vec3{signOf(diff.X()), 0, 0}
	case overlapZ < overlapX && overlapZ < overlapY:
		depth = float32(overlapZ)
		normal = mgl32.Vec3{0, 0, signOf(diff.Z())}
	default:
		normal = mgl32.Vec3{0, signOf(diff.Y()), 0}
	}

	point := a.Transform.Translation.Add(b.Transform.Translation).Mul(0.5)
	point = point.Add(normal.Mul(depth * 0.5))

	return Contact{A: ia, B: ib, Point: point, Normal: normal, Depth: depth}, true
}

func effectiveExtents(b *Body) mgl32.Vec3 {
	if b.Collider.Shape == kestrel.ColliderSphere {
		r := b.Collider.Radius
		return mgl32.Vec3{r, r, r}
	}
	return b.HalfExtents
}

func signOf(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}

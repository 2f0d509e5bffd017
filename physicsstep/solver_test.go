package physicsstep

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestResolve_SeparatesApproachingBodies(t *testing.T) {
	bodies := []Body{newBody(mgl32.Vec3{0, 0, 0}, 1), newBody(mgl32.Vec3{1.5, 0, 0}, 1)}
	bodies[0].RigidBody.LinearVel = mgl32.Vec3{1, 0, 0}
	bodies[1].RigidBody.LinearVel = mgl32.Vec3{-1, 0, 0}

	contacts := FindContacts(bodies, [][2]int{{0, 1}})
	if len(contacts) != 1 {
		t.Fatalf("expected a contact, got %d", len(contacts))
	}
	Resolve(contacts[0], bodies, 1.0/60.0)

	if bodies[0].RigidBody.LinearVel.X() >= 1 {
		t.Fatalf("expected body 0's velocity to be pushed apart, got %v", bodies[0].RigidBody.LinearVel.X())
	}
	if bodies[1].RigidBody.LinearVel.X() <= -1 {
		t.Fatalf("expected body 1's velocity to be pushed apart, got %v", bodies[1].RigidBody.LinearVel.X())
	}
}

func TestResolve_StaticBodyNeverMoves(t *testing.T) {
	dynamic := newBody(mgl32.Vec3{0, 0, 0}, 1)
	dynamic.RigidBody.LinearVel = mgl32.Vec3{1, 0, 0}
	static := newBody(mgl32.Vec3{1.5, 0, 0}, 1)
	static.Collider.IsStatic = true

	bodies := []Body{dynamic, static}
	contacts := FindContacts(bodies, [][2]int{{0, 1}})
	Resolve(contacts[0], bodies, 1.0/60.0)

	if bodies[1].RigidBody.LinearVel != (mgl32.Vec3{}) {
		t.Fatalf("expected static body's velocity to stay zero, got %v", bodies[1].RigidBody.LinearVel)
	}
}

func TestResolve_SeparatingBodiesAreNotDisturbed(t *testing.T) {
	bodies := []Body{newBody(mgl32.Vec3{0, 0, 0}, 1), newBody(mgl32.Vec3{1.5, 0, 0}, 1)}
	bodies[0].RigidBody.LinearVel = mgl32.Vec3{-1, 0, 0}
	bodies[1].RigidBody.LinearVel = mgl32.Vec3{1, 0, 0}

	contacts := FindContacts(bodies, [][2]int{{0, 1}})
	before := bodies[0].RigidBody.LinearVel
	Resolve(contacts[0], bodies, 1.0/60.0)
	if bodies[0].RigidBody.LinearVel != before {
		t.Fatalf("expected already-separating bodies to be left alone, velocity changed from %v to %v", before, bodies[0].RigidBody.LinearVel)
	}
}

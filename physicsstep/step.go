package physicsstep

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

// Config tunes the broadphase and solver (spec §4.5's "configurable cell
// size" / "configurable threshold").
type Config struct {
	Gravity             mgl32.Vec3
	CellSize            float32
	DensityThreshold    int // cell occupancy above which the quadtree fallback takes over
	QuadTreeBounds      AABB
	SleepLinearEpsilon  float32
	SleepAngularEpsilon float32
	SleepDelay          float32 // seconds of near-rest before sleeping
}

func DefaultConfig() Config {
	return Config{
		Gravity:             mgl32.Vec3{0, -9.81, 0},
		CellSize:            4,
		DensityThreshold:    16,
		QuadTreeBounds:      AABB{Min: mgl32.Vec3{-1000, -1000, -1000}, Max: mgl32.Vec3{1000, 1000, 1000}},
		SleepLinearEpsilon:  0.01,
		SleepAngularEpsilon: 0.01,
		SleepDelay:          0.5,
	}
}

// Step runs the fixed-tick-only Physics Step Module (spec §4.5). It never
// runs in the variable phase — the App wires it into kestrel.PhysicsStep,
// which only exists in the fixed stage order.
type Step struct {
	cfg   Config
	hash  *SpatialHash
	stats Stats
}

// Stats is the last tick's telemetry, read by package telemetry consumers.
type Stats struct {
	BodyCount      int
	ContactCount   int
	UsedQuadTree   bool
	MaxCellDensity int
}

func NewStep(cfg Config) *Step {
	return &Step{cfg: cfg, hash: NewSpatialHash(cfg.CellSize)}
}

func (s *Step) Install(app *kestrel.App, cmd *kestrel.Commands) {
	app.UseSystem(kestrel.System(s.run).InStage(kestrel.PhysicsStep))
}

func (s *Step) Stats() Stats { return s.stats }

func (s *Step) run(app *kestrel.App) {
	world := app.World()
	dt := float32(kestrel.FixedStep)

	var bodies []Body
	kestrel.Query3Of[kestrel.Transform, kestrel.RigidBody, kestrel.Collider](world).Each(func(id kestrel.EntityId, tr *kestrel.Transform, rb *kestrel.RigidBody, col *kestrel.Collider) bool {
		bodies = append(bodies, Body{
			Entity:      id,
			Transform:   tr,
			RigidBody:   rb,
			Collider:    col,
			HalfExtents: scaledHalfExtents(tr, col),
		})
		return true
	})
	s.stats.BodyCount = len(bodies)
	if len(bodies) == 0 {
		return
	}

	integrate(bodies, s.cfg.Gravity, dt)

	s.hash.Reset()
	for i, b := range bodies {
		s.hash.Insert(i, b.AABB())
	}
	density := s.hash.MaxCellDensity()
	s.stats.MaxCellDensity = density

	var pairs [][2]int
	if density > s.cfg.DensityThreshold {
		s.stats.UsedQuadTree = true
		qt := NewQuadTree(s.cfg.QuadTreeBounds, 0, 0)
		for i, b := range bodies {
			qt.Insert(i, b.AABB())
		}
		pairs = qt.CandidatePairs()
	} else {
		s.stats.UsedQuadTree = false
		pairs = s.hash.CandidatePairs()
	}

	contacts := FindContacts(bodies, pairs)
	s.stats.ContactCount = len(contacts)

	const iterations = 4
	for iter := 0; iter < iterations; iter++ {
		for _, c := range contacts {
			Resolve(c, bodies, dt)
		}
	}

	integratePositions(bodies, dt)
	applySleep(bodies, s.cfg, dt)

	for _, c := range contacts {
		a, b := bodies[c.A], bodies[c.B]
		app.EventBus().Publish(kestrel.Event{
			Kind:   "physics.collision",
			Entity: a.Entity,
			Payload: CollisionEvent{
				A: a.Entity, B: b.Entity,
				Point: c.Point, Normal: c.Normal, Depth: c.Depth,
			},
		})
	}
}

// CollisionEvent is the payload published for every resolved contact this
// tick (spec §4.5 "Collision events enqueue onto the event bus").
type CollisionEvent struct {
	A, B   kestrel.EntityId
	Point  mgl32.Vec3
	Normal mgl32.Vec3
	Depth  float32
}

func scaledHalfExtents(tr *kestrel.Transform, col *kestrel.Collider) mgl32.Vec3 {
	he := col.HalfExtents
	if col.Shape == kestrel.ColliderSphere {
		r := col.Radius
		he = mgl32.Vec3{r, r, r}
	}
	return mgl32.Vec3{
		he.X() * absf(tr.Scale.X()),
		he.Y() * absf(tr.Scale.Y()),
		he.Z() * absf(tr.Scale.Z()),
	}
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func integrate(bodies []Body, gravity mgl32.Vec3, dt float32) {
	for i := range bodies {
		b := &bodies[i]
		if b.Collider.IsStatic || b.RigidBody.Sleeping {
			continue
		}
		b.RigidBody.LinearVel = b.RigidBody.LinearVel.Add(gravity.Mul(b.RigidBody.GravityScale * dt))
	}
}

func integratePositions(bodies []Body, dt float32) {
	for i := range bodies {
		b := &bodies[i]
		if b.Collider.IsStatic || b.RigidBody.Sleeping {
			continue
		}
		b.Transform.Translation = b.Transform.Translation.Add(b.RigidBody.LinearVel.Mul(dt))

		omega := b.RigidBody.AngularVel
		if omega.Len() > 1e-4 {
			angle := omega.Len() * dt
			axis := omega.Normalize()
			delta := mgl32.QuatRotate(angle, axis)
			b.Transform.Rotation = delta.Mul(b.Transform.Rotation).Normalize()
		}
	}
}

func applySleep(bodies []Body, cfg Config, dt float32) {
	for i := range bodies {
		b := &bodies[i]
		if b.Collider.IsStatic {
			continue
		}
		atRest := b.RigidBody.LinearVel.Len() < cfg.SleepLinearEpsilon &&
			b.RigidBody.AngularVel.Len() < cfg.SleepAngularEpsilon
		if atRest {
			b.RigidBody.SleepTimer += dt
			if b.RigidBody.SleepTimer > cfg.SleepDelay {
				b.RigidBody.Sleeping = true
				b.RigidBody.LinearVel = mgl32.Vec3{}
				b.RigidBody.AngularVel = mgl32.Vec3{}
			}
		} else {
			b.RigidBody.SleepTimer = 0
		}
	}
}

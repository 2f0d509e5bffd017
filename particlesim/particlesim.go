// Package particlesim runs the per-entity CPU particle pools the
// ParticleEmitter component configures (spec §4.1 "mesh/particle updates"),
// grounded on the teacher's particles_ecs.go pool-per-emitter simulation,
// simplified to a single deterministic pass over App.RNG() instead of a
// worker-pool fan-out, so particle state stays reproducible under
// App.DeterministicOrdering.
package particlesim

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

// Config caps engine-wide particle load (spec §6 "particle caps (max spawn
// per frame, max total, max backlog)").
type Config struct {
	MaxSpawnPerFrame int
	MaxTotal         int
	MaxBacklog       int
}

func DefaultConfig() Config {
	return Config{MaxSpawnPerFrame: 256, MaxTotal: 8192, MaxBacklog: 1024}
}

// Instance is one live particle's renderable state, packed for a batching
// stage the way the teacher's core.ParticleInstance is.
type Instance struct {
	Entity   kestrel.EntityId
	Position mgl32.Vec3
	Velocity mgl32.Vec3
	Size     float32
	Color    [4]float32
	LifePct  float32
}

// Stats is this tick's telemetry, read by package telemetry consumers.
type Stats struct {
	EmitterCount    int
	ActiveCount     int
	SpawnedThisTick int
	DroppedSpawns   int // spawns denied by MaxSpawnPerFrame/MaxTotal this tick
}

type pool struct {
	pos, vel []mgl32.Vec3
	age      []float32
	life     []float32
	size     []float32
	color    [][4]float32

	alive    int
	spawnAcc float32
}

func ensurePool(pools map[kestrel.EntityId]*pool, id kestrel.EntityId, capacity int) *pool {
	p, ok := pools[id]
	if !ok {
		p = &pool{}
		pools[id] = p
	}
	if capacity <= 0 {
		capacity = 1
	}
	if len(p.pos) != capacity {
		p.pos = make([]mgl32.Vec3, capacity)
		p.vel = make([]mgl32.Vec3, capacity)
		p.age = make([]float32, capacity)
		p.life = make([]float32, capacity)
		p.size = make([]float32, capacity)
		p.color = make([][4]float32, capacity)
		if p.alive > capacity {
			p.alive = capacity
		}
	}
	return p
}

// Simulator owns every emitter's particle pool and runs in the MeshParticle
// variable stage (spec §4.1).
type Simulator struct {
	cfg       Config
	pools     map[kestrel.EntityId]*pool
	instances []Instance
	stats     Stats
}

func NewSimulator(cfg Config) *Simulator {
	return &Simulator{cfg: cfg, pools: make(map[kestrel.EntityId]*pool)}
}

func (s *Simulator) Install(app *kestrel.App, cmd *kestrel.Commands) {
	app.World().OnDespawn(s.onDespawn)
	app.UseSystem(kestrel.System(s.run).InStage(kestrel.MeshParticle))
}

func (s *Simulator) onDespawn(id kestrel.EntityId) {
	delete(s.pools, id)
}

// Stats returns this tick's telemetry snapshot.
func (s *Simulator) Stats() Stats { return s.stats }

// Instances returns this tick's packed particle instances, valid until the
// next run.
func (s *Simulator) Instances() []Instance { return s.instances }

func (s *Simulator) run(app *kestrel.App) {
	dt := float32(app.Time().Dt)
	if dt <= 0 {
		return
	}
	rng := app.RNG()

	var stats Stats
	s.instances = s.instances[:0]
	spawnBudget := s.cfg.MaxSpawnPerFrame
	totalBudget := s.cfg.MaxTotal

	kestrel.Query2Of[kestrel.WorldTransform, kestrel.ParticleEmitter](app.World()).Each(func(id kestrel.EntityId, wt *kestrel.WorldTransform, em *kestrel.ParticleEmitter) bool {
		stats.EmitterCount++
		if !em.Enabled || em.MaxParticles <= 0 {
			return true
		}
		p := ensurePool(s.pools, id, em.MaxParticles)

		p.spawnAcc += em.SpawnRate * dt
		want := int(p.spawnAcc)
		if want > 0 {
			p.spawnAcc -= float32(want)
		}
		if rem := em.MaxParticles - p.alive; want > rem {
			want = rem
		}
		if want > spawnBudget {
			stats.DroppedSpawns += want - spawnBudget
			want = spawnBudget
		}
		if totalBudget >= 0 {
			if rem := totalBudget - stats.ActiveCount; want > rem {
				stats.DroppedSpawns += want - max(rem, 0)
				want = max(rem, 0)
			}
		}
		spawnBudget -= want

		for i := 0; i < want; i++ {
			idx := p.alive
			p.alive++
			p.pos[idx] = wt.Translation
			dir := sampleDirection(wt.Rotation, em.ConeAngleDegrees, rng)
			speed := lerp(em.StartSpeedRange[0], em.StartSpeedRange[1], rng.Float32())
			p.vel[idx] = dir.Mul(speed)
			p.age[idx] = 0
			p.life[idx] = lerp(em.LifetimeRange[0], em.LifetimeRange[1], rng.Float32())
			p.size[idx] = lerp(em.StartSizeRange[0], em.StartSizeRange[1], rng.Float32())
			var c [4]float32
			for j := 0; j < 4; j++ {
				c[j] = lerp(em.StartColorMin[j], em.StartColorMax[j], rng.Float32())
			}
			p.color[idx] = c
		}
		stats.SpawnedThisTick += want

		drag := float32(math.Max(0, float64(1-em.Drag*dt)))
		i := 0
		for i < p.alive {
			v := p.vel[i].Add(mgl32.Vec3{0, -em.Gravity * dt, 0}).Mul(drag)
			pos := p.pos[i].Add(v.Mul(dt))
			age := p.age[i] + dt
			life := p.life[i]
			if age >= life {
				last := p.alive - 1
				p.pos[i], p.vel[i], p.age[i], p.life[i], p.size[i], p.color[i] =
					p.pos[last], p.vel[last], p.age[last], p.life[last], p.size[last], p.color[last]
				p.alive--
				continue
			}
			p.vel[i], p.pos[i], p.age[i] = v, pos, age
			i++
		}

		for i := 0; i < p.alive; i++ {
			life := p.life[i]
			if life <= 0 {
				life = 1
			}
			s.instances = append(s.instances, Instance{
				Entity:   id,
				Position: p.pos[i],
				Velocity: p.vel[i],
				Size:     p.size[i],
				Color:    p.color[i],
				LifePct:  p.age[i] / life,
			})
		}
		stats.ActiveCount += p.alive
		return true
	})

	s.stats = stats
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// sampleDirection draws a direction within a cone around rot's local up
// axis, matching the teacher's sampleDirectionRng (particles_ecs.go) but
// against math/rand/v2's *rand.Rand so it can share App.RNG()'s seeded
// stream under deterministic ordering.
func sampleDirection(rot mgl32.Quat, coneDeg float32, rng *rand.Rand) mgl32.Vec3 {
	axis := mgl32.Vec3{0, 1, 0}
	if coneDeg <= 0 {
		return rot.Rotate(axis).Normalize()
	}
	thetaMax := float32(math.Pi) * (coneDeg / 180)
	u, v := rng.Float32(), rng.Float32()
	cosTheta := lerp(float32(math.Cos(float64(thetaMax))), 1, u)
	sinTheta := float32(math.Sqrt(float64(1 - cosTheta*cosTheta)))
	phi := 2 * float32(math.Pi) * v
	local := mgl32.Vec3{
		float32(math.Cos(float64(phi))) * sinTheta,
		cosTheta,
		float32(math.Sin(float64(phi))) * sinTheta,
	}
	return rot.Rotate(local).Normalize()
}

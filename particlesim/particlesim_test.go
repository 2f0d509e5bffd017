package particlesim

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

func spawnEmitter(app *kestrel.App, em kestrel.ParticleEmitter) kestrel.EntityId {
	return app.World().Spawn(
		kestrel.Transform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
		kestrel.WorldTransform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
		em,
	)
}

func TestSimulator_SpawnsUpToSpawnRatePerTick(t *testing.T) {
	sim := NewSimulator(Config{MaxSpawnPerFrame: 1000, MaxTotal: 1000, MaxBacklog: 1000})
	app := kestrel.NewApp().UseModules(moduleFunc(sim.Install)).Build()
	spawnEmitter(app, kestrel.ParticleEmitter{
		Enabled: true, MaxParticles: 100, SpawnRate: 60,
		LifetimeRange: [2]float32{1, 1}, StartSpeedRange: [2]float32{1, 1}, StartSizeRange: [2]float32{1, 1},
	})

	app.Time().Dt = kestrel.FixedStep // one 1/60 s tick
	sim.run(app)

	stats := sim.Stats()
	if stats.EmitterCount != 1 {
		t.Fatalf("expected 1 emitter observed, got %d", stats.EmitterCount)
	}
	if stats.ActiveCount == 0 {
		t.Fatal("expected at least one particle to have spawned")
	}
}

func TestSimulator_RespectsMaxSpawnPerFrame(t *testing.T) {
	sim := NewSimulator(Config{MaxSpawnPerFrame: 2, MaxTotal: 1000, MaxBacklog: 1000})
	app := kestrel.NewApp().UseModules(moduleFunc(sim.Install)).Build()
	spawnEmitter(app, kestrel.ParticleEmitter{
		Enabled: true, MaxParticles: 1000, SpawnRate: 100000,
		LifetimeRange: [2]float32{10, 10}, StartSpeedRange: [2]float32{1, 1}, StartSizeRange: [2]float32{1, 1},
	})

	app.Time().Dt = kestrel.FixedStep // one 1/60 s tick
	sim.run(app)

	if sim.Stats().SpawnedThisTick > 2 {
		t.Fatalf("expected at most 2 spawns this tick, got %d", sim.Stats().SpawnedThisTick)
	}
	if sim.Stats().DroppedSpawns == 0 {
		t.Fatal("expected the excess spawn request to be recorded as dropped")
	}
}

func TestSimulator_ParticleDiesAfterItsLifetime(t *testing.T) {
	sim := NewSimulator(DefaultConfig())
	app := kestrel.NewApp().UseModules(moduleFunc(sim.Install)).Build()
	spawnEmitter(app, kestrel.ParticleEmitter{
		Enabled: true, MaxParticles: 10, SpawnRate: 1000,
		LifetimeRange: [2]float32{0.01, 0.01}, StartSpeedRange: [2]float32{0, 0}, StartSizeRange: [2]float32{1, 1},
	})

	for i := 0; i < 10; i++ {
		app.Time().Dt = kestrel.FixedStep // one 1/60 s tick
		sim.run(app)
	}

	if sim.Stats().ActiveCount != 0 {
		t.Fatalf("expected every short-lived particle to have died, got %d still active", sim.Stats().ActiveCount)
	}
}

func TestSimulator_DisabledEmitterNeverSpawns(t *testing.T) {
	sim := NewSimulator(DefaultConfig())
	app := kestrel.NewApp().UseModules(moduleFunc(sim.Install)).Build()
	spawnEmitter(app, kestrel.ParticleEmitter{Enabled: false, MaxParticles: 10, SpawnRate: 1000})

	app.StepFrame()

	if sim.Stats().ActiveCount != 0 {
		t.Fatal("expected a disabled emitter to spawn nothing")
	}
}

func TestSimulator_DespawnedEmitterPoolIsReclaimed(t *testing.T) {
	sim := NewSimulator(DefaultConfig())
	app := kestrel.NewApp().UseModules(moduleFunc(sim.Install)).Build()
	id := spawnEmitter(app, kestrel.ParticleEmitter{Enabled: true, MaxParticles: 10, SpawnRate: 1000, LifetimeRange: [2]float32{5, 5}, StartSpeedRange: [2]float32{0, 0}, StartSizeRange: [2]float32{1, 1}})
	app.StepFrame()

	app.World().Despawn(id)
	if _, ok := sim.pools[id]; ok {
		t.Fatal("expected the emitter's pool to be removed on despawn")
	}
}

type moduleFunc func(app *kestrel.App, cmd *kestrel.Commands)

func (f moduleFunc) Install(app *kestrel.App, cmd *kestrel.Commands) { f(app, cmd) }

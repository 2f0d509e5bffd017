package frameassembler

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween"

	"github.com/kestrel-engine/kestrel"
	"github.com/kestrel-engine/kestrel/clipanim"
)

// Config tunes the parts of frame assembly not driven by the scene's own
// Camera/Light components.
type Config struct {
	ViewportWidth, ViewportHeight float32
	Shadow                       ShadowConfig
	ClusterDims                  ClusterDims
	LightCap                     int
}

func DefaultConfig() Config {
	return Config{
		ViewportWidth:  1280,
		ViewportHeight: 720,
		Shadow:         ShadowConfig{CascadeCount: 4, Resolution: 2048, SplitLambda: 0.5, PCFRadius: 2},
		ClusterDims:    DefaultClusterDims(),
		LightCap:       256,
	}
}

// Stats is this frame's telemetry, published to package telemetry
// consumers by cmd/kestrel.
type Stats struct {
	VisibleSprites int
	DroppedSprites int
	WarnedSprites  int
	MeshDraws      int
	SkinnedDraws   int
	LightsTotal    int
	LightsCulled   int
}

// Assembler runs the Frame Assembler (spec §4.6) in the FrameAssembly
// variable stage. Backend may be nil (headless/test mode): culling,
// guardrail enforcement, batching, and light clustering still run and
// populate Stats; only the GPU upload calls are skipped.
type Assembler struct {
	cfg      Config
	regions  RegionResolver
	palettes *clipanim.PaletteStore
	backend  Backend
	recovery *SurfaceRecovery
	timing   *TimingHistory
	stats    Stats

	// zoomTweens/zoomCams back the Clamp guardrail's eased zoom-out, keyed
	// by camera entity so each camera clamps independently.
	zoomTweens map[kestrel.EntityId]*gween.Tween
	zoomCams   map[kestrel.EntityId]*kestrel.Camera
}

func NewAssembler(cfg Config, regions RegionResolver, palettes *clipanim.PaletteStore, backend Backend) *Assembler {
	a := &Assembler{cfg: cfg, regions: regions, palettes: palettes, backend: backend, timing: NewTimingHistory(120)}
	if backend != nil {
		a.recovery = NewSurfaceRecovery(backend, int(cfg.ViewportWidth), int(cfg.ViewportHeight))
	}
	return a
}

func (a *Assembler) Install(app *kestrel.App, cmd *kestrel.Commands) {
	app.UseSystem(kestrel.System(a.run).InStage(kestrel.FrameAssembly))
}

func (a *Assembler) Stats() Stats { return a.stats }

func (a *Assembler) TimingHistory() *TimingHistory { return a.timing }

func (a *Assembler) run(app *kestrel.App) {
	world := app.World()
	logger := app.Logger()

	camId, cam := activeCamera(world)
	if cam == nil {
		return
	}

	dt := float32(app.Time().Dt)
	a.advanceZoomClamps(dt)

	visible := CullSprites(world, cam, a.cfg.ViewportWidth, a.cfg.ViewportHeight)
	var kept []VisibleSprite
	dropped, warned := 0, 0
	clampTarget := cam.Zoom
	clamping := false
	for _, s := range visible {
		outcome, desiredZoom := ApplyGuardrail(cam, s, logger)
		switch outcome {
		case GuardrailDropped:
			dropped++
		case GuardrailWarned:
			warned++
			kept = append(kept, s)
			if cam.Guardrail == kestrel.GuardrailClamp && (!clamping || desiredZoom < clampTarget) {
				clampTarget = desiredZoom
				clamping = true
			}
		default:
			kept = append(kept, s)
		}
	}
	if clamping {
		a.requestZoomClamp(camId, cam, clampTarget)
	}
	batches := BuildSpriteBatches(a.regions, kept, logger)

	draws := GatherMeshes(world)
	skinned := 0
	for _, d := range draws {
		if d.PaletteId >= 0 {
			skinned++
		}
	}

	lights := gatherPointLights(world, cam)
	_, budgetEvent := ClusterLights(lights, a.cfg.ClusterDims, cam.Near, cam.Far, a.cfg.LightCap)
	if budgetEvent != nil {
		app.EventBus().Publish(kestrel.Event{Kind: "frameassembler.lighting_budget", Payload: *budgetEvent})
	}

	a.stats = Stats{
		VisibleSprites: len(kept),
		DroppedSprites: dropped,
		WarnedSprites:  warned,
		MeshDraws:      len(draws),
		SkinnedDraws:   skinned,
		LightsTotal:    len(lights),
	}
	if budgetEvent != nil {
		a.stats.LightsCulled = budgetEvent.Culled
	}

	if a.backend == nil {
		return
	}

	target := a.recovery.AcquireFrame()
	if target == nil {
		return
	}
	defer target.Release()

	for _, b := range batches {
		a.backend.UploadSpriteBatch(b)
	}
	UploadSkinPalettes(a.backend, a.palettes, draws)
	target.Present()
}

func activeCamera(world *kestrel.World) (kestrel.EntityId, *kestrel.Camera) {
	var activeId kestrel.EntityId
	var active *kestrel.Camera
	kestrel.Query1Of[kestrel.Camera](world).Each(func(id kestrel.EntityId, c *kestrel.Camera) bool {
		if c.Active {
			activeId = id
			active = c
			return false
		}
		return true
	})
	return activeId, active
}

func gatherPointLights(world *kestrel.World, cam *kestrel.Camera) []PointLightView {
	view := mgl32.LookAtV(cam.Position, cam.Target, cam.Up)
	var out []PointLightView
	kestrel.Query2Of[kestrel.Light, kestrel.WorldTransform](world).Each(func(id kestrel.EntityId, l *kestrel.Light, wt *kestrel.WorldTransform) bool {
		if l.Type != kestrel.LightPoint {
			return true
		}
		viewPos4 := view.Mul4x1(mgl32.Vec4{wt.Translation.X(), wt.Translation.Y(), wt.Translation.Z(), 1})
		out = append(out, PointLightView{
			Entity:    id,
			// LookAt views down -Z; negate so depth in front is positive.
			ViewPos:   mgl32.Vec3{viewPos4[0], viewPos4[1], -viewPos4[2]},
			Range:     l.Range,
			Intensity: l.Intensity,
			Color:     l.Color,
		})
		return true
	})
	return out
}

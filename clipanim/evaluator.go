package clipanim

import (
	"github.com/kestrel-engine/kestrel"
	"github.com/kestrel-engine/kestrel/asset"
)

// Evaluator ties clip sampling and palette composition into the App
// schedule: skeletal clips drive once per fixed tick (SkeletalFixed, ahead
// of the mesh pass in FrameAssembly), non-skeletal transform clips drive
// once per variable frame (ClipVariable), matching spriteanim's
// fixed/variable split for the same reason — the majority of transform
// clips (camera rigs, UI widgets, props) read back their result the same
// frame they're sampled, so they don't need fixed-tick determinism, while
// skinned meshes must be in lockstep with the physics-driven pose sync
// that precedes them in the fixed phase.
type Evaluator struct {
	assets   *asset.Server
	Palettes *PaletteStore

	instances map[kestrel.EntityId]*Instance
}

func NewEvaluator(assets *asset.Server) *Evaluator {
	return &Evaluator{
		assets:    assets,
		Palettes:  NewPaletteStore(),
		instances: make(map[kestrel.EntityId]*Instance),
	}
}

func (e *Evaluator) Install(app *kestrel.App, cmd *kestrel.Commands) {
	app.UseSystem(kestrel.System(e.driveSkeletal).InStage(kestrel.SkeletalFixed))
	app.UseSystem(kestrel.System(e.driveTransformClips).InStage(kestrel.ClipVariable))
}

func (e *Evaluator) instanceFor(entity kestrel.EntityId, clipKey asset.Key, loopMode int) *Instance {
	in, ok := e.instances[entity]
	if !ok {
		in = NewInstance(clipKey, loopMode)
		e.instances[entity] = in
		return in
	}
	if in.ClipKey != clipKey {
		in = NewInstance(clipKey, loopMode)
		e.instances[entity] = in
	}
	return in
}

// driveSkeletal evaluates every SkeletonInstance against its bound clip and
// skeleton, composing a fresh joint palette each fixed tick (spec §4.4
// "Skeletal" + §4.6 "uploaded once per skin per frame").
func (e *Evaluator) driveSkeletal(app *kestrel.App) {
	world := app.World()
	kestrel.Query2Of[kestrel.SkeletonInstance, kestrel.BoneTransforms](world).Each(func(id kestrel.EntityId, inst *kestrel.SkeletonInstance, bones *kestrel.BoneTransforms) bool {
		clipHandle, err := e.assets.Load(asset.KindClip, asset.Key(inst.ClipKey))
		if err != nil {
			return true
		}
		defer e.assets.Release(clipHandle)
		clipValue, _, ok := e.assets.Value(clipHandle)
		if !ok {
			return true
		}
		clip := clipValue.(*asset.Clip)

		skelHandle, err := e.assets.Load(asset.KindSkeleton, asset.Key(inst.SkeletonKey))
		if err != nil {
			return true
		}
		defer e.assets.Release(skelHandle)
		skelValue, _, ok := e.assets.Value(skelHandle)
		if !ok {
			return true
		}
		skeleton := skelValue.(*asset.Skeleton)

		in := e.instanceFor(id, asset.Key(inst.ClipKey), int(inst.LoopMode))
		sampled := in.Advance(clip, kestrel.FixedStep)
		inst.Time = in.Time

		if bones.PaletteId == 0 {
			bones.PaletteId = e.Palettes.Allocate()
			inst.PaletteId = bones.PaletteId
		}
		e.Palettes.Set(bones.PaletteId, ComposePalette(skeleton, sampled))
		return true
	})
}

// driveTransformClips evaluates non-skeletal transform clips bound to an
// entity's own Transform (props, camera rigs, UI widgets) once per
// variable frame, writing translation/rotation/scale channels straight
// back into Transform.
func (e *Evaluator) driveTransformClips(app *kestrel.App) {
	world := app.World()
	dt := app.Time().Dt
	kestrel.Query2Of[kestrel.TransformClip, kestrel.Transform](world).Each(func(id kestrel.EntityId, tc *kestrel.TransformClip, local *kestrel.Transform) bool {
		clipHandle, err := e.assets.Load(asset.KindClip, asset.Key(tc.ClipKey))
		if err != nil {
			return true
		}
		defer e.assets.Release(clipHandle)
		clipValue, _, ok := e.assets.Value(clipHandle)
		if !ok {
			return true
		}
		clip := clipValue.(*asset.Clip)

		in := e.instanceFor(id, asset.Key(tc.ClipKey), int(tc.LoopMode))
		sampled := in.Advance(clip, dt)
		tc.Time = in.Time

		if v, ok := sampled["translation"]; ok {
			local.Translation = vec3(v)
		}
		if v, ok := sampled["rotation"]; ok {
			local.Rotation = quat(v)
		}
		if v, ok := sampled["scale"]; ok {
			local.Scale = vec3(v)
		}
		return true
	})
}

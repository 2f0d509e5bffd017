package kestrel

import "github.com/go-gl/mathgl/mgl32"

// Transform is an entity's local translation/rotation/scale, relative to
// its Parent (or to world space if it has none).
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

// WorldTransform is derived by World.PropagateWorldTransforms: child =
// parent.WorldTransform ∘ child.Transform.
type WorldTransform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

// Parent points at an entity's parent in the hierarchy forest.
type Parent struct {
	Entity EntityId
}

// Children is the ordered list of an entity's direct children. Maintained
// exclusively by World.SetParent; do not mutate directly.
type Children struct {
	Entities []EntityId
}

func composeTransform(parent WorldTransform, local Transform) WorldTransform {
	scaled := mgl32.Vec3{
		local.Translation.X() * parent.Scale.X(),
		local.Translation.Y() * parent.Scale.Y(),
		local.Translation.Z() * parent.Scale.Z(),
	}
	return WorldTransform{
		Translation: parent.Translation.Add(parent.Rotation.Rotate(scaled)),
		Rotation:    parent.Rotation.Mul(local.Rotation).Normalize(),
		Scale: mgl32.Vec3{
			parent.Scale.X() * local.Scale.X(),
			parent.Scale.Y() * local.Scale.Y(),
			parent.Scale.Z() * local.Scale.Z(),
		},
	}
}

// IdentityTransform is the neutral local transform (no offset, no rotation,
// unit scale): a convenient zero value for root entities.
func IdentityTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

// Sprite is the rendered appearance of a 2D entity. RegionId names a key
// into its atlas's region table (spec §3 "Sprite {atlas key, region id,
// tint}"); the frame assembler resolves it to UV rect at batch build time.
type Sprite struct {
	AtlasKey string
	RegionId string
	Tint     [4]float32
}

// LoopMode is the sum type over timeline playback modes (spec §3).
type LoopMode int

const (
	LoopForever LoopMode = iota
	PingPong
	OnceHold
	OnceStop
)

// animFlags is the SpriteAnimation bitfield: direction, paused,
// fast-eligible, events-present. Mirrored (not aliased) in package
// spriteanim's SoA flags column.
type animFlags uint8

const (
	animFlagReverse       animFlags = 1 << 0
	animFlagPaused        animFlags = 1 << 1
	animFlagFastEligible  animFlags = 1 << 2
	animFlagEventsPresent animFlags = 1 << 3
	animFlagErrored       animFlags = 1 << 4
	animFlagVariableRate  animFlags = 1 << 5
)

// SpriteAnimation is the cold, authoritative per-entity animation state
// (spec §3). The hot per-frame math lives in package spriteanim's SoA
// buckets; this component is written back only when the frame-apply queue
// drains, and is what scene save/load and the editor observe.
type SpriteAnimation struct {
	TimelineKey string
	FrameCursor int
	Accumulator float64
	Flags       animFlags
	LoopMode    LoopMode
}

func (a *SpriteAnimation) Direction() int {
	if a.Flags&animFlagReverse != 0 {
		return -1
	}
	return 1
}

func (a *SpriteAnimation) SetReverse(reverse bool) {
	if reverse {
		a.Flags |= animFlagReverse
	} else {
		a.Flags &^= animFlagReverse
	}
}

func (a *SpriteAnimation) Paused() bool      { return a.Flags&animFlagPaused != 0 }
func (a *SpriteAnimation) Errored() bool     { return a.Flags&animFlagErrored != 0 }
func (a *SpriteAnimation) VariableRate() bool { return a.Flags&animFlagVariableRate != 0 }

// FastSpriteAnimator is a zero-size marker present iff the animation is
// uniform-duration, non-ping-pong, event-free (spec §3, §4.3). Maintained
// by a dedicated marker-maintenance system, never by the drivers.
type FastSpriteAnimator struct{}

// Velocity drives simple kinematic motion outside the full physics step.
type Velocity struct {
	Linear  mgl32.Vec3
	Angular mgl32.Vec3
}

// ColliderShape is the sum type over supported collider geometries.
type ColliderShape int

const (
	ColliderBox ColliderShape = iota
	ColliderSphere
)

// Collider is a handle into physics narrowphase state.
type Collider struct {
	Shape       ColliderShape
	HalfExtents mgl32.Vec3 // box
	Radius      float32    // sphere
	Friction    float32
	Restitution float32
	IsStatic    bool
}

// RigidBody carries integration state for the fixed-tick physics step.
type RigidBody struct {
	Mass         float32
	GravityScale float32
	LinearVel    mgl32.Vec3
	AngularVel   mgl32.Vec3
	Sleeping     bool
	SleepTimer   float32
}

// MeshRef points at a mesh+material asset pair for the frame assembler's
// mesh pass.
type MeshRef struct {
	MeshKey     string
	MaterialKey string
	CastsShadow bool
}

// SkinMesh marks a MeshRef as skinned, with the joint count and the
// skeleton asset it is bound to.
type SkinMesh struct {
	JointCount int
	SkeletonId string
}

// SkeletonInstance is the runtime playback state of a skeletal clip on one
// entity (see package clipanim for the evaluator).
type SkeletonInstance struct {
	SkeletonKey string
	ClipKey     string
	Time        float64
	LoopMode    LoopMode
	PaletteId   int
}

// BoneTransforms names the joint-palette buffer an evaluated skeleton
// writes into; the frame assembler uploads it once per skin per frame.
type BoneTransforms struct {
	PaletteId int
}

// TransformClip binds a non-skeletal transform clip directly to an
// entity's Transform (camera rigs, props, UI widgets) — the variable-phase
// counterpart to SkeletonInstance (see package clipanim).
type TransformClip struct {
	ClipKey  string
	Time     float64
	LoopMode LoopMode
}

// ParticleEmitter configures a CPU-simulated particle emitter. Per-particle
// state lives in a parallel pool keyed by entity, not as ECS rows, to avoid
// archetype moves on every spawn/death.
type ParticleEmitter struct {
	Enabled          bool
	MaxParticles     int
	SpawnRate        float32
	LifetimeRange    [2]float32
	StartSpeedRange  [2]float32
	StartSizeRange   [2]float32
	StartColorMin    [4]float32
	StartColorMax    [4]float32
	Gravity          float32
	Drag             float32
	ConeAngleDegrees float32
}

// GuardrailPolicy is the editor's sprite pixel-footprint enforcement mode
// (spec §4.6 step 2).
type GuardrailPolicy int

const (
	GuardrailOff GuardrailPolicy = iota
	GuardrailWarn
	GuardrailClamp
	GuardrailStrict
)

// Camera is the viewpoint the Frame Assembler culls and builds batches
// against. ZoomMin/ZoomMax bound the Clamp guardrail policy's zoom-out
// response; GuardrailPixelThreshold is the minimum on-screen footprint in
// pixels before Warn/Clamp/Strict engage.
type Camera struct {
	Position                mgl32.Vec3
	Target                  mgl32.Vec3
	Up                      mgl32.Vec3
	Fov                     float32
	Aspect                  float32
	Near                    float32
	Far                     float32
	Zoom                    float32
	ZoomMin                 float32
	ZoomMax                 float32
	Guardrail               GuardrailPolicy
	GuardrailPixelThreshold float32
	Active                  bool
}

// LightType is the sum type over supported light kinds (spec §4.6 step 6
// clusters point lights; directional feeds the mesh pass's single shadowed
// sun).
type LightType int

const (
	LightDirectional LightType = iota
	LightPoint
)

// Light is a scene light. Range only applies to LightPoint.
type Light struct {
	Type        LightType
	Color       [3]float32
	Intensity   float32
	Range       float32
	CastsShadow bool
}

// ScriptBehaviour binds an entity to a compiled script. InstanceId is 0
// until the script host observes it for the first time, at which point it
// allocates an id and the row in the separate instance table.
type ScriptBehaviour struct {
	ScriptPath string
	InstanceId uint64
}

// Package scene implements Kestrel's scene file format (spec §6 "Scene
// files"): JSON and binary KSCN serialization of the entity hierarchy,
// components, asset dependencies, scene lighting, camera bookmarks, and
// follow target, following the flat EntityData-with-optional-fields
// approach the teacher's preset save/load uses (mod_presets.go), widened to
// cover every component Kestrel defines instead of just transform/voxel.
package scene

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

// AssetDependency records one asset key a scene references, alongside the
// source file it was authored from, so a scene can be validated and
// re-exported without consulting a live asset.Server (spec §6 "asset
// dependencies (atlas/mesh/environment/clip/skeleton keys with source
// paths)").
type AssetDependency struct {
	Kind       string `json:"kind"`
	Key        string `json:"key"`
	SourcePath string `json:"source_path"`
}

// LightData is a scene-level light, independent of the ECS Light component
// so a scene can describe lighting before any entity exists to carry it.
type LightData struct {
	Type        string     `json:"type"` // "directional" | "point"
	Color       [3]float32 `json:"color"`
	Intensity   float32    `json:"intensity"`
	Range       float32    `json:"range,omitempty"`
	CastsShadow bool       `json:"casts_shadow"`
	Position    mgl32.Vec3 `json:"position,omitempty"`
	Direction   mgl32.Vec3 `json:"direction,omitempty"`
}

// ShadowData mirrors the config file's shadow section, as a per-scene
// override (spec §6).
type ShadowData struct {
	CascadeCount int     `json:"cascade_count"`
	Resolution   int     `json:"resolution"`
	SplitLambda  float32 `json:"split_lambda"`
	PCFRadius    int     `json:"pcf_radius"`
}

// CameraBookmark is a named, saved camera pose an editor or script can jump
// to (spec §6 "camera bookmarks").
type CameraBookmark struct {
	Name     string     `json:"name"`
	Position mgl32.Vec3 `json:"position"`
	Target   mgl32.Vec3 `json:"target"`
	Fov      float32    `json:"fov"`
	Zoom     float32    `json:"zoom"`
}

// EntityData is one entity's full serialized state: a fixed, explicit set
// of optional component fields, following mod_presets.go's EntityData
// pattern. Id is a scene-local index (not a live EntityId), remapped on
// load exactly like the teacher's LoadPreset remaps IDs via idMap.
type EntityData struct {
	Id       int  `json:"id"`
	ParentId *int `json:"parent_id,omitempty"`

	Transform *TransformData `json:"transform,omitempty"`

	Sprite          *kestrel.Sprite          `json:"sprite,omitempty"`
	SpriteAnimation *kestrel.SpriteAnimation `json:"sprite_animation,omitempty"`
	Velocity        *kestrel.Velocity        `json:"velocity,omitempty"`
	Collider        *kestrel.Collider        `json:"collider,omitempty"`
	RigidBody       *kestrel.RigidBody       `json:"rigid_body,omitempty"`
	MeshRef         *kestrel.MeshRef         `json:"mesh_ref,omitempty"`
	SkinMesh        *kestrel.SkinMesh        `json:"skin_mesh,omitempty"`
	Skeleton        *kestrel.SkeletonInstance `json:"skeleton,omitempty"`
	TransformClip   *kestrel.TransformClip   `json:"transform_clip,omitempty"`
	Particles       *kestrel.ParticleEmitter `json:"particles,omitempty"`
	Camera          *kestrel.Camera          `json:"camera,omitempty"`
	Light           *kestrel.Light           `json:"light,omitempty"`
	Script          *kestrel.ScriptBehaviour `json:"script,omitempty"`
}

// TransformData mirrors kestrel.Transform; kept distinct so scene files
// don't couple to the component's field layout changing shape silently.
type TransformData struct {
	Translation mgl32.Vec3 `json:"translation"`
	Rotation    mgl32.Quat `json:"rotation"`
	Scale       mgl32.Vec3 `json:"scale"`
}

// File is the full scene document (spec §6).
type File struct {
	FormatVersion int               `json:"format_version"`
	Entities      []EntityData      `json:"entities"`
	Assets        []AssetDependency `json:"assets,omitempty"`
	Lights        []LightData       `json:"lights,omitempty"`
	Shadow        *ShadowData       `json:"shadow,omitempty"`
	Bookmarks     []CameraBookmark  `json:"bookmarks,omitempty"`
	FollowTarget  *int              `json:"follow_target,omitempty"`
}

const CurrentFormatVersion = 1

// Capture walks world and builds a File, skipping any entity carrying a
// component in the skip set (matching mod_presets.go's editor-gizmo/UI
// exclusion, generalized to a caller-supplied skip list).
func Capture(world *kestrel.World, skip func(components []any) bool) *File {
	f := &File{FormatVersion: CurrentFormatVersion}
	idOf := make(map[kestrel.EntityId]int)
	nextId := 0

	kestrel.Query1Of[kestrel.Transform](world).Each(func(id kestrel.EntityId, _ *kestrel.Transform) bool {
		all := world.GetAllComponents(id)
		if skip != nil && skip(all) {
			return true
		}
		idOf[id] = nextId
		nextId++
		return true
	})

	ordered := make([]kestrel.EntityId, nextId)
	for entId, sceneId := range idOf {
		ordered[sceneId] = entId
	}

	for sceneId, entId := range ordered {
		all := world.GetAllComponents(entId)
		data := EntityData{Id: sceneId}
		for _, c := range all {
			switch v := c.(type) {
			case kestrel.Transform:
				data.Transform = &TransformData{Translation: v.Translation, Rotation: v.Rotation, Scale: v.Scale}
			case kestrel.Parent:
				if pid, ok := idOf[v.Entity]; ok {
					data.ParentId = &pid
				}
			case kestrel.Sprite:
				vv := v
				data.Sprite = &vv
			case kestrel.SpriteAnimation:
				vv := v
				data.SpriteAnimation = &vv
			case kestrel.Velocity:
				vv := v
				data.Velocity = &vv
			case kestrel.Collider:
				vv := v
				data.Collider = &vv
			case kestrel.RigidBody:
				vv := v
				data.RigidBody = &vv
			case kestrel.MeshRef:
				vv := v
				data.MeshRef = &vv
			case kestrel.SkinMesh:
				vv := v
				data.SkinMesh = &vv
			case kestrel.SkeletonInstance:
				vv := v
				data.Skeleton = &vv
			case kestrel.TransformClip:
				vv := v
				data.TransformClip = &vv
			case kestrel.ParticleEmitter:
				vv := v
				data.Particles = &vv
			case kestrel.Camera:
				vv := v
				data.Camera = &vv
			case kestrel.Light:
				vv := v
				data.Light = &vv
			case kestrel.ScriptBehaviour:
				vv := v
				vv.InstanceId = 0 // a freshly loaded scene has no live script instance yet
				data.Script = &vv
			}
		}
		f.Entities = append(f.Entities, data)
	}
	return f
}

// Spawn instantiates every entity in f into world via cmd, two passes like
// mod_presets.go's LoadPreset: spawn + remap ids first, then wire Parent
// relationships once every handle exists. Returns the new handles indexed
// by the scene-local EntityData.Id.
func Spawn(f *File, world *kestrel.World, cmd *kestrel.Commands) map[int]kestrel.EntityId {
	idMap := make(map[int]kestrel.EntityId, len(f.Entities))

	for _, data := range f.Entities {
		var components []any
		if data.Transform != nil {
			components = append(components, kestrel.Transform{
				Translation: data.Transform.Translation,
				Rotation:    data.Transform.Rotation,
				Scale:       data.Transform.Scale,
			})
		} else {
			components = append(components, kestrel.IdentityTransform())
		}
		components = append(components, kestrel.WorldTransform{})

		if data.Sprite != nil {
			components = append(components, *data.Sprite)
		}
		if data.SpriteAnimation != nil {
			components = append(components, *data.SpriteAnimation)
		}
		if data.Velocity != nil {
			components = append(components, *data.Velocity)
		}
		if data.Collider != nil {
			components = append(components, *data.Collider)
		}
		if data.RigidBody != nil {
			components = append(components, *data.RigidBody)
		}
		if data.MeshRef != nil {
			components = append(components, *data.MeshRef)
		}
		if data.SkinMesh != nil {
			components = append(components, *data.SkinMesh)
		}
		if data.Skeleton != nil {
			components = append(components, *data.Skeleton)
		}
		if data.TransformClip != nil {
			components = append(components, *data.TransformClip)
		}
		if data.Particles != nil {
			components = append(components, *data.Particles)
		}
		if data.Camera != nil {
			components = append(components, *data.Camera)
		}
		if data.Light != nil {
			components = append(components, *data.Light)
		}
		if data.Script != nil {
			components = append(components, *data.Script)
		}

		newId := world.Spawn(components...)
		idMap[data.Id] = newId
	}

	for _, data := range f.Entities {
		if data.ParentId == nil {
			continue
		}
		child, okC := idMap[data.Id]
		parent, okP := idMap[*data.ParentId]
		if okC && okP {
			cmd.SetParent(child, parent)
		}
	}

	return idMap
}

// Validate reports every dangling reference in f: a ParentId or
// FollowTarget pointing at no Id in Entities, or an asset dependency that
// looks like a key but is declared with no source path (spec §6 "Scenes
// round-trip without diffs... " implies a structural check exists; spec
// C.1 names this explicitly as a supplemented feature).
func Validate(f *File) []error {
	known := make(map[int]bool, len(f.Entities))
	for _, e := range f.Entities {
		known[e.Id] = true
	}

	var errs []error
	for _, e := range f.Entities {
		if e.ParentId != nil && !known[*e.ParentId] {
			errs = append(errs, fmt.Errorf("entity %d: dangling parent_id %d", e.Id, *e.ParentId))
		}
	}
	if f.FollowTarget != nil && !known[*f.FollowTarget] {
		errs = append(errs, fmt.Errorf("dangling follow_target %d", *f.FollowTarget))
	}
	for _, a := range f.Assets {
		if a.Key == "" {
			errs = append(errs, fmt.Errorf("asset dependency of kind %q declared with an empty key", a.Kind))
			continue
		}
		if a.SourcePath == "" {
			errs = append(errs, fmt.Errorf("asset %q (%s): missing source_path", a.Key, a.Kind))
		}
	}
	return errs
}

// SaveJSON marshals f as indented JSON, matching mod_presets.go's
// json.MarshalIndent convention.
func SaveJSON(f *File) ([]byte, error) {
	return json.MarshalIndent(f, "", "  ")
}

// LoadJSON unmarshals a JSON scene document.
func LoadJSON(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("scene: invalid JSON: %w", err)
	}
	return &f, nil
}

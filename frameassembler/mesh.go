package frameassembler

import (
	"github.com/kestrel-engine/kestrel"
	"github.com/kestrel-engine/kestrel/clipanim"
)

// MeshDraw is one opaque mesh submitted to the PBR pass (spec §4.6 step 5
// "render opaque meshes with PBR").
type MeshDraw struct {
	Entity      kestrel.EntityId
	MeshKey     string
	MaterialKey string
	CastsShadow bool
	World       kestrel.WorldTransform
	PaletteId   int // -1 when not skinned
}

// GatherMeshes queries every (MeshRef, WorldTransform) entity, attaching
// its joint palette id when present (spec §4.6 step 7 "Skinned meshes use
// the joint palette from 4.4").
func GatherMeshes(world *kestrel.World) []MeshDraw {
	var draws []MeshDraw
	kestrel.Query2Of[kestrel.MeshRef, kestrel.WorldTransform](world).Each(func(id kestrel.EntityId, mr *kestrel.MeshRef, wt *kestrel.WorldTransform) bool {
		draws = append(draws, MeshDraw{
			Entity:      id,
			MeshKey:     mr.MeshKey,
			MaterialKey: mr.MaterialKey,
			CastsShadow: mr.CastsShadow,
			World:       *wt,
			PaletteId:   -1,
		})
		return true
	})

	if len(draws) == 0 {
		return draws
	}
	skinned := make(map[kestrel.EntityId]int)
	kestrel.Query1Of[kestrel.BoneTransforms](world).Each(func(id kestrel.EntityId, bt *kestrel.BoneTransforms) bool {
		skinned[id] = bt.PaletteId
		return true
	})
	for i := range draws {
		if paletteId, ok := skinned[draws[i].Entity]; ok {
			draws[i].PaletteId = paletteId
		}
	}
	return draws
}

// UploadSkinPalettes uploads every distinct, still-live palette referenced
// by draws exactly once per frame (spec §4.6 step 7 "palette uploaded once
// per skin per frame"), flattening each joint's Mat4 into the backend's
// expected float32 stream.
func UploadSkinPalettes(backend Backend, palettes *clipanim.PaletteStore, draws []MeshDraw) {
	uploaded := make(map[int]bool)
	for _, d := range draws {
		if d.PaletteId < 0 || uploaded[d.PaletteId] {
			continue
		}
		uploaded[d.PaletteId] = true
		mats, ok := palettes.Get(d.PaletteId)
		if !ok {
			continue
		}
		flat := make([]float32, 0, len(mats)*16)
		for _, m := range mats {
			flat = append(flat, m[:]...)
		}
		backend.UploadSkinPalette(d.PaletteId, flat)
	}
}

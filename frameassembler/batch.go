package frameassembler

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

// SpriteInstance is one instanced-draw element: the model matrix rows,
// UV rect, and tint the sprite batch shader expects per instance (spec
// §4.6 step 3).
type SpriteInstance struct {
	ModelRow0 mgl32.Vec4
	ModelRow1 mgl32.Vec4
	ModelRow2 mgl32.Vec4
	UVRect    [4]float32 // x, y, w, h in normalized atlas space
	Tint      [4]float32
}

// SpriteBatch groups same-atlas sprites into a single instanced draw
// (spec §4.6 step 3 "Group by atlas + material; build instance buffers").
// Kestrel's sprites have no separate material (they share the built-in
// unlit sprite shader), so the atlas key alone is the batch key.
type SpriteBatch struct {
	AtlasKey  string
	Instances []SpriteInstance
}

// BuildSpriteBatches groups visible sprites by atlas and resolves each to
// an instance. Sprites whose atlas has no registered region are dropped
// rather than passed through with a zero UV rect; a warning is logged for
// every dropped sprite on every call, with no throttling or log-once
// suppression.
func BuildSpriteBatches(assets RegionResolver, visible []VisibleSprite, logger kestrel.Logger) []SpriteBatch {
	byAtlas := make(map[string][]SpriteInstance)
	var order []string

	for _, s := range visible {
		rect, ok := assets.ResolveRegion(s.AtlasKey, s.RegionId)
		if !ok {
			logger.Warnf("frame assembler: missing atlas region %s/%s, dropping sprite", s.AtlasKey, s.RegionId)
			continue
		}
		if _, seen := byAtlas[s.AtlasKey]; !seen {
			order = append(order, s.AtlasKey)
		}
		byAtlas[s.AtlasKey] = append(byAtlas[s.AtlasKey], instanceOf(s, rect))
	}

	sort.Strings(order)
	batches := make([]SpriteBatch, 0, len(order))
	for _, key := range order {
		batches = append(batches, SpriteBatch{AtlasKey: key, Instances: byAtlas[key]})
	}
	return batches
}

func instanceOf(s VisibleSprite, rect [4]float32) SpriteInstance {
	m := modelMatrix(s.World)
	return SpriteInstance{
		ModelRow0: mgl32.Vec4{m[0], m[4], m[8], m[12]},
		ModelRow1: mgl32.Vec4{m[1], m[5], m[9], m[13]},
		ModelRow2: mgl32.Vec4{m[2], m[6], m[10], m[14]},
		UVRect:    rect,
		Tint:      s.Tint,
	}
}

func modelMatrix(wt kestrel.WorldTransform) mgl32.Mat4 {
	t := mgl32.Translate3D(wt.Translation.X(), wt.Translation.Y(), wt.Translation.Z())
	r := wt.Rotation.Mat4()
	s := mgl32.Scale3D(wt.Scale.X(), wt.Scale.Y(), wt.Scale.Z())
	return t.Mul4(r).Mul4(s)
}

// RegionResolver is the asset-server seam the batcher needs: a region's
// normalized UV rect by atlas+region key. Satisfied by a thin adapter over
// asset.Server in cmd/kestrel; kept minimal here to avoid a frameassembler
// → asset import for what is otherwise a pure data lookup.
type RegionResolver interface {
	ResolveRegion(atlasKey, regionId string) (rect [4]float32, ok bool)
}

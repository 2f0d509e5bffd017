package frameassembler

import (
	"github.com/kestrel-engine/kestrel/asset"
)

// AssetRegionResolver adapts an asset.Server to RegionResolver, converting
// an AtlasRegion's pixel rect into the normalized UV rect the sprite
// shader expects.
type AssetRegionResolver struct {
	Assets *asset.Server
}

func (r AssetRegionResolver) ResolveRegion(atlasKey, regionId string) ([4]float32, bool) {
	h, err := r.Assets.Load(asset.KindAtlas, asset.Key(atlasKey))
	if err != nil {
		return [4]float32{}, false
	}
	v, _, ok2 := r.Assets.Value(h)
	if !ok2 {
		return [4]float32{}, false
	}
	atlas, isAtlas := v.(*asset.Atlas)
	if !isAtlas {
		return [4]float32{}, false
	}
	region, found := atlas.Regions[regionId]
	if !found {
		return [4]float32{}, false
	}
	bounds := atlas.Image.Bounds()
	w, h2 := float32(bounds.Dx()), float32(bounds.Dy())
	if w <= 0 || h2 <= 0 {
		return [4]float32{}, false
	}
	return [4]float32{
		float32(region.X) / w,
		float32(region.Y) / h2,
		float32(region.W) / w,
		float32(region.H) / h2,
	}, true
}

package frameassembler

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

type fakeRegions struct {
	rects map[string][4]float32
}

func (f fakeRegions) ResolveRegion(atlasKey, regionId string) ([4]float32, bool) {
	rect, ok := f.rects[atlasKey+"/"+regionId]
	return rect, ok
}

func identityWorld() kestrel.WorldTransform {
	return kestrel.WorldTransform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

func TestBuildSpriteBatches_GroupsByAtlas(t *testing.T) {
	resolver := fakeRegions{rects: map[string][4]float32{
		"a/r1": {0, 0, 0.5, 0.5},
		"a/r2": {0.5, 0, 0.5, 0.5},
		"b/r1": {0, 0, 1, 1},
	}}
	visible := []VisibleSprite{
		{AtlasKey: "a", RegionId: "r1", World: identityWorld()},
		{AtlasKey: "a", RegionId: "r2", World: identityWorld()},
		{AtlasKey: "b", RegionId: "r1", World: identityWorld()},
	}
	batches := BuildSpriteBatches(resolver, visible, kestrel.NewNopLogger())
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches (one per atlas), got %d", len(batches))
	}
	for _, b := range batches {
		if b.AtlasKey == "a" && len(b.Instances) != 2 {
			t.Fatalf("expected atlas a's batch to have 2 instances, got %d", len(b.Instances))
		}
	}
}

func TestBuildSpriteBatches_DropsMissingRegion(t *testing.T) {
	resolver := fakeRegions{rects: map[string][4]float32{}}
	visible := []VisibleSprite{{AtlasKey: "a", RegionId: "missing", World: identityWorld()}}
	batches := BuildSpriteBatches(resolver, visible, kestrel.NewNopLogger())
	if len(batches) != 0 {
		t.Fatalf("expected missing-region sprite to be dropped entirely, got %d batches", len(batches))
	}
}

func TestBuildSpriteBatches_DeterministicAtlasOrder(t *testing.T) {
	resolver := fakeRegions{rects: map[string][4]float32{
		"z/r": {0, 0, 1, 1},
		"a/r": {0, 0, 1, 1},
	}}
	visible := []VisibleSprite{
		{AtlasKey: "z", RegionId: "r", World: identityWorld()},
		{AtlasKey: "a", RegionId: "r", World: identityWorld()},
	}
	batches := BuildSpriteBatches(resolver, visible, kestrel.NewNopLogger())
	if batches[0].AtlasKey != "a" || batches[1].AtlasKey != "z" {
		t.Fatalf("expected batches sorted by atlas key, got %v then %v", batches[0].AtlasKey, batches[1].AtlasKey)
	}
}

package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

func TestCaptureSpawnRoundTrip_PreservesHierarchyAndComponents(t *testing.T) {
	app := kestrel.NewApp().Build()
	root := app.World().Spawn(
		kestrel.IdentityTransform(),
		kestrel.WorldTransform{},
		kestrel.Sprite{AtlasKey: "atlas", RegionId: "hero_idle", Tint: [4]float32{1, 1, 1, 1}},
	)
	child := app.World().Spawn(kestrel.Transform{Translation: mgl32.Vec3{1, 0, 0}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}, kestrel.WorldTransform{})
	app.World().SetParent(child, root)

	f := Capture(app.World(), nil)
	if len(f.Entities) != 2 {
		t.Fatalf("expected 2 captured entities, got %d", len(f.Entities))
	}

	raw, err := SaveJSON(f)
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	loaded, err := LoadJSON(raw)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if errs := Validate(loaded); len(errs) != 0 {
		t.Fatalf("expected a valid scene, got %v", errs)
	}

	app2 := kestrel.NewApp().Build()
	idMap := Spawn(loaded, app2.World(), app2.Commands())
	if len(idMap) != 2 {
		t.Fatalf("expected 2 spawned entities, got %d", len(idMap))
	}

	var sawSprite bool
	kestrel.Query1Of[kestrel.Sprite](app2.World()).Each(func(id kestrel.EntityId, s *kestrel.Sprite) bool {
		if s.RegionId == "hero_idle" {
			sawSprite = true
		}
		return true
	})
	if !sawSprite {
		t.Fatal("expected the sprite component to round-trip")
	}
}

func TestValidate_DetectsDanglingParentId(t *testing.T) {
	missing := 99
	f := &File{Entities: []EntityData{{Id: 0, ParentId: &missing}}}
	errs := Validate(f)
	if len(errs) != 1 {
		t.Fatalf("expected exactly one dangling-parent error, got %v", errs)
	}
}

func TestValidate_DetectsAssetMissingSourcePath(t *testing.T) {
	f := &File{Assets: []AssetDependency{{Kind: "atlas", Key: "hero"}}}
	errs := Validate(f)
	if len(errs) != 1 {
		t.Fatalf("expected exactly one missing-source-path error, got %v", errs)
	}
}

func TestSaveJSON_RoundTripIsByteIdenticalOnSecondSave(t *testing.T) {
	f := &File{FormatVersion: CurrentFormatVersion, Entities: []EntityData{{Id: 0}}}
	first, err := SaveJSON(f)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadJSON(first)
	if err != nil {
		t.Fatal(err)
	}
	second, err := SaveJSON(loaded)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected byte-identical second save, got:\n%s\nvs\n%s", first, second)
	}
}

func TestBinaryRoundTrip_AndAutoDetect(t *testing.T) {
	f := &File{FormatVersion: CurrentFormatVersion, Entities: []EntityData{{Id: 0, Transform: &TransformData{Scale: mgl32.Vec3{1, 1, 1}}}}}

	bin, err := SaveBinary(f)
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if !IsBinary(bin) {
		t.Fatal("expected SaveBinary's output to carry the KSCN magic header")
	}

	loaded, err := LoadAuto(bin)
	if err != nil {
		t.Fatalf("unexpected auto-load error: %v", err)
	}
	if len(loaded.Entities) != 1 {
		t.Fatalf("expected 1 entity after binary round-trip, got %d", len(loaded.Entities))
	}

	jsonBytes, _ := SaveJSON(f)
	loadedViaAuto, err := LoadAuto(jsonBytes)
	if err != nil {
		t.Fatalf("unexpected JSON auto-load error: %v", err)
	}
	if len(loadedViaAuto.Entities) != 1 {
		t.Fatal("expected auto-detect to also handle plain JSON")
	}
}

func TestLoadBinary_RejectsTruncatedPayload(t *testing.T) {
	f := &File{FormatVersion: CurrentFormatVersion}
	bin, err := SaveBinary(f)
	if err != nil {
		t.Fatal(err)
	}
	_, err = LoadBinary(bin[:len(bin)-4])
	if err == nil {
		t.Fatal("expected a truncated KSCN payload to fail to decode")
	}
}

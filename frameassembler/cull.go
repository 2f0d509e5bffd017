package frameassembler

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/kestrel-engine/kestrel"
)

// VisibleSprite is one sprite that survived frustum culling, carrying
// everything the batching stage needs without re-querying the world.
type VisibleSprite struct {
	Entity   kestrel.EntityId
	AtlasKey string
	RegionId string
	Tint     [4]float32
	World    kestrel.WorldTransform
	// FootprintPixels is the on-screen bounding-box footprint computed
	// against the active camera's viewport (spec §4.6 step 2).
	FootprintPixels float32
}

// CullSprites frustum-culls every (Sprite, WorldTransform) entity against
// cam, treating each sprite as a point-radius sphere in world space
// (spec §4.6 step 1: "Cull sprites against camera frustum in world
// space").
func CullSprites(world *kestrel.World, cam *kestrel.Camera, viewportWidth, viewportHeight float32) []VisibleSprite {
	vp := ViewProjection(cam)
	frustum := ExtractFrustum(vp)

	var visible []VisibleSprite
	kestrel.Query2Of[kestrel.Sprite, kestrel.WorldTransform](world).Each(func(id kestrel.EntityId, sp *kestrel.Sprite, wt *kestrel.WorldTransform) bool {
		radius := spriteBoundingRadius(wt)
		if !frustum.SphereInFrustum(wt.Translation, radius) {
			return true
		}
		visible = append(visible, VisibleSprite{
			Entity:          id,
			AtlasKey:        sp.AtlasKey,
			RegionId:        sp.RegionId,
			Tint:            sp.Tint,
			World:           *wt,
			FootprintPixels: projectedFootprint(vp, wt.Translation, radius, viewportWidth, viewportHeight),
		})
		return true
	})
	return visible
}

func spriteBoundingRadius(wt *kestrel.WorldTransform) float32 {
	s := wt.Scale
	m := s.X()
	if s.Y() > m {
		m = s.Y()
	}
	if s.Z() > m {
		m = s.Z()
	}
	return m * 0.70710678 // half-diagonal of a unit quad, scaled
}

// projectedFootprint estimates a sphere's on-screen diameter in pixels by
// projecting its world radius through the clip-space W divide.
func projectedFootprint(vp mgl32.Mat4, center mgl32.Vec3, radius, viewportWidth, viewportHeight float32) float32 {
	clip := vp.Mul4x1(mgl32.Vec4{center.X(), center.Y(), center.Z(), 1})
	if clip[3] <= 1e-5 {
		return 0
	}
	ndcPerWorld := 1 / clip[3]
	pixelsPerNDC := viewportHeight / 2
	return 2 * radius * ndcPerWorld * pixelsPerNDC
}

// GuardrailOutcome is what ApplyGuardrail decided for one sprite.
type GuardrailOutcome int

const (
	GuardrailPass GuardrailOutcome = iota
	GuardrailWarned
	GuardrailDropped
)

// ApplyGuardrail classifies the editor's pixel-footprint policy (spec §4.6
// step 2) for one sprite. For Clamp it does not touch cam.Zoom directly —
// it returns the zoom that would bring this sprite's footprint back under
// threshold, leaving the caller (Assembler.run) to ease cam.Zoom toward the
// most restrictive of this frame's clamp targets via a tween rather than
// snapping it instantly. Strict drops the sprite from the batch outright.
func ApplyGuardrail(cam *kestrel.Camera, s VisibleSprite, logger kestrel.Logger) (GuardrailOutcome, float32) {
	if cam.Guardrail == kestrel.GuardrailOff || cam.GuardrailPixelThreshold <= 0 {
		return GuardrailPass, 0
	}
	if s.FootprintPixels <= cam.GuardrailPixelThreshold {
		return GuardrailPass, 0
	}
	switch cam.Guardrail {
	case kestrel.GuardrailWarn:
		logger.Warnf("sprite %v footprint %.1fpx exceeds guardrail threshold %.1fpx", s.Entity, s.FootprintPixels, cam.GuardrailPixelThreshold)
		return GuardrailWarned, 0
	case kestrel.GuardrailClamp:
		excess := s.FootprintPixels / cam.GuardrailPixelThreshold
		return GuardrailWarned, clampf(cam.Zoom/excess, cam.ZoomMin, cam.ZoomMax)
	case kestrel.GuardrailStrict:
		return GuardrailDropped, 0
	}
	return GuardrailPass, 0
}

func clampf(v, lo, hi float32) float32 {
	if hi > lo {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
	}
	return v
}

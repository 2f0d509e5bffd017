package frameassembler

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/kestrel-engine/kestrel"
)

// zoomClampDuration is how long a Clamp guardrail's zoom-out takes to ease
// in, mirroring the scroll-tween duration pattern willow's Camera.ScrollTo
// uses for camera motion rather than snapping state instantly.
const zoomClampDuration = 0.25

// advanceZoomClamps steps every camera's in-flight clamp tween by dt,
// writing the eased value back into its Camera.Zoom. Call once per frame
// before this frame's guardrail pass so footprints are culled against the
// zoom the player actually sees.
func (a *Assembler) advanceZoomClamps(dt float32) {
	for id, tw := range a.zoomTweens {
		cam := a.zoomCams[id]
		if cam == nil {
			delete(a.zoomTweens, id)
			delete(a.zoomCams, id)
			continue
		}
		val, done := tw.Update(dt)
		cam.Zoom = val
		if done {
			delete(a.zoomTweens, id)
			delete(a.zoomCams, id)
		}
	}
}

// requestZoomClamp eases cam.Zoom toward target over zoomClampDuration,
// replacing any tween already in flight for this camera with a fresh one
// starting from the current zoom.
func (a *Assembler) requestZoomClamp(id kestrel.EntityId, cam *kestrel.Camera, target float32) {
	if a.zoomTweens == nil {
		a.zoomTweens = make(map[kestrel.EntityId]*gween.Tween)
		a.zoomCams = make(map[kestrel.EntityId]*kestrel.Camera)
	}
	a.zoomTweens[id] = gween.New(cam.Zoom, target, zoomClampDuration, ease.OutQuad)
	a.zoomCams[id] = cam
}

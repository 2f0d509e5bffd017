package spriteanim

import (
	"github.com/kestrel-engine/kestrel"
	"github.com/kestrel-engine/kestrel/asset"
)

// MarkerMaintenanceSystem resyncs Store slots from the SpriteAnimation
// component and the asset server, then adds/removes the FastSpriteAnimator
// marker so it reflects the *current* timeline before the fast/general
// drivers run this same phase (spec §4.2 "Marker maintenance"). Unlike
// script/editor mutations, this is applied directly against World rather
// than deferred through Commands: the marker must be correct before the
// driver that runs immediately after it in the same stage.
func MarkerMaintenanceSystem(store *Store, assets *asset.Server) func(*kestrel.App) {
	return func(app *kestrel.App) {
		world := app.World()
		kestrel.Query1Of[kestrel.SpriteAnimation](world).Each(func(id kestrel.EntityId, anim *kestrel.SpriteAnimation) bool {
			idx := store.slotFor(id)
			resyncSlot(store, idx, anim, assets)

			eligible := store.flagCol[idx]&flagVariableRate == 0 &&
				store.tl[idx].loopMode == int8(kestrel.LoopForever) &&
				store.tl[idx].invFrameDt > 0 &&
				allEmpty(store.tl[idx].events)
			hasMarker := world.Exists(id) && hasFastMarker(world, id)

			if eligible && !hasMarker {
				world.Attach(id, kestrel.FastSpriteAnimator{})
				store.flagCol[idx] |= flagFastEligible
			} else if !eligible && hasMarker {
				world.Detach(id, kestrel.FastSpriteAnimator{})
				store.flagCol[idx] &^= flagFastEligible
			}
			return true
		})
	}
}

func allEmpty(events [][]string) bool {
	for _, e := range events {
		if len(e) > 0 {
			return false
		}
	}
	return true
}

func hasFastMarker(w *kestrel.World, id kestrel.EntityId) bool {
	found := false
	kestrel.Query1Of[kestrel.FastSpriteAnimator](w).Each(func(e kestrel.EntityId, _ *kestrel.FastSpriteAnimator) bool {
		if e == id {
			found = true
			return false
		}
		return true
	})
	return found
}

// resyncSlot pulls the entity's current timeline out of the asset server
// and refreshes the Store's cold metadata plus the hot frameCount column.
// It only rebuilds when the entity's TimelineKey changes; a new asset
// version under the same key does not trigger a resync.
func resyncSlot(store *Store, idx int, anim *kestrel.SpriteAnimation, assets *asset.Server) {
	if store.timelineKey[idx] == anim.TimelineKey {
		return // unchanged since last sync; cold metadata still valid
	}

	h, err := assets.Load(asset.KindAtlas, asset.Key(anim.TimelineKey))
	if err != nil {
		store.flagCol[idx] |= flagErrored
		return
	}
	v, _, ok := assets.Value(h)
	if !ok {
		store.flagCol[idx] |= flagErrored
		return
	}
	atlas, ok := v.(*asset.Atlas)
	if !ok {
		store.flagCol[idx] |= flagErrored
		return
	}
	tl, ok := atlas.Timelines[anim.TimelineKey]
	if !ok || len(tl.Frames) == 0 {
		// Zero-frame timelines are rejected at asset load (spec §4.3
		// "Failure semantics"); reaching here means a stale reference.
		store.flagCol[idx] |= flagErrored
		return
	}

	cold := timeline{loopMode: int8(anim.LoopMode)}
	for _, f := range tl.Frames {
		cold.regionIds = append(cold.regionIds, f.RegionId)
		cold.durations = append(cold.durations, f.Duration)
		cold.events = append(cold.events, f.Events)
	}
	if tl.FastEligible && anim.LoopMode == kestrel.LoopForever {
		cold.frameDt = float64(tl.Frames[0].Duration)
		cold.invFrameDt = 1.0 / cold.frameDt
	}

	store.timelineKey[idx] = anim.TimelineKey
	store.tl[idx] = cold
	store.frameCount[idx] = int32(len(tl.Frames))
	store.frameIdx[idx] = int32(anim.FrameCursor)
	store.accum[idx] = anim.Accumulator
	if anim.Direction() < 0 {
		store.flagCol[idx] |= flagReverse
	}
	if anim.VariableRate() {
		store.flagCol[idx] |= flagVariableRate
	} else {
		store.flagCol[idx] &^= flagVariableRate
	}
}
